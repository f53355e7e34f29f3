package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

var errBoom = errors.New("boom")

// fakePipeline returns canned entities per text, honouring the filter the
// way a real linker does.
type fakePipeline struct {
	mu       sync.Mutex
	entities map[string][]domain.Entity
	nested   map[string][]domain.Entity
	errs     map[string]error
	panics   map[string]bool
	calls    []string
	filters  [][]string
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		entities: map[string][]domain.Entity{},
		nested:   map[string][]domain.Entity{},
		errs:     map[string]error{},
		panics:   map[string]bool{},
	}
}

// on registers a prediction of cui over the first occurrence of mention.
func (p *fakePipeline) on(text, mention, cui string) *fakePipeline {
	start := len([]rune(text[:strings.Index(text, mention)]))
	ents := p.entities[text]
	p.entities[text] = append(ents, domain.Entity{
		ID:                len(ents),
		Start:             start,
		End:               start + len([]rune(mention)),
		CUI:               cui,
		SourceValue:       mention,
		DetectedName:      strings.ToLower(mention),
		ContextSimilarity: 0.9,
	})
	return p
}

func (p *fakePipeline) Annotate(_ context.Context, text string, filters *domain.FilterContext) (*domain.AnnotatedDocument, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.filters = append(p.filters, filters.CUIs())
	p.mu.Unlock()

	if p.panics[text] {
		panic("pipeline exploded")
	}
	if err := p.errs[text]; err != nil {
		return nil, err
	}

	doc := &domain.AnnotatedDocument{Text: text}
	for _, e := range p.entities[text] {
		if filters.Allows(e.CUI) {
			doc.Entities = append(doc.Entities, e)
		}
	}
	if nested, ok := p.nested[text]; ok {
		for _, e := range nested {
			if filters.Allows(e.CUI) {
				doc.Nested = append(doc.Nested, e)
			}
		}
	}
	return doc, nil
}

func (p *fakePipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeBulkPipeline adds positional batch annotation that fails whole
// batches containing an erroring text.
type fakeBulkPipeline struct {
	*fakePipeline
	batchSizes []int
}

func (p *fakeBulkPipeline) AnnotateMany(ctx context.Context, texts []string, filters *domain.FilterContext,
	_ int, batchSize int, onError driven.ErrorHandler) []*domain.AnnotatedDocument {
	out := make([]*domain.AnnotatedDocument, len(texts))
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))
		p.batchSizes = append(p.batchSizes, hi-lo)
		batch := make([]*domain.AnnotatedDocument, 0, hi-lo)
		var failed error
		for _, t := range texts[lo:hi] {
			d, err := p.Annotate(ctx, t, filters)
			if err != nil {
				failed = err
				break
			}
			batch = append(batch, d)
		}
		if failed != nil {
			onError("linker", texts[lo:hi], failed)
			continue
		}
		copy(out[lo:hi], batch)
	}
	return out
}

// fakeConcepts is a small in-memory concept database.
type fakeConcepts struct {
	mu       sync.Mutex
	concepts map[string]domain.Concept
	names    map[string]map[string]struct{}
	typeIDs  map[string][]string
	groups   map[string]string
	counts   map[string]int
	addl     map[string]map[string][]string
	removed  []string
}

func newFakeConcepts() *fakeConcepts {
	return &fakeConcepts{
		concepts: map[string]domain.Concept{},
		names:    map[string]map[string]struct{}{},
		typeIDs:  map[string][]string{},
		groups:   map[string]string{},
		counts:   map[string]int{},
		addl:     map[string]map[string][]string{},
	}
}

func (c *fakeConcepts) with(cui, preferred string, names ...string) *fakeConcepts {
	_ = c.AddConcept(domain.Concept{CUI: cui, PreferredName: preferred, Names: names})
	return c
}

func (c *fakeConcepts) Concept(cui string) (domain.Concept, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	con, ok := c.concepts[cui]
	if !ok {
		return domain.Concept{}, domain.ErrNotFound
	}
	return con, nil
}

func (c *fakeConcepts) HasConcept(cui string) bool {
	_, err := c.Concept(cui)
	return err == nil
}

func (c *fakeConcepts) AddConcept(con domain.Concept) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.concepts[con.CUI]
	if !ok {
		cur = domain.Concept{CUI: con.CUI, TypeIDs: con.TypeIDs, PreferredName: con.PreferredName}
		c.counts[con.CUI] = 0
	}
	for _, n := range con.Names {
		if c.names[n] == nil {
			c.names[n] = map[string]struct{}{}
		}
		if _, dup := c.names[n][con.CUI]; !dup {
			cur.Names = append(cur.Names, n)
		}
		c.names[n][con.CUI] = struct{}{}
	}
	c.concepts[con.CUI] = cur
	return nil
}

func (c *fakeConcepts) CUIsForName(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedSet(c.names[name])
}

func (c *fakeConcepts) CUIsForTypeIDs(typeIDs []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, tid := range typeIDs {
		out = append(out, c.typeIDs[tid]...)
	}
	sort.Strings(out)
	return out
}

func (c *fakeConcepts) RemoveNames(cui string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		delete(c.names[n], cui)
		c.removed = append(c.removed, cui+":"+n)
	}
}

func (c *fakeConcepts) DisplayName(cui string) string {
	con, err := c.Concept(cui)
	if err != nil {
		return cui
	}
	return con.DisplayName()
}

func (c *fakeConcepts) TypeName(typeID string) string { return "type " + typeID }

func (c *fakeConcepts) Group(cui string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[cui]
	return g, ok
}

func (c *fakeConcepts) SetGroup(cui, group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[cui] = group
}

func (c *fakeConcepts) TrainCount(cui string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[cui]
	return n, ok
}

func (c *fakeConcepts) SetTrainCount(cui string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[cui] = n
}

func (c *fakeConcepts) AddlInfo(field, cui string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addl[field][cui]
}

// trainCall is one TrainConcept invocation.
type trainCall struct {
	cui      string
	start    int
	end      int
	negative bool
}

type fakeTrainer struct {
	mu      sync.Mutex
	calls   []trainCall
	texts   []string
	failOn  map[string]error
	panicOn map[string]bool
	resets  int
	onTrain func(cui string)
}

func newFakeTrainer() *fakeTrainer {
	return &fakeTrainer{failOn: map[string]error{}, panicOn: map[string]bool{}}
}

func (t *fakeTrainer) TrainConcept(_ context.Context, cui string, _ *domain.AnnotatedDocument, start, end int, negative bool) error {
	t.mu.Lock()
	t.calls = append(t.calls, trainCall{cui: cui, start: start, end: end, negative: negative})
	hook := t.onTrain
	t.mu.Unlock()
	if hook != nil {
		hook(cui)
	}
	return t.failOn[cui]
}

func (t *fakeTrainer) TrainText(_ context.Context, text string, _ *domain.FilterContext) error {
	if t.panicOn[text] {
		panic("trainer exploded")
	}
	if err := t.failOn[text]; err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texts = append(t.texts, text)
	return nil
}

func (t *fakeTrainer) ResetTraining() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
}

type fakeProbe struct {
	available uint64
	total     uint64
	err       error
}

func (p fakeProbe) Memory() (uint64, uint64, error) {
	return p.available, p.total, p.err
}

// fakeClassifier marks every entity with a fixed value.
type fakeClassifier struct {
	name    string
	value   string
	fail    bool
	calls   atomic.Int32
	mu      sync.Mutex
	batches []int
}

func (c *fakeClassifier) Name() string { return c.name }

func (c *fakeClassifier) ClassifyBatch(_ context.Context, docs []*domain.AnnotatedDocument) error {
	c.calls.Add(1)
	c.mu.Lock()
	c.batches = append(c.batches, len(docs))
	c.mu.Unlock()
	if c.fail {
		return errBoom
	}
	for _, d := range docs {
		for _, e := range d.Entities {
			d.SetMeta(e.ID, domain.MetaAnnotation{Name: c.name, Value: c.value, Confidence: 1})
		}
	}
	return nil
}

type countingMetrics struct {
	annotated atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64
	shards    atomic.Int64
	mu        sync.Mutex
	stops     []string
}

func (m *countingMetrics) DocumentAnnotated(int) { m.annotated.Add(1) }
func (m *countingMetrics) DocumentFailed() { m.failed.Add(1) }
func (m *countingMetrics) BatchFailed() { m.batches.Add(1) }
func (m *countingMetrics) ShardWritten(int) { m.shards.Add(1) }

func (m *countingMetrics) WorkerStopped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops = append(m.stops, reason)
}

func (m *countingMetrics) stopReasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.stops...)
	sort.Strings(out)
	return out
}

// fakeEvaluator records the epochs it was asked to evaluate.
type fakeEvaluator struct {
	epochs  []int
	filters [][]string
	err     error
}

func (e *fakeEvaluator) Evaluate(_ context.Context, _ *domain.Dataset, filters *domain.FilterContext,
	opts domain.EvalOptions) (*domain.StatsReport, error) {
	e.epochs = append(e.epochs, opts.Epoch)
	e.filters = append(e.filters, filters.CUIs())
	if e.err != nil {
		return nil, e.err
	}
	return domain.NewStatsReport(opts.Epoch), nil
}

func dataset(docs ...domain.Document) *domain.Dataset {
	return &domain.Dataset{Projects: []domain.Project{{Name: "p", Documents: docs}}}
}

// gold builds a validated annotation over the first occurrence of mention.
func gold(text, mention, cui string) domain.GoldAnnotation {
	start := len([]rune(text[:strings.Index(text, mention)]))
	return domain.GoldAnnotation{
		Start:     start,
		End:       start + len([]rune(mention)),
		CUI:       cui,
		Value:     mention,
		Validated: true,
	}
}
