package dictionary

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/vocab"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure Pipeline implements the interfaces.
var (
	_ driven.BulkPipeline   = (*Pipeline)(nil)
	_ driven.NameNormaliser = (*Pipeline)(nil)
	_ driven.ContextTrainer = (*Pipeline)(nil)
)

// DefaultMaxNameTokens is the longest name, in words, the recogniser tries.
const DefaultMaxNameTokens = 6

// Pipeline annotates text by dictionary lookup and context linking.
type Pipeline struct {
	concepts driven.ConceptStore
	vocab    *vocab.Vocab
	model    *ContextModel
	chain    *Chain
	cfg      config

	// trainMu serialises read-modify-write of training counters.
	trainMu sync.Mutex
}

type config struct {
	threshold     float64
	window        int
	learningRate  float64
	minNameLength int
	maxTokens     int
	extra         []Component
}

// Option configures a Pipeline.
type Option func(*config)

// WithSimilarityThreshold sets the minimum similarity for ambiguous links.
func WithSimilarityThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = t
	}
}

// WithContextWindow sets how many words either side form the context.
func WithContextWindow(n int) Option {
	return func(c *config) {
		c.window = n
	}
}

// WithLearningRate sets the base rate of context vector updates.
func WithLearningRate(lr float64) Option {
	return func(c *config) {
		c.learningRate = lr
	}
}

// WithMinNameLength skips names shorter than n characters.
func WithMinNameLength(n int) Option {
	return func(c *config) {
		c.minNameLength = n
	}
}

// WithMaxNameTokens sets the longest name the recogniser tries.
func WithMaxNameTokens(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithComponent appends a component after the built-in ones.
func WithComponent(comp Component) Option {
	return func(c *config) {
		c.extra = append(c.extra, comp)
	}
}

// SettingsOptions maps application settings to pipeline options.
func SettingsOptions(s domain.AppSettings) []Option {
	return []Option{
		WithSimilarityThreshold(s.Linking.SimilarityThreshold),
		WithContextWindow(s.Linking.ContextWindow),
		WithLearningRate(s.Linking.LearningRate),
		WithMinNameLength(s.Preprocessing.MinNameLength),
	}
}

// New creates a pipeline over a concept database. The vocabulary may be
// nil, in which case ambiguous names are resolved by training counts only.
func New(concepts driven.ConceptStore, v *vocab.Vocab, opts ...Option) (*Pipeline, error) {
	if concepts == nil {
		return nil, domain.ErrMissingConceptDB
	}
	d := domain.DefaultAppSettings()
	cfg := config{
		threshold:     d.Linking.SimilarityThreshold,
		window:        d.Linking.ContextWindow,
		learningRate:  d.Linking.LearningRate,
		minNameLength: d.Preprocessing.MinNameLength,
		maxTokens:     DefaultMaxNameTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	model := NewContextModel()
	chain := NewChain(
		Tokenizer{},
		&Recogniser{Concepts: concepts, MaxTokens: cfg.maxTokens, MinNameLength: cfg.minNameLength},
		&Linker{Concepts: concepts, Vocab: v, Model: model, Threshold: cfg.threshold, Window: cfg.window},
		Overlaps{},
	)
	for _, comp := range cfg.extra {
		chain.Add(comp)
	}

	return &Pipeline{
		concepts: concepts,
		vocab:    v,
		model:    model,
		chain:    chain,
		cfg:      cfg,
	}, nil
}

// Components returns the chain's component names in order.
func (p *Pipeline) Components() []string {
	return p.chain.Names()
}

// Model exposes the learned context vectors.
func (p *Pipeline) Model() *ContextModel {
	return p.model
}

// Annotate runs the chain over text.
func (p *Pipeline) Annotate(ctx context.Context, text string, filters *domain.FilterContext) (*domain.AnnotatedDocument, error) {
	doc := newDoc(text, filters)
	if err := p.chain.Process(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Result(), nil
}

// AnnotateMany annotates texts in batches of batchSize on up to workers
// goroutines. Results are positional. A batch fails as a whole: its
// entries stay nil and onError, which must be safe for concurrent use,
// is called once with the failing stage and the batch inputs.
func (p *Pipeline) AnnotateMany(ctx context.Context, texts []string, filters *domain.FilterContext,
	workers, batchSize int, onError driven.ErrorHandler) []*domain.AnnotatedDocument {
	out := make([]*domain.AnnotatedDocument, len(texts))
	if len(texts) == 0 {
		return out
	}
	if batchSize < 1 {
		batchSize = len(texts)
	}

	var g errgroup.Group
	g.SetLimit(max(1, workers))
	for lo := 0; lo < len(texts); lo += batchSize {
		if ctx.Err() != nil {
			break
		}
		hi := min(lo+batchSize, len(texts))
		g.Go(func() error {
			docs, err := p.annotateBatch(ctx, texts[lo:hi], filters)
			if err != nil {
				if onError != nil {
					onError(stageOf(err), texts[lo:hi], err)
				}
				return nil
			}
			copy(out[lo:hi], docs)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) annotateBatch(ctx context.Context, texts []string,
	filters *domain.FilterContext) (docs []*domain.AnnotatedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	docs = make([]*domain.AnnotatedDocument, 0, len(texts))
	for _, text := range texts {
		doc, err := p.Annotate(ctx, text, filters)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PrepareName normalises a surface form into a concept database key.
func (p *Pipeline) PrepareName(name string) []string {
	return Normaliser{}.PrepareName(name)
}
