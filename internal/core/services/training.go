package services

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/time/rate"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// Ensure TrainingOrchestrator implements the interface.
var _ driving.Trainer = (*TrainingOrchestrator)(nil)

// linePreview is how much of a failing line is logged.
const linePreview = 100

// TrainingOrchestrator drives supervised and self-supervised training.
type TrainingOrchestrator struct {
	pipeline   driven.Pipeline
	concepts   driven.ConceptStore
	normaliser driven.NameNormaliser
	trainer    driven.ContextTrainer
	evaluator  driving.Evaluator
	filters    *domain.FilterContext
	fullUnlink bool
}

// TrainingOption configures a TrainingOrchestrator.
type TrainingOption func(*TrainingOrchestrator)

// WithEvaluator replaces the default stats engine.
func WithEvaluator(e driving.Evaluator) TrainingOption {
	return func(o *TrainingOrchestrator) {
		o.evaluator = e
	}
}

// WithFullUnlink makes unlinking remove a name from every concept it links to.
func WithFullUnlink(full bool) TrainingOption {
	return func(o *TrainingOrchestrator) {
		o.fullUnlink = full
	}
}

// WithModelFilters sets the filter used by self-supervised training.
func WithModelFilters(f *domain.FilterContext) TrainingOption {
	return func(o *TrainingOrchestrator) {
		o.filters = f
	}
}

// NewTrainingOrchestrator creates a training orchestrator.
func NewTrainingOrchestrator(
	pipeline driven.Pipeline,
	concepts driven.ConceptStore,
	normaliser driven.NameNormaliser,
	trainer driven.ContextTrainer,
	opts ...TrainingOption,
) *TrainingOrchestrator {
	o := &TrainingOrchestrator{
		pipeline:   pipeline,
		concepts:   concepts,
		normaliser: normaliser,
		trainer:    trainer,
		filters:    domain.NewFilterContext(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.evaluator == nil {
		o.evaluator = NewStatsEngine(pipeline, concepts)
	}
	return o
}

// TrainSupervised runs simulated online training over a trainer export.
// The filter context is restored on every exit path.
//
//nolint:gocyclo // Sequential protocol with optional steps
func (o *TrainingOrchestrator) TrainSupervised(
	ctx context.Context,
	ds *domain.Dataset,
	filters *domain.FilterContext,
	opts domain.TrainOptions,
) (*domain.StatsReport, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset", domain.ErrInvalidDataset)
	}
	if opts.NEpochs < 1 {
		return nil, fmt.Errorf("%w: nepochs must be at least 1", domain.ErrInvalidInput)
	}
	if filters == nil {
		filters = domain.NewFilterContext()
	}
	guard := filters.Acquire()
	defer guard.Release()

	train, test := ds, ds
	if opts.TestSize > 0 {
		var err error
		train, test, err = SplitDataset(ds, opts.TestSize, opts.Seed)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Running without a test set, or train==test")
	}

	var report *domain.StatsReport
	if opts.PrintStats > 0 {
		r, err := o.evaluator.Evaluate(ctx, test, filters, opts.EvalOptions(0))
		if err != nil {
			return nil, fmt.Errorf("baseline stats: %w", err)
		}
		report = r
	}

	if opts.ResetCUICount {
		o.ResetCUICounts(train.CUIs())
	}

	terminate := !opts.NeverTerminate
	if terminate && !opts.TerminateLast {
		o.unlinkKilled(train)
	}

	for epoch := 0; epoch < opts.NEpochs; epoch++ {
		logger.Section(fmt.Sprintf("Epoch %d/%d", epoch+1, opts.NEpochs))

		for _, project := range train.Projects {
			filters.Set(projectFilter(o.concepts, project, opts.UseFilters, opts.ExtraCUIFilter))

			for _, doc := range project.Documents {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if err := o.trainDocument(ctx, doc, filters, opts); err != nil {
					return nil, fmt.Errorf("train document %s: %w", doc.Label(), err)
				}
			}
		}

		if opts.PrintStats > 0 && (epoch+1)%opts.PrintStats == 0 {
			r, err := o.evaluator.Evaluate(ctx, test, filters, opts.EvalOptions(epoch+1))
			if err != nil {
				return nil, fmt.Errorf("epoch %d stats: %w", epoch+1, err)
			}
			report = r
		}
	}

	if terminate && opts.TerminateLast {
		o.unlinkKilled(train)
	}

	return report, nil
}

func (o *TrainingOrchestrator) trainDocument(
	ctx context.Context,
	doc domain.Document,
	filters *domain.FilterContext,
	opts domain.TrainOptions,
) error {
	if err := checkSpans(doc, len([]rune(doc.Text))); err != nil {
		return err
	}

	pred, err := o.pipeline.Annotate(ctx, doc.Text, filters)
	if err != nil {
		return fmt.Errorf("annotate: %w", err)
	}

	for _, ann := range doc.Annotations {
		if ann.Killed {
			continue
		}
		err := o.AddAndTrainConcept(ctx, domain.ConceptTraining{
			CUI:           ann.CUI,
			Name:          ann.Value,
			Doc:           pred,
			Start:         ann.Start,
			End:           ann.End,
			Negative:      ann.Deleted,
			DevalueOthers: opts.DevalueOthers,
			DoAddConcept:  true,
		})
		if err != nil {
			return err
		}
	}

	if !opts.TrainFromFalsePositives {
		return nil
	}
	for _, fp := range falsePositives(doc, pred) {
		err := o.AddAndTrainConcept(ctx, domain.ConceptTraining{
			CUI:      fp.CUI,
			Name:     fp.SourceValue,
			Doc:      pred,
			Start:    fp.Start,
			End:      fp.End,
			Negative: true,
		})
		if err != nil {
			return fmt.Errorf("false positive %s: %w", fp.CUI, err)
		}
	}
	return nil
}

// falsePositives returns every predicted entity, nested ones included,
// whose start and CUI match no gold annotation.
func falsePositives(doc domain.Document, pred *domain.AnnotatedDocument) []domain.Entity {
	truth := make(map[goldKey]struct{}, len(doc.Annotations))
	for _, ann := range doc.Annotations {
		truth[goldKey{start: ann.Start, cui: ann.CUI}] = struct{}{}
	}
	var fps []domain.Entity
	for _, ent := range pred.Candidates(true) {
		if _, ok := truth[goldKey{start: ent.Start, cui: ent.CUI}]; !ok {
			fps = append(fps, ent)
		}
	}
	return fps
}

func (o *TrainingOrchestrator) unlinkKilled(ds *domain.Dataset) {
	for _, project := range ds.Projects {
		for _, doc := range project.Documents {
			for _, ann := range doc.Annotations {
				if ann.Killed {
					o.UnlinkConceptName(ann.CUI, ann.Value)
				}
			}
		}
	}
}

// AddAndTrainConcept links the prepared forms of a name to a concept,
// creating it when requested, and trains the span when a document is given.
func (o *TrainingOrchestrator) AddAndTrainConcept(ctx context.Context, req domain.ConceptTraining) error {
	if req.CUI == "" {
		return fmt.Errorf("%w: empty cui", domain.ErrInvalidInput)
	}
	if o.concepts == nil {
		return domain.ErrMissingConceptDB
	}

	names := o.prepareName(req.Name)
	if req.DoAddConcept {
		err := o.concepts.AddConcept(domain.Concept{
			CUI:           req.CUI,
			Names:         names,
			TypeIDs:       req.TypeIDs,
			PreferredName: req.PreferredName,
		})
		if err != nil {
			return fmt.Errorf("add concept %s: %w", req.CUI, err)
		}
	}

	if req.Doc == nil {
		return nil
	}
	if o.trainer == nil {
		return fmt.Errorf("train concept %s: %w", req.CUI, domain.ErrNotImplemented)
	}
	if err := o.trainer.TrainConcept(ctx, req.CUI, req.Doc, req.Start, req.End, req.Negative); err != nil {
		return fmt.Errorf("train concept %s: %w", req.CUI, err)
	}

	if req.Negative || !req.DevalueOthers {
		return nil
	}
	for _, other := range o.otherCUIs(req.CUI, names) {
		if err := o.trainer.TrainConcept(ctx, other, req.Doc, req.Start, req.End, true); err != nil {
			return fmt.Errorf("devalue concept %s: %w", other, err)
		}
	}
	return nil
}

// otherCUIs returns every CUI except cui linked to any of the names, sorted.
func (o *TrainingOrchestrator) otherCUIs(cui string, names []string) []string {
	set := map[string]struct{}{}
	for _, n := range names {
		for _, c := range o.concepts.CUIsForName(n) {
			if c != cui {
				set[c] = struct{}{}
			}
		}
	}
	return sortedSet(set)
}

// UnlinkConceptName removes the prepared forms of a name from the CUI, or
// from every CUI they link to when full unlink is on.
func (o *TrainingOrchestrator) UnlinkConceptName(cui, name string) {
	if o.concepts == nil {
		return
	}
	names := o.prepareName(name)
	cuis := []string{cui}
	if o.fullUnlink {
		set := map[string]struct{}{cui: {}}
		for _, n := range names {
			for _, c := range o.concepts.CUIsForName(n) {
				set[c] = struct{}{}
			}
		}
		cuis = sortedSet(set)
	}
	for _, c := range cuis {
		o.concepts.RemoveNames(c, names)
	}
	logger.Debug("Unlinked %q from %s", name, strings.Join(cuis, ","))
}

// ResetCUICounts resets the training counter of every known CUI.
func (o *TrainingOrchestrator) ResetCUICounts(cuis []string) {
	if o.concepts == nil {
		return
	}
	for _, cui := range cuis {
		if _, ok := o.concepts.TrainCount(cui); ok {
			o.concepts.SetTrainCount(cui, domain.ResetTrainCount)
		}
	}
}

// AddCUIToGroup maps a CUI to a group.
func (o *TrainingOrchestrator) AddCUIToGroup(cui, group string) {
	if o.concepts != nil {
		o.concepts.SetGroup(cui, group)
	}
}

// Train runs self-supervised training over lines. A failing line is logged
// and skipped.
func (o *TrainingOrchestrator) Train(ctx context.Context, lines iter.Seq[string], opts domain.UnsupervisedOptions) error {
	if o.trainer == nil {
		return fmt.Errorf("train: %w", domain.ErrNotImplemented)
	}
	if !opts.FineTune {
		logger.Info("Removing old training data")
		o.trainer.ResetTraining()
	}

	progress := rate.Sometimes{Every: max(opts.ProgressEvery, 1)}
	done := 0
	for line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		err := safeCall(func() error { return o.trainer.TrainText(ctx, line, o.filters) })
		if err != nil {
			logger.Warn("LINE: '%s...' was skipped", preview(line, linePreview))
			logger.Warn("because of: %v", err)
		}
		if opts.ProgressEvery > 0 {
			progress.Do(func() { logger.Info("DONE: %d", done) })
		}
		done++
	}
	return nil
}

func (o *TrainingOrchestrator) ready() error {
	if o.pipeline == nil {
		return domain.ErrPipelineUnavailable
	}
	if o.concepts == nil {
		return domain.ErrMissingConceptDB
	}
	return nil
}

// prepareName falls back to the lower-cased name without a normaliser.
func (o *TrainingOrchestrator) prepareName(name string) []string {
	if o.normaliser != nil {
		return o.normaliser.PrepareName(name)
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return nil
	}
	return []string{n}
}

// safeCall converts a panic in fn into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
