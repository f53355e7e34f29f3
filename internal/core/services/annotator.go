package services

import (
	"context"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// Ensure Annotator implements the interface.
var _ driving.Annotator = (*Annotator)(nil)

// batchFactor is the number of batches per worker when no batch size is given.
const batchFactor = 2

// errorPreview is how much of each text in a failed batch is logged.
const errorPreview = 50

// Annotator annotates single texts and positional lists of texts.
type Annotator struct {
	pipeline driven.Pipeline
	output   OutputBuilder
	deps     inferenceDeps
}

// NewAnnotator creates an annotator.
func NewAnnotator(pipeline driven.Pipeline, output OutputBuilder, opts ...InferenceOption) *Annotator {
	a := &Annotator{
		pipeline: pipeline,
		output:   output,
		deps:     newInferenceDeps(opts),
	}
	if a.deps.nested {
		a.output.Nested = true
	}
	return a
}

// Annotate annotates one text, trimmed to the maximum document length.
func (a *Annotator) Annotate(ctx context.Context, text string) (domain.AnnotationOutput, error) {
	if a.pipeline == nil {
		return domain.AnnotationOutput{}, domain.ErrPipelineUnavailable
	}
	doc, err := a.pipeline.Annotate(ctx, a.deps.trim(text), a.deps.filters)
	if err != nil {
		return domain.AnnotationOutput{}, err
	}
	if doc != nil {
		runClassifiers(ctx, a.deps.classifiers, []*domain.AnnotatedDocument{doc})
	}
	return a.output.Build(doc), nil
}

// AnnotateTexts annotates texts and returns one output per input in input
// order. Inputs that fail, or are blank, yield an empty output.
func (a *Annotator) AnnotateTexts(ctx context.Context, texts []string, workers, batchSize int) ([]domain.AnnotationOutput, error) {
	if a.pipeline == nil {
		return nil, domain.ErrPipelineUnavailable
	}
	if workers < 1 {
		return nil, domain.ErrInvalidWorkerCount
	}
	if batchSize < 1 {
		batchSize = max(1, (len(texts)+batchFactor*workers-1)/(batchFactor*workers))
	}

	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = a.deps.trim(t)
	}

	var docs []*domain.AnnotatedDocument
	if bp, ok := a.pipeline.(driven.BulkPipeline); ok {
		docs = bp.AnnotateMany(ctx, trimmed, a.deps.filters, workers, batchSize, logFailedBatch)
	} else {
		docs = a.annotateEach(ctx, trimmed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	live := make([]*domain.AnnotatedDocument, 0, len(docs))
	for i, d := range docs {
		if d == nil || strings.TrimSpace(d.Text) == "" {
			docs[i] = nil
			continue
		}
		live = append(live, d)
	}
	if len(live) < len(texts) {
		logger.Warn("Found at least one failed batch and set output for enclosed texts to empty")
	}
	runClassifiers(ctx, a.deps.classifiers, live)

	out := make([]domain.AnnotationOutput, len(texts))
	for i := range texts {
		if i < len(docs) {
			out[i] = a.output.Build(docs[i])
		} else {
			out[i] = a.output.Build(nil)
		}
	}
	return out, nil
}

func (a *Annotator) annotateEach(ctx context.Context, texts []string) []*domain.AnnotatedDocument {
	docs := make([]*domain.AnnotatedDocument, len(texts))
	for i, t := range texts {
		if ctx.Err() != nil {
			break
		}
		err := safeCall(func() error {
			d, err := a.pipeline.Annotate(ctx, t, a.deps.filters)
			docs[i] = d
			return err
		})
		if err != nil {
			logFailedBatch("annotate", []string{t}, err)
			docs[i] = nil
		}
	}
	return docs
}

// logFailedBatch is the pipeline error handler used for positional annotation.
func logFailedBatch(stage string, inputs []string, err error) {
	logger.Warn("Exception raised when applying component %s to a batch of docs: %v", stage, err)
	if len(inputs) == 0 {
		return
	}
	logger.Warn("Docs contained in the batch:")
	for _, in := range inputs {
		logger.Warn("%s...", preview(in, errorPreview))
	}
}
