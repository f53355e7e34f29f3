package driven

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Pipeline annotates a single text with concepts.
// Implementations must honour the filter: entities whose CUI the filter
// rejects are never returned.
type Pipeline interface {
	// Annotate runs recognition and linking over text.
	Annotate(ctx context.Context, text string, filters *domain.FilterContext) (*domain.AnnotatedDocument, error)
}

// ErrorHandler receives a failing pipeline stage, the inputs of the batch
// that failed, and the error.
type ErrorHandler func(stage string, inputs []string, err error)

// BulkPipeline is the batched form of Pipeline.
type BulkPipeline interface {
	Pipeline

	// AnnotateMany annotates texts using up to workers goroutines and
	// batches of batchSize texts. The result has one entry per input in
	// input order; entries for inputs in a failed batch are nil and the
	// handler is called once for that batch.
	AnnotateMany(ctx context.Context, texts []string, filters *domain.FilterContext,
		workers, batchSize int, onError ErrorHandler) []*domain.AnnotatedDocument
}
