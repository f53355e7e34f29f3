package driving

import (
	"context"
	"iter"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Annotator produces annotation output for texts.
type Annotator interface {
	// Annotate annotates one text.
	Annotate(ctx context.Context, text string) (domain.AnnotationOutput, error)

	// AnnotateTexts annotates texts positionally. Inputs that fail yield
	// an empty output at the same index.
	AnnotateTexts(ctx context.Context, texts []string, workers, batchSize int) ([]domain.AnnotationOutput, error)
}

// BulkAnnotator runs resumable parallel inference over a corpus.
type BulkAnnotator interface {
	// Run annotates every item not already recorded in the checkpoint
	// cursor. The result is keyed by item id and has no ordering.
	Run(ctx context.Context, items iter.Seq[domain.Item], opts domain.BulkOptions) (map[string]domain.AnnotationOutput, error)
}
