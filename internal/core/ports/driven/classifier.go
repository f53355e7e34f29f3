package driven

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// MetaClassifier attaches auxiliary decisions (e.g. negation) to entities.
// It works on batches because per-document invocation is far slower for
// model-backed classifiers.
type MetaClassifier interface {
	// Name is the meta annotation category the classifier produces.
	Name() string

	// ClassifyBatch attaches meta annotations in place with
	// AnnotatedDocument.SetMeta, keyed by entity id.
	ClassifyBatch(ctx context.Context, docs []*domain.AnnotatedDocument) error
}
