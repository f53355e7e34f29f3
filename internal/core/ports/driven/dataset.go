package driven

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// DatasetLoader reads trainer exports.
type DatasetLoader interface {
	Load(ctx context.Context, path string) (*domain.Dataset, error)
}
