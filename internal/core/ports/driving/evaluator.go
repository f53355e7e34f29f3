package driving

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Evaluator reconciles gold annotations against pipeline predictions.
//
// The filter context is mutated during the call and restored before it
// returns. Callers must not run two evaluation or training calls on the
// same filter context concurrently.
type Evaluator interface {
	Evaluate(ctx context.Context, ds *domain.Dataset, filters *domain.FilterContext,
		opts domain.EvalOptions) (*domain.StatsReport, error)
}
