package driving

import (
	"context"
	"iter"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Trainer drives supervised and self-supervised training.
// Like Evaluator, one call at a time per filter context.
type Trainer interface {
	// TrainSupervised runs online training over a trainer export and
	// returns the last evaluation report, or nil when stats were not requested.
	TrainSupervised(ctx context.Context, ds *domain.Dataset, filters *domain.FilterContext,
		opts domain.TrainOptions) (*domain.StatsReport, error)

	// Train runs self-supervised training over raw lines.
	Train(ctx context.Context, lines iter.Seq[string], opts domain.UnsupervisedOptions) error

	// AddAndTrainConcept links a name to a concept and optionally trains it.
	AddAndTrainConcept(ctx context.Context, req domain.ConceptTraining) error

	// UnlinkConceptName stops a name from ever linking to the CUI.
	UnlinkConceptName(cui, name string)

	// ResetCUICounts resets training counters of known CUIs.
	ResetCUICounts(cuis []string)

	// AddCUIToGroup maps a CUI to a group for grouped evaluation.
	AddCUIToGroup(cui, group string)
}
