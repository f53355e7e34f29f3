package driven

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// ConceptStore is the concept database: names, CUIs and their metadata.
// Implementations must be safe for concurrent use.
type ConceptStore interface {
	// Concept returns the concept or domain.ErrNotFound.
	Concept(cui string) (domain.Concept, error)

	// HasConcept reports whether the CUI is known.
	HasConcept(cui string) bool

	// AddConcept creates the concept or links additional names to it.
	// Type ids and the preferred name are only set when absent.
	AddConcept(c domain.Concept) error

	// CUIsForName returns every CUI linked to a prepared name.
	CUIsForName(name string) []string

	// CUIsForTypeIDs returns every CUI carrying any of the type ids.
	CUIsForTypeIDs(typeIDs []string) []string

	// RemoveNames unlinks prepared names from a concept.
	RemoveNames(cui string, names []string)

	// DisplayName returns the preferred name, the first name, or the CUI.
	DisplayName(cui string) string

	// TypeName resolves a type id to its human-readable name.
	TypeName(typeID string) string

	// Group returns the group a CUI is mapped to, if any.
	Group(cui string) (string, bool)

	// SetGroup maps a CUI to a group.
	SetGroup(cui, group string)

	// TrainCount returns the concept's training counter.
	TrainCount(cui string) (int, bool)

	// SetTrainCount overwrites the training counter of a known concept.
	SetTrainCount(cui string, n int)

	// AddlInfo returns extra values for a CUI under a field such as cui2icd10.
	AddlInfo(field, cui string) []string
}

// NameNormaliser turns a surface form into the prepared names used as
// concept database keys.
type NameNormaliser interface {
	PrepareName(name string) []string
}

// ContextTrainer updates linking state from examples.
type ContextTrainer interface {
	// TrainConcept trains the span [start,end) of doc towards the CUI,
	// or away from it when negative is set.
	TrainConcept(ctx context.Context, cui string, doc *domain.AnnotatedDocument, start, end int, negative bool) error

	// TrainText runs self-supervised training over a raw text.
	TrainText(ctx context.Context, text string, filters *domain.FilterContext) error

	// ResetTraining discards learned context and training counters.
	ResetTraining()
}
