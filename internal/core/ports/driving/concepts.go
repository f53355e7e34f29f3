package driving

import "github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"

// ConceptBrowser gives read access to the concept database.
type ConceptBrowser interface {
	// Concept returns one concept or domain.ErrNotFound.
	Concept(cui string) (domain.Concept, error)

	// Lookup returns the concepts a surface form links to, sorted by CUI.
	Lookup(name string) []domain.Concept
}
