package services

import (
	"sort"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
)

// Ensure ConceptService implements the interface.
var _ driving.ConceptBrowser = (*ConceptService)(nil)

// ConceptService answers concept database queries.
type ConceptService struct {
	concepts   driven.ConceptStore
	normaliser driven.NameNormaliser
}

// NewConceptService creates a concept service.
func NewConceptService(concepts driven.ConceptStore, normaliser driven.NameNormaliser) *ConceptService {
	return &ConceptService{concepts: concepts, normaliser: normaliser}
}

// Concept returns one concept.
func (s *ConceptService) Concept(cui string) (domain.Concept, error) {
	if s.concepts == nil {
		return domain.Concept{}, domain.ErrMissingConceptDB
	}
	return s.concepts.Concept(strings.TrimSpace(cui))
}

// Lookup prepares name and returns every concept linked to any of its
// prepared forms.
func (s *ConceptService) Lookup(name string) []domain.Concept {
	if s.concepts == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	names := []string{strings.ToLower(strings.TrimSpace(name))}
	if s.normaliser != nil {
		names = s.normaliser.PrepareName(name)
	}

	seen := make(map[string]struct{})
	var out []domain.Concept
	for _, n := range names {
		for _, cui := range s.concepts.CUIsForName(n) {
			if _, ok := seen[cui]; ok {
				continue
			}
			seen[cui] = struct{}{}
			if c, err := s.concepts.Concept(cui); err == nil {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CUI < out[j].CUI })
	return out
}
