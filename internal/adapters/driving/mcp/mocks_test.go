package mcp

import (
	"context"
	"iter"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// mockAnnotator is a mock implementation of driving.Annotator.
type mockAnnotator struct {
	output domain.AnnotationOutput
	err    error
	texts  []string
}

func (m *mockAnnotator) Annotate(_ context.Context, text string) (domain.AnnotationOutput, error) {
	m.texts = append(m.texts, text)
	return m.output, m.err
}

func (m *mockAnnotator) AnnotateTexts(_ context.Context, texts []string, _, _ int) ([]domain.AnnotationOutput, error) {
	out := make([]domain.AnnotationOutput, len(texts))
	for i := range out {
		out[i] = m.output
	}
	return out, m.err
}

// mockConcepts is a mock implementation of driving.ConceptBrowser.
type mockConcepts struct {
	concepts map[string]domain.Concept
	lookup   []domain.Concept
	err      error
}

func (m *mockConcepts) Concept(cui string) (domain.Concept, error) {
	if m.err != nil {
		return domain.Concept{}, m.err
	}
	c, ok := m.concepts[cui]
	if !ok {
		return domain.Concept{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockConcepts) Lookup(_ string) []domain.Concept {
	return m.lookup
}

// mockTrainer is a mock implementation of driving.Trainer recording
// curation calls.
type mockTrainer struct {
	requests []domain.ConceptTraining
	unlinked [][2]string
	err      error
}

func (m *mockTrainer) TrainSupervised(context.Context, *domain.Dataset, *domain.FilterContext,
	domain.TrainOptions) (*domain.StatsReport, error) {
	return nil, nil
}

func (m *mockTrainer) Train(context.Context, iter.Seq[string], domain.UnsupervisedOptions) error {
	return nil
}

func (m *mockTrainer) AddAndTrainConcept(_ context.Context, req domain.ConceptTraining) error {
	m.requests = append(m.requests, req)
	return m.err
}

func (m *mockTrainer) UnlinkConceptName(cui, name string) {
	m.unlinked = append(m.unlinked, [2]string{cui, name})
}

func (m *mockTrainer) ResetCUICounts([]string)      {}
func (m *mockTrainer) AddCUIToGroup(string, string) {}
