package services

import (
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// OutputBuilder converts annotated documents into serialisable output.
type OutputBuilder struct {
	Concepts    driven.ConceptStore
	OnlyCUI     bool
	AddlInfo    []string
	IncludeText bool
	Nested      bool
}

// Build converts doc. A nil doc yields an empty output.
func (b OutputBuilder) Build(doc *domain.AnnotatedDocument) domain.AnnotationOutput {
	out := domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{}}
	if doc == nil {
		return out
	}

	for _, ent := range doc.Candidates(b.Nested) {
		if b.OnlyCUI {
			out.Entities[ent.ID] = domain.EntityOutput{CUI: ent.CUI, ID: ent.ID}
			continue
		}
		out.Entities[ent.ID] = b.entity(ent)
	}
	if b.IncludeText {
		out.Text = doc.Text
	}
	return out
}

func (b OutputBuilder) entity(ent domain.Entity) domain.EntityOutput {
	eo := domain.EntityOutput{
		PrettyName:        ent.CUI,
		CUI:               ent.CUI,
		SourceValue:       ent.SourceValue,
		DetectedName:      ent.DetectedName,
		Acc:               ent.ContextSimilarity,
		ContextSimilarity: ent.ContextSimilarity,
		Start:             ent.Start,
		End:               ent.End,
		ID:                ent.ID,
	}
	if len(ent.MetaAnns) > 0 {
		eo.MetaAnns = make(map[string]domain.MetaAnnotation, len(ent.MetaAnns))
		for k, v := range ent.MetaAnns {
			eo.MetaAnns[k] = v
		}
	}
	if b.Concepts == nil {
		return eo
	}

	eo.PrettyName = b.Concepts.DisplayName(ent.CUI)
	if c, err := b.Concepts.Concept(ent.CUI); err == nil {
		eo.TypeIDs = append([]string(nil), c.TypeIDs...)
		for _, tid := range c.TypeIDs {
			eo.Types = append(eo.Types, b.Concepts.TypeName(tid))
		}
	}
	for _, field := range b.AddlInfo {
		if eo.AddlInfo == nil {
			eo.AddlInfo = make(map[string][]string, len(b.AddlInfo))
		}
		eo.AddlInfo[addlInfoKey(field)] = b.Concepts.AddlInfo(field, ent.CUI)
	}
	return eo
}

// addlInfoKey maps a field such as cui2icd10 to its output key, icd10.
func addlInfoKey(field string) string {
	parts := strings.Split(field, "2")
	return parts[len(parts)-1]
}
