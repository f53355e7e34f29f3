package domain

import "sort"

// Entity is a concept mention predicted by the annotation pipeline.
// Start and End are character offsets into the annotated text.
type Entity struct {
	ID                int
	Start             int
	End               int
	CUI               string
	SourceValue       string
	DetectedName      string
	ContextSimilarity float64
	MetaAnns          map[string]MetaAnnotation
}

// MetaAnnotation is one auxiliary classifier decision about an entity,
// e.g. Status=Negated.
type MetaAnnotation struct {
	Name       string  `json:"name" msgpack:"name" yaml:"name"`
	Value      string  `json:"value" msgpack:"value" yaml:"value"`
	Confidence float64 `json:"confidence" msgpack:"confidence" yaml:"confidence"`
}

// AnnotatedDocument is the pipeline's view of a text after annotation.
type AnnotatedDocument struct {
	// Text is the text that was annotated, after any trimming.
	Text string

	// Entities are the non-overlapping top-level entities in text order.
	Entities []Entity

	// Nested holds every detected entity including overlapping spans.
	Nested []Entity
}

// Candidates returns the entities considered for matching: the nested set
// in overlap mode, the top-level set otherwise.
func (d *AnnotatedDocument) Candidates(overlaps bool) []Entity {
	if d == nil {
		return nil
	}
	if overlaps && d.Nested != nil {
		return d.Nested
	}
	return d.Entities
}

// SetMeta attaches a meta annotation to the entity with the given id in
// both entity sets. It reports whether the entity was found.
func (d *AnnotatedDocument) SetMeta(entityID int, meta MetaAnnotation) bool {
	found := false
	for _, set := range [][]Entity{d.Entities, d.Nested} {
		for i := range set {
			if set[i].ID != entityID {
				continue
			}
			if set[i].MetaAnns == nil {
				set[i].MetaAnns = make(map[string]MetaAnnotation)
			}
			set[i].MetaAnns[meta.Name] = meta
			found = true
		}
	}
	return found
}

// EntityOutput is the serialisable form of one entity. In CUI-only output
// every field except CUI is left empty.
type EntityOutput struct {
	PrettyName        string                    `json:"pretty_name,omitempty" msgpack:"pretty_name,omitempty" yaml:"pretty_name,omitempty"`
	CUI               string                    `json:"cui" msgpack:"cui" yaml:"cui"`
	TypeIDs           []string                  `json:"type_ids,omitempty" msgpack:"type_ids,omitempty" yaml:"type_ids,omitempty"`
	Types             []string                  `json:"types,omitempty" msgpack:"types,omitempty" yaml:"types,omitempty"`
	SourceValue       string                    `json:"source_value,omitempty" msgpack:"source_value,omitempty" yaml:"source_value,omitempty"`
	DetectedName      string                    `json:"detected_name,omitempty" msgpack:"detected_name,omitempty" yaml:"detected_name,omitempty"`
	Acc               float64                   `json:"acc,omitempty" msgpack:"acc,omitempty" yaml:"acc,omitempty"`
	ContextSimilarity float64                   `json:"context_similarity,omitempty" msgpack:"context_similarity,omitempty" yaml:"context_similarity,omitempty"`
	Start             int                       `json:"start" msgpack:"start" yaml:"start"`
	End               int                       `json:"end" msgpack:"end" yaml:"end"`
	ID                int                       `json:"id" msgpack:"id" yaml:"id"`
	AddlInfo          map[string][]string       `json:"addl_info,omitempty" msgpack:"addl_info,omitempty" yaml:"addl_info,omitempty"`
	MetaAnns          map[string]MetaAnnotation `json:"meta_anns,omitempty" msgpack:"meta_anns,omitempty" yaml:"meta_anns,omitempty"`
}

// AnnotationOutput is the per-document inference result keyed by entity id.
type AnnotationOutput struct {
	Entities map[int]EntityOutput `json:"entities" msgpack:"entities" yaml:"entities"`
	Text     string               `json:"text,omitempty" msgpack:"text,omitempty" yaml:"text,omitempty"`
}

// EntityIDs returns the entity ids in ascending order.
func (o AnnotationOutput) EntityIDs() []int {
	ids := make([]int, 0, len(o.Entities))
	for id := range o.Entities {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MergeMeta copies meta annotations onto the output's entities by id.
// Unknown ids are ignored.
func (o AnnotationOutput) MergeMeta(byEntity map[int]map[string]MetaAnnotation) {
	for id, metas := range byEntity {
		ent, ok := o.Entities[id]
		if !ok {
			continue
		}
		if ent.MetaAnns == nil {
			ent.MetaAnns = make(map[string]MetaAnnotation, len(metas))
		}
		for name, m := range metas {
			ent.MetaAnns[name] = m
		}
		o.Entities[id] = ent
	}
}

// ToDocument rebuilds an annotated document from serialised output so
// batch classifiers can run over merged results. Entities are ordered by id.
func (o AnnotationOutput) ToDocument(text string) *AnnotatedDocument {
	doc := &AnnotatedDocument{Text: text}
	for _, id := range o.EntityIDs() {
		e := o.Entities[id]
		doc.Entities = append(doc.Entities, Entity{
			ID:                e.ID,
			Start:             e.Start,
			End:               e.End,
			CUI:               e.CUI,
			SourceValue:       e.SourceValue,
			DetectedName:      e.DetectedName,
			ContextSimilarity: e.ContextSimilarity,
		})
	}
	return doc
}
