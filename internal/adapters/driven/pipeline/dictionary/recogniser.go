package dictionary

import (
	"context"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Span is a recognised name. Words indexes the span's first word and one
// past its last within the document's word tokens.
type Span struct {
	Start     int
	End       int
	Name      string
	CUIs      []string
	WordStart int
	WordEnd   int
}

// Recogniser finds every run of up to MaxTokens words whose prepared form
// is a concept name.
type Recogniser struct {
	Concepts      driven.ConceptStore
	MaxTokens     int
	MinNameLength int
}

// Name returns the component name.
func (r *Recogniser) Name() string { return "ner" }

// Process fills doc.Spans in text order, longer spans first at equal starts.
func (r *Recogniser) Process(ctx context.Context, doc *Doc) error {
	ws := words(doc.Tokens)
	var key strings.Builder
	for i := range ws {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var found []Span
		key.Reset()
		for j := i; j < len(ws) && j-i < r.MaxTokens; j++ {
			if j > i {
				key.WriteString(NameSep)
			}
			key.WriteString(ws[j].Lower)
			if ws[j].End-ws[i].Start < r.MinNameLength {
				continue
			}
			name := key.String()
			if cuis := r.Concepts.CUIsForName(name); len(cuis) > 0 {
				found = append(found, Span{
					Start:     ws[i].Start,
					End:       ws[j].End,
					Name:      name,
					CUIs:      cuis,
					WordStart: i,
					WordEnd:   j + 1,
				})
			}
		}
		for k := len(found) - 1; k >= 0; k-- {
			doc.Spans = append(doc.Spans, found[k])
		}
	}
	return nil
}
