package dictionary

import (
	"context"
	"math"
	"sort"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/vocab"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Linker resolves each span to one CUI the filter allows.
//
// A name with a single allowed CUI is always linked. An ambiguous name is
// linked to the CUI whose learned context is most similar to the words
// around the span, provided the similarity reaches Threshold. When none of
// the candidates has been trained the most trained concept wins, ties
// broken by CUI.
type Linker struct {
	Concepts  driven.ConceptStore
	Vocab     *vocab.Vocab
	Model     *ContextModel
	Threshold float64
	Window    int
}

// Name returns the component name.
func (l *Linker) Name() string { return "linker" }

// Process fills doc.Linked.
func (l *Linker) Process(_ context.Context, doc *Doc) error {
	ws := words(doc.Tokens)
	for _, span := range doc.Spans {
		allowed := make([]string, 0, len(span.CUIs))
		for _, cui := range span.CUIs {
			if doc.Filters.Allows(cui) {
				allowed = append(allowed, cui)
			}
		}
		if len(allowed) == 0 {
			continue
		}

		ctxVec := l.contextVector(ws, span.WordStart, span.WordEnd)
		cui, sim, ok := l.choose(allowed, ctxVec)
		if !ok {
			continue
		}
		doc.Linked = append(doc.Linked, domain.Entity{
			Start:             span.Start,
			End:               span.End,
			CUI:               cui,
			SourceValue:       string(doc.Runes[span.Start:span.End]),
			DetectedName:      span.Name,
			ContextSimilarity: sim,
		})
	}
	return nil
}

func (l *Linker) choose(cuis []string, ctxVec []float64) (string, float64, bool) {
	if len(cuis) == 1 {
		sim, ok := l.Model.Similarity(cuis[0], ctxVec)
		if !ok {
			sim = 1
		}
		return cuis[0], sim, true
	}

	best, bestSim, trained := "", math.Inf(-1), false
	for _, cui := range cuis {
		sim, ok := l.Model.Similarity(cui, ctxVec)
		if !ok {
			continue
		}
		trained = true
		if sim > bestSim {
			best, bestSim = cui, sim
		}
	}
	if trained {
		if bestSim < l.Threshold {
			return "", 0, false
		}
		return best, bestSim, true
	}

	best, bestCount := cuis[0], -1
	for _, cui := range cuis {
		if n, _ := l.Concepts.TrainCount(cui); n > bestCount {
			best, bestCount = cui, n
		}
	}
	return best, 0, true
}

// contextVector embeds up to Window words either side of the span.
func (l *Linker) contextVector(ws []Token, from, to int) []float64 {
	if l.Vocab == nil {
		return nil
	}
	return l.Vocab.Embed(contextWords(ws, from, to, l.Window))
}

func contextWords(ws []Token, from, to, window int) []string {
	lo := max(0, from-window)
	hi := min(len(ws), to+window)
	out := make([]string, 0, (from-lo)+(hi-to))
	for _, w := range ws[lo:from] {
		out = append(out, w.Lower)
	}
	for _, w := range ws[to:hi] {
		out = append(out, w.Lower)
	}
	return out
}

// Overlaps assigns entity ids and splits linked spans into the nested set
// and the non-overlapping top-level set, preferring the longest span at
// each position.
type Overlaps struct{}

// Name returns the component name.
func (Overlaps) Name() string { return "overlaps" }

// Process fills doc.Entities and doc.Nested.
func (Overlaps) Process(_ context.Context, doc *Doc) error {
	linked := doc.Linked
	sort.SliceStable(linked, func(i, j int) bool {
		if linked[i].Start != linked[j].Start {
			return linked[i].Start < linked[j].Start
		}
		if linked[i].End != linked[j].End {
			return linked[i].End > linked[j].End
		}
		return linked[i].CUI < linked[j].CUI
	})

	doc.Nested = nil
	doc.Entities = nil
	end := 0
	for i := range linked {
		linked[i].ID = i
		doc.Nested = append(doc.Nested, linked[i])
		if linked[i].Start >= end {
			doc.Entities = append(doc.Entities, linked[i])
			end = linked[i].End
		}
	}
	return nil
}
