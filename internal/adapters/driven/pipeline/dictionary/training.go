package dictionary

import (
	"context"
	"fmt"
	"math"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// TrainConcept moves the context vector of cui towards the words around
// [start,end) in doc, or away from them when negative is set. Positive
// updates increment the concept's training counter; the effective rate
// decays with that counter. Without a vocabulary there is nothing to learn.
func (p *Pipeline) TrainConcept(ctx context.Context, cui string, doc *domain.AnnotatedDocument,
	start, end int, negative bool) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runes := []rune(doc.Text)
	if start < 0 || end > len(runes) || start >= end {
		return fmt.Errorf("%w: [%d,%d) in text of %d characters", domain.ErrInvalidSpan, start, end, len(runes))
	}

	ws := words(tokenize(runes))
	from, to := wordRange(ws, start, end)
	if from >= to {
		return nil
	}
	ctxVec := (&Linker{Vocab: p.vocab, Window: p.cfg.window}).contextVector(ws, from, to)
	if ctxVec == nil {
		return nil
	}

	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	count, _ := p.concepts.TrainCount(cui)
	lr := p.cfg.learningRate / math.Sqrt(1+float64(count))
	p.model.Update(cui, ctxVec, lr, negative)
	if !negative {
		p.concepts.SetTrainCount(cui, count+1)
	}
	return nil
}

// TrainText annotates text and trains every entity whose name links to
// exactly one concept.
func (p *Pipeline) TrainText(ctx context.Context, text string, filters *domain.FilterContext) error {
	doc, err := p.Annotate(ctx, text, filters)
	if err != nil {
		return err
	}
	for _, ent := range doc.Entities {
		if len(p.concepts.CUIsForName(ent.DetectedName)) != 1 {
			continue
		}
		if err := p.TrainConcept(ctx, ent.CUI, doc, ent.Start, ent.End, false); err != nil {
			return fmt.Errorf("train %s: %w", ent.CUI, err)
		}
	}
	return nil
}

// ResetTraining drops learned vectors and zeroes the counters of the
// concepts that had one.
func (p *Pipeline) ResetTraining() {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	for _, cui := range p.model.Reset() {
		p.concepts.SetTrainCount(cui, 0)
	}
}

// wordRange returns the indexes of the first word overlapping [start,end)
// and one past the last.
func wordRange(ws []Token, start, end int) (from, to int) {
	from = len(ws)
	for i, w := range ws {
		if w.End > start {
			from = i
			break
		}
	}
	to = from
	for to < len(ws) && ws[to].Start < end {
		to++
	}
	return from, to
}
