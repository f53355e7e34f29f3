package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// Ensure StatsEngine implements the interface.
var _ driving.Evaluator = (*StatsEngine)(nil)

// exampleContext is the number of characters kept either side of a mention
// in report examples.
const exampleContext = 60

// StatsEngine reconciles gold annotations against pipeline predictions.
type StatsEngine struct {
	pipeline driven.Pipeline
	concepts driven.ConceptStore
}

// NewStatsEngine creates a stats engine. The concept store is optional; it
// resolves groups, project type ids and display names.
func NewStatsEngine(pipeline driven.Pipeline, concepts driven.ConceptStore) *StatsEngine {
	return &StatsEngine{pipeline: pipeline, concepts: concepts}
}

// goldKey is the matching key of an annotation: start offset and
// (possibly grouped) CUI.
type goldKey struct {
	start int
	cui   string
}

// Evaluate runs the pipeline once per document and reconciles its
// predictions against the gold annotations.
func (e *StatsEngine) Evaluate(
	ctx context.Context,
	ds *domain.Dataset,
	filters *domain.FilterContext,
	opts domain.EvalOptions,
) (*domain.StatsReport, error) {
	if e.pipeline == nil {
		return nil, domain.ErrPipelineUnavailable
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset", domain.ErrInvalidDataset)
	}
	if filters == nil {
		filters = domain.NewFilterContext()
	}
	guard := filters.Acquire()
	defer guard.Release()

	report := domain.NewStatsReport(opts.Epoch)
	fpDocs := map[string]struct{}{}
	fnDocs := map[string]struct{}{}

	for pind, project := range ds.Projects {
		filters.Set(projectFilter(e.concepts, project, opts.UseProjectFilters, opts.ExtraCUIFilter))

		for dind, doc := range project.Documents {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if opts.UseCUIDocLimit {
				if cuis := doc.CUIs(); len(cuis) > 0 {
					filters.Set(domain.IntersectNonEmpty(cuis, opts.ExtraCUIFilter))
				} else {
					filters.SetEmpty()
				}
			}

			runes := []rune(doc.Text)
			if err := checkSpans(doc, len(runes)); err != nil {
				logger.Warn("Skipping document %s: %v", doc.Label(), err)
				continue
			}

			pred, err := e.pipeline.Annotate(ctx, doc.Text, filters)
			if err != nil {
				return nil, fmt.Errorf("annotate document %s: %w", doc.Label(), err)
			}

			r := docReconciler{
				report: report,
				runes:  runes,
				pind:   pind,
				dind:   dind,
				group:  e.groupFunc(opts.UseGroups),
			}
			fp, fn := r.reconcile(doc, pred.Candidates(opts.UseOverlaps), filters)
			if fp {
				fpDocs[doc.Label()] = struct{}{}
			}
			if fn {
				fnDocs[doc.Label()] = struct{}{}
			}
		}
	}

	report.FPDocs = sortedSet(fpDocs)
	report.FNDocs = sortedSet(fnDocs)
	e.aggregate(report)
	return report, nil
}

func (e *StatsEngine) groupFunc(useGroups bool) func(string) string {
	if !useGroups || e.concepts == nil {
		return func(cui string) string { return cui }
	}
	return func(cui string) string {
		if g, ok := e.concepts.Group(cui); ok {
			return g
		}
		return cui
	}
}

// docReconciler accumulates one document's contribution to a report.
type docReconciler struct {
	report *domain.StatsReport
	runes  []rune
	pind   int
	dind   int
	group  func(string) string
}

// reconcile updates the report and reports whether the document produced
// any false positive and any false negative.
func (r docReconciler) reconcile(doc domain.Document, predicted []domain.Entity,
	filters *domain.FilterContext) (hasFP, hasFN bool) {
	var gold []goldKey
	var goldExamples []domain.Example
	positive := map[goldKey]struct{}{}
	negative := map[goldKey]struct{}{}

	for _, ann := range doc.Annotations {
		if !filters.Allows(ann.CUI) {
			continue
		}
		cui := r.group(ann.CUI)
		key := goldKey{start: ann.Start, cui: cui}

		switch {
		case ann.IsPositive():
			gold = append(gold, key)
			positive[key] = struct{}{}
			goldExamples = append(goldExamples, r.example(ann.Start, ann.End, cui, ann.Value, 1))
		case ann.IsNegative():
			negative[key] = struct{}{}
		}
		r.report.CUICounts[cui]++
	}

	seen := map[goldKey]struct{}{}
	for _, ent := range predicted {
		cui := r.group(ent.CUI)
		key := goldKey{start: ent.Start, cui: cui}
		seen[key] = struct{}{}
		ex := r.example(ent.Start, ent.End, cui, ent.SourceValue, ent.ContextSimilarity)

		if _, ok := positive[key]; ok {
			r.report.TP++
			r.report.TPs[cui]++
			r.report.Examples.TP[cui] = append(r.report.Examples.TP[cui], ex)
			continue
		}

		r.report.FP++
		r.report.FPs[cui]++
		hasFP = true
		if _, ok := negative[key]; ok {
			ex.RealFP = true
		}
		r.report.Examples.FP[cui] = append(r.report.Examples.FP[cui], ex)
	}

	for i, key := range gold {
		if _, ok := seen[key]; ok {
			continue
		}
		r.report.FN++
		r.report.FNs[key.cui]++
		hasFN = true
		r.report.Examples.FN[key.cui] = append(r.report.Examples.FN[key.cui], goldExamples[i])
	}
	return hasFP, hasFN
}

func (r docReconciler) example(start, end int, cui, value string, acc float64) domain.Example {
	return domain.Example{
		Text:          contextWindow(r.runes, start, end),
		CUI:           cui,
		SourceValue:   value,
		Acc:           acc,
		ProjectIndex:  r.pind,
		DocumentIndex: r.dind,
	}
}

// aggregate derives rankings and ratios. Undefined ratios are reported as
// zero and logged; the rest of the report is still filled in.
func (e *StatsEngine) aggregate(report *domain.StatsReport) {
	report.RankedFP = domain.RankCounts(report.FPs)
	report.RankedFN = domain.RankCounts(report.FNs)
	report.RankedTP = domain.RankCounts(report.TPs)

	var undefined []string
	report.Precision = ratio(report.TP, report.TP+report.FP, "precision", &undefined)
	report.Recall = ratio(report.TP, report.TP+report.FN, "recall", &undefined)
	report.F1 = harmonic(report.Precision, report.Recall)
	if len(undefined) > 0 {
		logger.Warn("Epoch %d: %s undefined, reported as 0", report.Epoch, strings.Join(undefined, " and "))
	}

	for cui, tp := range report.TPs {
		p := float64(tp) / float64(tp+report.FPs[cui])
		r := float64(tp) / float64(tp+report.FNs[cui])
		report.CUIPrecision[cui] = p
		report.CUIRecall[cui] = r
		report.CUIF1[cui] = harmonic(p, r)
	}

	report.TopFP = e.topN(report.RankedFP)
	report.TopFN = e.topN(report.RankedFN)
	report.TopTP = e.topN(report.RankedTP)

	logger.Info("Epoch: %d, Prec: %.4f, Rec: %.4f, F1: %.4f",
		report.Epoch, report.Precision, report.Recall, report.F1)
	logger.Info("Docs with false positives: %s", strings.Join(head(report.FPDocs, domain.TopN), "; "))
	logger.Info("Docs with false negatives: %s", strings.Join(head(report.FNDocs, domain.TopN), "; "))
}

func (e *StatsEngine) topN(ranked []domain.CUICount) []domain.RankedConcept {
	ranked = head(ranked, domain.TopN)
	out := make([]domain.RankedConcept, 0, len(ranked))
	for _, c := range ranked {
		name := c.CUI
		if e.concepts != nil {
			name = e.concepts.DisplayName(c.CUI)
		}
		out = append(out, domain.RankedConcept{Name: name, CUI: c.CUI, Count: c.Count})
	}
	return out
}

// projectFilter builds the allow-list for a project: the extra filter,
// intersected with the project's own CUIs and type-id CUIs when requested.
func projectFilter(concepts driven.ConceptStore, p domain.Project, useProject bool, extra []string) []string {
	if !useProject {
		return extra
	}
	cuis := append([]string(nil), p.CUIs...)
	if len(p.TypeIDs) > 0 && concepts != nil {
		cuis = append(cuis, concepts.CUIsForTypeIDs(p.TypeIDs)...)
	}
	if len(cuis) == 0 {
		return extra
	}
	return domain.IntersectNonEmpty(cuis, extra)
}

// checkSpans rejects gold annotations that are empty or fall outside the
// text, matching what the pipeline accepts for training.
func checkSpans(doc domain.Document, n int) error {
	for _, ann := range doc.Annotations {
		if ann.Start < 0 || ann.End <= ann.Start || ann.End > n {
			return fmt.Errorf("%w: [%d,%d) in %d characters (cui %s)",
				domain.ErrInvalidSpan, ann.Start, ann.End, n, ann.CUI)
		}
	}
	return nil
}

// contextWindow returns the mention with exampleContext characters of
// context either side, clamped to the text.
func contextWindow(runes []rune, start, end int) string {
	lo := max(0, start-exampleContext)
	hi := min(len(runes), end+exampleContext)
	if lo >= hi {
		return ""
	}
	return string(runes[lo:hi])
}

func ratio(num, den int, name string, undefined *[]string) float64 {
	if den == 0 {
		*undefined = append(*undefined, name)
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
