package domain

import "sort"

// TopN is the length of the ranked concept lists in a StatsReport.
const TopN = 10

// Example is a gold or predicted mention shown with surrounding context.
type Example struct {
	Text          string  `json:"text" yaml:"text"`
	CUI           string  `json:"cui" yaml:"cui"`
	SourceValue   string  `json:"source_value" yaml:"source_value"`
	Acc           float64 `json:"acc" yaml:"acc"`
	ProjectIndex  int     `json:"project_index" yaml:"project_index"`
	DocumentIndex int     `json:"document_index" yaml:"document_index"`

	// RealFP marks a false positive at a location a human explicitly rejected.
	RealFP bool `json:"real_fp,omitempty" yaml:"real_fp,omitempty"`
}

// Examples groups examples by bucket and CUI.
type Examples struct {
	FP map[string][]Example `json:"fp" yaml:"fp"`
	FN map[string][]Example `json:"fn" yaml:"fn"`
	TP map[string][]Example `json:"tp" yaml:"tp"`
}

// CUICount is one entry of a ranked bucket.
type CUICount struct {
	CUI   string `json:"cui" yaml:"cui"`
	Count int    `json:"count" yaml:"count"`
}

// RankedConcept is a top-N entry resolved to a display name.
type RankedConcept struct {
	Name  string `json:"name" yaml:"name"`
	CUI   string `json:"cui" yaml:"cui"`
	Count int    `json:"count" yaml:"count"`
}

// StatsReport is the outcome of one evaluation pass.
type StatsReport struct {
	Epoch int `json:"epoch" yaml:"epoch"`

	TP int `json:"tp" yaml:"tp"`
	FP int `json:"fp" yaml:"fp"`
	FN int `json:"fn" yaml:"fn"`

	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`

	// Per-CUI bucket counts.
	FPs map[string]int `json:"fps" yaml:"fps"`
	FNs map[string]int `json:"fns" yaml:"fns"`
	TPs map[string]int `json:"tps" yaml:"tps"`

	// Buckets sorted by descending count, ties by CUI.
	RankedFP []CUICount `json:"ranked_fp" yaml:"ranked_fp"`
	RankedFN []CUICount `json:"ranked_fn" yaml:"ranked_fn"`
	RankedTP []CUICount `json:"ranked_tp" yaml:"ranked_tp"`

	// Per-CUI metrics, present only for CUIs with at least one TP.
	CUIPrecision map[string]float64 `json:"cui_precision" yaml:"cui_precision"`
	CUIRecall    map[string]float64 `json:"cui_recall" yaml:"cui_recall"`
	CUIF1        map[string]float64 `json:"cui_f1" yaml:"cui_f1"`

	// CUICounts counts gold annotations per CUI that passed the filter.
	CUICounts map[string]int `json:"cui_counts" yaml:"cui_counts"`

	Examples Examples `json:"examples" yaml:"examples"`

	// Sorted names of documents with at least one FP or FN.
	FPDocs []string `json:"fp_docs" yaml:"fp_docs"`
	FNDocs []string `json:"fn_docs" yaml:"fn_docs"`

	TopFP []RankedConcept `json:"top_fp" yaml:"top_fp"`
	TopFN []RankedConcept `json:"top_fn" yaml:"top_fn"`
	TopTP []RankedConcept `json:"top_tp" yaml:"top_tp"`
}

// NewStatsReport returns an empty report with every map allocated.
func NewStatsReport(epoch int) *StatsReport {
	return &StatsReport{
		Epoch:        epoch,
		FPs:          map[string]int{},
		FNs:          map[string]int{},
		TPs:          map[string]int{},
		CUIPrecision: map[string]float64{},
		CUIRecall:    map[string]float64{},
		CUIF1:        map[string]float64{},
		CUICounts:    map[string]int{},
		Examples: Examples{
			FP: map[string][]Example{},
			FN: map[string][]Example{},
			TP: map[string][]Example{},
		},
	}
}

// RankCounts sorts a bucket by descending count, ties broken by CUI.
func RankCounts(counts map[string]int) []CUICount {
	out := make([]CUICount, 0, len(counts))
	for cui, n := range counts {
		out = append(out, CUICount{CUI: cui, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CUI < out[j].CUI
	})
	return out
}
