package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// unknownDocument is the label used for documents exported without a name.
const unknownDocument = "unk"

// Dataset is a trainer export: the human-curated projects used for
// evaluation and supervised training. It is read-only once loaded.
type Dataset struct {
	// Projects are the annotation projects in export order.
	Projects []Project `json:"projects"`
}

// Project is a named collection of documents with optional filters.
type Project struct {
	// ID is the exporter's identifier for the project.
	ID FlexString `json:"id,omitempty"`

	// Name is the human-readable project name.
	Name string `json:"name,omitempty"`

	// CUIs restricts the project to these concepts when project filters are used.
	CUIs StringList `json:"cuis,omitempty"`

	// TypeIDs restricts the project to concepts of these semantic types.
	TypeIDs StringList `json:"tuis,omitempty"`

	// Documents are the annotated documents.
	Documents []Document `json:"documents"`
}

// Document is a single annotated text.
type Document struct {
	// ID is the exporter's identifier for the document.
	ID FlexString `json:"id,omitempty"`

	// Name identifies the document in reports.
	Name string `json:"name,omitempty"`

	// Text is the raw document text. Annotation offsets index its characters.
	Text string `json:"text"`

	// Annotations are the gold annotations in export order.
	Annotations []GoldAnnotation `json:"annotations"`
}

// Label returns the document name used in diagnostics.
func (d Document) Label() string {
	if d.Name == "" {
		return unknownDocument
	}
	return d.Name
}

// CUIs returns the distinct concepts annotated in the document, sorted.
func (d Document) CUIs() []string {
	seen := make(map[string]struct{}, len(d.Annotations))
	for _, ann := range d.Annotations {
		seen[ann.CUI] = struct{}{}
	}
	return sortedKeys(seen)
}

// UnmarshalJSON accepts annotations either as a list or as an object keyed
// by annotation id. Object entries are ordered by numeric key when every key
// is numeric, lexically otherwise.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var raw struct {
		plain
		Annotations json.RawMessage `json:"annotations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document(raw.plain)
	d.Annotations = nil

	body := bytes.TrimSpace(raw.Annotations)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	switch body[0] {
	case '[':
		return json.Unmarshal(body, &d.Annotations)
	case '{':
		var keyed map[string]GoldAnnotation
		if err := json.Unmarshal(body, &keyed); err != nil {
			return err
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sortAnnotationKeys(keys)
		d.Annotations = make([]GoldAnnotation, 0, len(keys))
		for _, k := range keys {
			ann := keyed[k]
			if ann.ID == "" {
				ann.ID = FlexString(k)
			}
			d.Annotations = append(d.Annotations, ann)
		}
		return nil
	default:
		return fmt.Errorf("%w: annotations must be a list or a mapping", ErrInvalidDataset)
	}
}

func sortAnnotationKeys(keys []string) {
	numeric := true
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
}

// GoldAnnotation is a human-curated concept mention.
type GoldAnnotation struct {
	// ID is the exporter's identifier for the annotation.
	ID FlexString `json:"id,omitempty"`

	// Start and End are character offsets into the document text.
	Start int `json:"start"`
	End   int `json:"end"`

	// CUI is the annotated concept.
	CUI string `json:"cui"`

	// Value is the source text of the mention.
	Value string `json:"value"`

	// Validated marks annotations reviewed by a human. Defaults to true.
	Validated bool `json:"validated"`

	// Killed marks a name that must never link to this concept again.
	Killed bool `json:"killed"`

	// Deleted marks a mention rejected for this concept at this location.
	Deleted bool `json:"deleted"`
}

// IsPositive reports whether the annotation is a positive example.
func (a GoldAnnotation) IsPositive() bool {
	return a.Validated && !a.Killed && !a.Deleted
}

// IsNegative reports whether the annotation is an explicit rejection.
func (a GoldAnnotation) IsNegative() bool {
	return a.Validated && (a.Killed || a.Deleted)
}

// UnmarshalJSON applies the export default of validated=true.
func (a *GoldAnnotation) UnmarshalJSON(data []byte) error {
	type plain GoldAnnotation
	aux := struct {
		*plain
		Validated *bool `json:"validated"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Validated = aux.Validated == nil || *aux.Validated
	return nil
}

// FlexString is a string that also decodes from a JSON number.
// Trainer exports are not consistent about identifier types.
type FlexString string

// UnmarshalJSON decodes a string or a number.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: identifier %s", ErrInvalidDataset, string(data))
	}
	*f = FlexString(n.String())
	return nil
}

// StringList decodes from a JSON list of strings or a comma separated string.
type StringList []string

// UnmarshalJSON decodes either representation, trimming blanks.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var items []string
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		items = strings.Split(s, ",")
	} else if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: expected list of strings", ErrInvalidDataset)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

// DocumentCount returns the number of documents across all projects.
func (ds *Dataset) DocumentCount() int {
	n := 0
	for _, p := range ds.Projects {
		n += len(p.Documents)
	}
	return n
}

// CUIs returns every annotated concept in the dataset, sorted.
func (ds *Dataset) CUIs() []string {
	seen := make(map[string]struct{})
	for _, p := range ds.Projects {
		for _, d := range p.Documents {
			for _, ann := range d.Annotations {
				seen[ann.CUI] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
