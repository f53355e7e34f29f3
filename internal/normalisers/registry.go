package normalisers

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/normalisers/html"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/normalisers/markdown"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/normalisers/plaintext"
)

// Ensure Registry can be handed to the corpus reader.
var _ driven.ExtractorSet = (*Registry)(nil)

// Registry selects a text extractor by file extension.
type Registry struct {
	byExt map[string][]driven.TextExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.TextExtractor)}
}

// Register adds an extractor for each of its extensions.
func (r *Registry) Register(e driven.TextExtractor) {
	for _, ext := range e.Extensions() {
		ext = strings.ToLower(ext)
		list := append(r.byExt[ext], e)
		// Stable, so equal priorities keep registration order.
		slices.SortStableFunc(list, func(a, b driven.TextExtractor) int {
			return b.Priority() - a.Priority()
		})
		r.byExt[ext] = list
	}
}

// For returns the highest-priority extractor for path's extension.
func (r *Registry) For(path string) (driven.TextExtractor, bool) {
	list := r.byExt[strings.ToLower(filepath.Ext(path))]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// RegisterDefaults registers the built-in extractors.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(html.New())
	r.Register(markdown.New())
}

// Defaults returns a registry with the built-in extractors.
func Defaults() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
