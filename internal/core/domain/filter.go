package domain

import (
	"slices"
	"sort"
)

// EmptyFilterMarker is a CUI that no concept carries. A filter holding only
// the marker allows nothing, unlike an empty filter which allows everything.
const EmptyFilterMarker = "<empty>"

// FilterContext is the mutable CUI allow-set consulted by the pipeline,
// evaluation and training. It is not safe for concurrent mutation: one
// evaluation or training call may own it at a time.
type FilterContext struct {
	cuis map[string]struct{}
}

// NewFilterContext returns a filter allowing the given CUIs, or everything
// when none are given.
func NewFilterContext(cuis ...string) *FilterContext {
	f := &FilterContext{}
	f.Set(cuis)
	return f
}

// Allows reports whether the CUI passes the filter.
func (f *FilterContext) Allows(cui string) bool {
	if f == nil || len(f.cuis) == 0 {
		return true
	}
	_, ok := f.cuis[cui]
	return ok
}

// Set replaces the allow-set.
func (f *FilterContext) Set(cuis []string) {
	f.cuis = make(map[string]struct{}, len(cuis))
	for _, c := range cuis {
		f.cuis[c] = struct{}{}
	}
}

// SetEmpty makes the filter allow nothing.
func (f *FilterContext) SetEmpty() {
	f.Set([]string{EmptyFilterMarker})
}

// CUIs returns the allow-set, sorted. Empty means unrestricted.
func (f *FilterContext) CUIs() []string {
	if f == nil {
		return nil
	}
	return sortedKeys(f.cuis)
}

// IsUnrestricted reports whether every CUI passes.
func (f *FilterContext) IsUnrestricted() bool {
	return f == nil || len(f.cuis) == 0
}

// Equal reports whether both filters allow the same CUIs.
func (f *FilterContext) Equal(other *FilterContext) bool {
	return slices.Equal(f.CUIs(), other.CUIs())
}

// Acquire snapshots the current allow-set. The returned guard's Release
// restores it, so callers pair the two with defer.
func (f *FilterContext) Acquire() *FilterGuard {
	return &FilterGuard{ctx: f, snapshot: f.CUIs()}
}

// FilterGuard restores a FilterContext to the state it had at Acquire.
type FilterGuard struct {
	ctx      *FilterContext
	snapshot []string
	released bool
}

// Release restores the snapshot. Calling it more than once is a no-op.
func (g *FilterGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.ctx.Set(g.snapshot)
}

// IntersectNonEmpty combines two allow-lists where empty means unrestricted.
// When both are non-empty the intersection is returned; an empty
// intersection becomes the marker so the result never widens to everything.
func IntersectNonEmpty(a, b []string) []string {
	switch {
	case len(a) == 0:
		return slices.Clone(b)
	case len(b) == 0:
		return slices.Clone(a)
	}

	inB := make(map[string]struct{}, len(b))
	for _, c := range b {
		inB[c] = struct{}{}
	}
	seen := make(map[string]struct{})
	for _, c := range a {
		if _, ok := inB[c]; ok {
			seen[c] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return []string{EmptyFilterMarker}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
