package dictionary

import (
	"math"
	"slices"
	"sort"
	"sync"
)

// ContextModel keeps one learned context vector per CUI. Vectors are
// replaced, never mutated, so readers may hold them without the lock.
type ContextModel struct {
	mu      sync.RWMutex
	vectors map[string][]float64
}

// NewContextModel creates an empty model.
func NewContextModel() *ContextModel {
	return &ContextModel{vectors: make(map[string][]float64)}
}

// Vector returns the learned vector of cui, or nil.
func (m *ContextModel) Vector(cui string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vectors[cui]
}

// Similarity returns the cosine similarity between the learned vector of
// cui and ctx. It reports false when either side is missing.
func (m *ContextModel) Similarity(cui string, ctx []float64) (float64, bool) {
	v := m.Vector(cui)
	if v == nil || ctx == nil {
		return 0, false
	}
	return cosine(v, ctx), true
}

// Update moves the vector of cui towards ctx by lr, or away from it when
// negative is set. The first positive example initialises the vector.
func (m *ContextModel) Update(cui string, ctx []float64, lr float64, negative bool) {
	if len(ctx) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.vectors[cui]
	switch {
	case !ok && negative:
		return
	case !ok:
		m.vectors[cui] = slices.Clone(ctx)
		return
	}

	next := slices.Clone(cur)
	for i := range next {
		if negative {
			next[i] -= lr * ctx[i]
		} else {
			next[i] += lr * (ctx[i] - next[i])
		}
	}
	m.vectors[cui] = next
}

// Reset drops every vector and returns the CUIs that had one, sorted.
func (m *ContextModel) Reset() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cuis := make([]string, 0, len(m.vectors))
	for cui := range m.vectors {
		cuis = append(cuis, cui)
	}
	sort.Strings(cuis)
	m.vectors = make(map[string][]float64)
	return cuis
}

// Len returns the number of CUIs with a vector.
func (m *ContextModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
