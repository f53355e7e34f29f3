package conceptdb

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure DB implements the interface.
var _ driven.ConceptStore = (*DB)(nil)

// DB is an in-memory concept database.
type DB struct {
	mu        sync.RWMutex
	concepts  map[string]*domain.Concept
	names     map[string]map[string]struct{}
	typeCUIs  map[string]map[string]struct{}
	typeNames map[string]string
	groups    map[string]string
}

// New creates an empty concept database.
func New() *DB {
	return &DB{
		concepts:  make(map[string]*domain.Concept),
		names:     make(map[string]map[string]struct{}),
		typeCUIs:  make(map[string]map[string]struct{}),
		typeNames: make(map[string]string),
		groups:    make(map[string]string),
	}
}

// Concept returns a copy of the concept.
func (db *DB) Concept(cui string) (domain.Concept, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.concepts[cui]
	if !ok {
		return domain.Concept{}, domain.ErrNotFound
	}
	return clone(c, db.groups[cui]), nil
}

// HasConcept reports whether the CUI is known.
func (db *DB) HasConcept(cui string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.concepts[cui]
	return ok
}

// AddConcept creates the concept or merges names and additional info into it.
func (db *DB) AddConcept(c domain.Concept) error {
	if c.CUI == "" {
		return domain.ErrInvalidInput
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.concepts[c.CUI]
	if !ok {
		cur = &domain.Concept{CUI: c.CUI, TrainCount: c.TrainCount}
		db.concepts[c.CUI] = cur
	}
	if len(cur.TypeIDs) == 0 && len(c.TypeIDs) > 0 {
		cur.TypeIDs = slices.Clone(c.TypeIDs)
		for _, tid := range c.TypeIDs {
			addTo(db.typeCUIs, tid, c.CUI)
		}
	}
	if cur.PreferredName == "" {
		cur.PreferredName = c.PreferredName
	}
	if c.Group != "" {
		if _, set := db.groups[c.CUI]; !set {
			db.groups[c.CUI] = c.Group
		}
	}

	for _, name := range c.Names {
		if name == "" {
			continue
		}
		if _, linked := db.names[name][c.CUI]; !linked {
			cur.Names = append(cur.Names, name)
		}
		addTo(db.names, name, c.CUI)
	}

	for field, values := range c.AddlInfo {
		if cur.AddlInfo == nil {
			cur.AddlInfo = make(map[string][]string)
		}
		for _, v := range values {
			if !slices.Contains(cur.AddlInfo[field], v) {
				cur.AddlInfo[field] = append(cur.AddlInfo[field], v)
			}
		}
	}
	return nil
}

// CUIsForName returns the CUIs linked to a prepared name, sorted.
func (db *DB) CUIsForName(name string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.names[name])
}

// CUIsForTypeIDs returns the CUIs carrying any of the type ids, sorted.
func (db *DB) CUIsForTypeIDs(typeIDs []string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	set := make(map[string]struct{})
	for _, tid := range typeIDs {
		maps.Copy(set, db.typeCUIs[tid])
	}
	return sortedKeys(set)
}

// RemoveNames unlinks prepared names from a concept.
func (db *DB) RemoveNames(cui string, names []string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := db.concepts[cui]
	for _, name := range names {
		if cuis, ok := db.names[name]; ok {
			delete(cuis, cui)
			if len(cuis) == 0 {
				delete(db.names, name)
			}
		}
		if c != nil {
			c.Names = slices.DeleteFunc(c.Names, func(n string) bool { return n == name })
		}
	}
}

// DisplayName returns the preferred name, the first name, or the CUI.
func (db *DB) DisplayName(cui string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.concepts[cui]
	if !ok {
		return cui
	}
	return c.DisplayName()
}

// TypeName returns the registered name of a type id, or the id itself.
func (db *DB) TypeName(typeID string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if name, ok := db.typeNames[typeID]; ok {
		return name
	}
	return typeID
}

// SetTypeName registers the human-readable name of a type id.
func (db *DB) SetTypeName(typeID, name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.typeNames[typeID] = name
}

// Group returns the group a CUI is mapped to. Groups may be assigned to
// CUIs that are not in the database.
func (db *DB) Group(cui string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	g, ok := db.groups[cui]
	return g, ok
}

// SetGroup maps a CUI to a group.
func (db *DB) SetGroup(cui, group string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.groups[cui] = group
}

// TrainCount returns the training counter of a known concept.
func (db *DB) TrainCount(cui string) (int, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.concepts[cui]
	if !ok {
		return 0, false
	}
	return c.TrainCount, true
}

// SetTrainCount overwrites the training counter. Unknown CUIs are ignored.
func (db *DB) SetTrainCount(cui string, n int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.concepts[cui]; ok {
		c.TrainCount = n
	}
}

// IncrementTrainCount adds one to the counter of a known concept and
// returns the new value.
func (db *DB) IncrementTrainCount(cui string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.concepts[cui]
	if !ok {
		return 0
	}
	c.TrainCount++
	return c.TrainCount
}

// AddlInfo returns the values stored for a CUI under a field.
func (db *DB) AddlInfo(field, cui string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.concepts[cui]
	if !ok {
		return nil
	}
	return slices.Clone(c.AddlInfo[field])
}

// Len returns the number of concepts and of distinct prepared names.
func (db *DB) Len() (concepts, names int) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.concepts), len(db.names)
}

// MaxNameTokens returns the largest number of tokens in any prepared name,
// given the separator used to join them.
func (db *DB) MaxNameTokens(sep string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	longest := 0
	for name := range db.names {
		longest = max(longest, strings.Count(name, sep)+1)
	}
	return longest
}

func addTo(index map[string]map[string]struct{}, key, value string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[value] = struct{}{}
}

func clone(c *domain.Concept, group string) domain.Concept {
	out := *c
	out.Names = slices.Clone(c.Names)
	out.TypeIDs = slices.Clone(c.TypeIDs)
	out.Group = group
	if c.AddlInfo != nil {
		out.AddlInfo = make(map[string][]string, len(c.AddlInfo))
		for k, v := range c.AddlInfo {
			out.AddlInfo[k] = slices.Clone(v)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
