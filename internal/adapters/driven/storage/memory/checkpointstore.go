package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
// It survives a cancelled run inside one process, which is what tests and
// the MCP server need.
type CheckpointStore struct {
	mu     sync.RWMutex
	cursor *domain.Checkpoint
	shards map[int]domain.ResultShard
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		shards: make(map[int]domain.ResultShard),
	}
}

// LoadCursor returns the last saved cursor.
func (s *CheckpointStore) LoadCursor(_ context.Context) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cursor == nil {
		return nil, domain.ErrNotFound
	}
	cp := *s.cursor
	cp.AnnotatedIDs = slices.Clone(cp.AnnotatedIDs)
	return &cp, nil
}

// SaveShard stores a shard, replacing any shard with the same part.
func (s *CheckpointStore) SaveShard(_ context.Context, shard domain.ResultShard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shard.Results = maps.Clone(shard.Results)
	s.shards[shard.Part] = shard
	return nil
}

// SaveCursor replaces the cursor.
func (s *CheckpointStore) SaveCursor(_ context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.AnnotatedIDs = slices.Clone(cp.AnnotatedIDs)
	s.cursor = &cp
	return nil
}

// LoadResults merges every shard in part order.
func (s *CheckpointStore) LoadResults(_ context.Context) (map[string]domain.AnnotationOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]int, 0, len(s.shards))
	for p := range s.shards {
		parts = append(parts, p)
	}
	sort.Ints(parts)

	out := make(map[string]domain.AnnotationOutput)
	for _, p := range parts {
		maps.Copy(out, s.shards[p].Results)
	}
	return out, nil
}

// Shards returns the stored parts in ascending order.
func (s *CheckpointStore) Shards() []domain.ResultShard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ResultShard, 0, len(s.shards))
	for _, sh := range s.shards {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Part < out[j].Part })
	return out
}

// Clear removes the cursor and every shard.
func (s *CheckpointStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = nil
	s.shards = make(map[int]domain.ResultShard)
	return nil
}
