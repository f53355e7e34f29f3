package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

func output(cui string) domain.AnnotationOutput {
	return domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{
		0: {CUI: cui, PrettyName: "name " + cui, Start: 1, End: 4, Acc: 0.5},
	}}
}

func newStore(t *testing.T) *CheckpointStore {
	t.Helper()
	store, err := NewCheckpointStore(filepath.Join(t.TempDir(), "ckpt"))
	require.NoError(t, err)
	return store
}

func TestNewCheckpointStore_EmptyDir(t *testing.T) {
	_, err := NewCheckpointStore("  ")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckpointStore_LoadCursor_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.LoadCursor(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_CursorRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, store.SaveCursor(ctx, domain.Checkpoint{
		RunID: "run", AnnotatedIDs: []string{"d1", "d2"}, NextPart: 2, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveCursor(ctx, domain.Checkpoint{
		RunID: "run", AnnotatedIDs: []string{"d1", "d2", "d3"}, NextPart: 3, UpdatedAt: now,
	}))

	cp, err := store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run", cp.RunID)
	assert.Equal(t, []string{"d1", "d2", "d3"}, cp.AnnotatedIDs)
	assert.Equal(t, 3, cp.NextPart)
	assert.True(t, now.Equal(cp.UpdatedAt))
}

func TestCheckpointStore_LoadResults_LaterPartsWin(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	// Part 10 must sort after part 2 numerically.
	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 10, Results: map[string]domain.AnnotationOutput{
		"d2": output("LATEST"),
	}}))
	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 2, Results: map[string]domain.AnnotationOutput{
		"d1": output("C1"), "d2": output("OLD"),
	}}))

	results, err := store.LoadResults(ctx)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C1", results["d1"].Entities[0].CUI)
	assert.Equal(t, "name C1", results["d1"].Entities[0].PrettyName)
	assert.Equal(t, "LATEST", results["d2"].Entities[0].CUI)
}

func TestCheckpointStore_SaveShard_Replaces(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 0, Results: map[string]domain.AnnotationOutput{"d1": output("A")}}))
	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 0, Results: map[string]domain.AnnotationOutput{"d2": output("B")}}))

	results, err := store.LoadResults(ctx)
	require.NoError(t, err)
	assert.NotContains(t, results, "d1")
	assert.Contains(t, results, "d2")

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary files must not be left behind")
	}
}

func TestCheckpointStore_SaveShard_NegativePart(t *testing.T) {
	err := newStore(t).SaveShard(context.Background(), domain.ResultShard{Part: -1})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckpointStore_Corrupt(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), cursorFile), []byte{0xc1}, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "part_0.msgpack"), []byte{0xc1}, 0o600))

	_, err := store.LoadCursor(ctx)
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)

	_, err = store.LoadResults(ctx)
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)
}

func TestCheckpointStore_Clear(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	other := filepath.Join(store.Dir(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o600))
	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 0, Results: map[string]domain.AnnotationOutput{"d1": output("A")}}))
	require.NoError(t, store.SaveShard(ctx, domain.ResultShard{Part: 1, Results: map[string]domain.AnnotationOutput{"d2": output("B")}}))
	require.NoError(t, store.SaveCursor(ctx, domain.Checkpoint{RunID: "run", NextPart: 2}))

	require.NoError(t, store.Clear(ctx))

	_, err := store.LoadCursor(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	results, err := store.LoadResults(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.FileExists(t, other)

	// Clearing an empty store is fine.
	assert.NoError(t, store.Clear(ctx))
}

func TestCheckpointStore_CancelledContext(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.SaveCursor(ctx, domain.Checkpoint{}), context.Canceled)
	assert.ErrorIs(t, store.SaveShard(ctx, domain.ResultShard{}), context.Canceled)
	_, err := store.LoadCursor(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Clear(ctx), context.Canceled)
}

func TestParseShardName(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"part_0.msgpack", 0, true},
		{"part_12.msgpack", 12, true},
		{"part_-1.msgpack", 0, false},
		{"part_x.msgpack", 0, false},
		{"cursor.msgpack", 0, false},
		{"part_1.json", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseShardName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
