package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	store, err := NewConfigStore("")

	require.NoError(t, err)
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	assert.Equal(t, ".medcat", filepath.Base(dir))
}

func TestNewConfigStore_NestedDirectoryCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)

	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[[[nope"), 0600))

	_, err := NewConfigStore(dir)

	assert.Error(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("general.name", "medcat"))
	require.NoError(t, store.Set("inference.workers", 4))
	require.NoError(t, store.Set("inference.min_free_memory", 0.25))
	require.NoError(t, store.Set("general.verbose", true))
	require.NoError(t, store.Set("linking.filters", []string{"C1", "C2"}))

	assert.Equal(t, "medcat", store.GetString("general.name"))
	assert.Equal(t, 4, store.GetInt("inference.workers"))
	assert.InDelta(t, 0.25, store.GetFloat("inference.min_free_memory"), 1e-9)
	assert.InDelta(t, 4.0, store.GetFloat("inference.workers"), 1e-9)
	assert.True(t, store.GetBool("general.verbose"))
	assert.Equal(t, []string{"C1", "C2"}, store.GetStringSlice("linking.filters"))
}

func TestConfigStore_TypedGetters_Missing(t *testing.T) {
	store := newStore(t)

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("missing"))
	assert.Zero(t, store.GetFloat("missing"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_TypedGetters_WrongType(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("k", "text"))

	assert.Zero(t, store.GetInt("k"))
	assert.Zero(t, store.GetFloat("k"))
	assert.False(t, store.GetBool("k"))
	assert.Nil(t, store.GetStringSlice("k"))
}

func TestConfigStore_ReloadKeepsTablesAndTypes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("inference.workers", 3))
	require.NoError(t, store.Set("inference.checkpoint", "sqlite"))
	require.NoError(t, store.Set("inference.min_free_memory", 0.5))
	require.NoError(t, store.Set("linking.filters", []string{"C1"}))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[inference]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.GetInt("inference.workers"))
	assert.Equal(t, "sqlite", reloaded.GetString("inference.checkpoint"))
	assert.InDelta(t, 0.5, reloaded.GetFloat("inference.min_free_memory"), 1e-9)
	assert.Equal(t, []string{"C1"}, reloaded.GetStringSlice("linking.filters"))
	assert.Equal(t, []string{
		"inference.checkpoint", "inference.min_free_memory", "inference.workers", "linking.filters",
	}, reloaded.Keys())
}

func TestConfigStore_HandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[training]
nepochs = 2
test_size = 0.2

[inference]
min_free_memory = 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, 2, store.GetInt("training.nepochs"))
	assert.InDelta(t, 0.2, store.GetFloat("training.test_size"), 1e-9)
	assert.InDelta(t, 1.0, store.GetFloat("inference.min_free_memory"), 1e-9)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())

	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, store.Save())

	entries, err := os.ReadDir(dir)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}

func TestConfigStore_SetUnencodableValue(t *testing.T) {
	store := newStore(t)

	err := store.Set("bad", make(chan int))

	assert.Error(t, err)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newStore(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("inference.workers", i)
			_ = store.GetInt("inference.workers")
		}()
	}
	wg.Wait()

	_, ok := store.Get("inference.workers")
	assert.True(t, ok)
}

func TestNestMap_InvertsFlatten(t *testing.T) {
	flat := map[string]any{"a.b": 1, "a.c": "x", "d": true}

	assert.Equal(t, flat, flattenMap(nestMap(flat), ""))
}
