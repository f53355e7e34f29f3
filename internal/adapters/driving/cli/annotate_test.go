package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/memory"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/normalisers"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("chest pain"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("no fever"), 0o600))
	return dir
}

func TestAnnotateCmd_Use(t *testing.T) {
	assert.Equal(t, "annotate", annotateCmd.Use)
	assert.Equal(t, "text <text>", annotateTextCmd.Use)
	assert.Equal(t, "corpus <path>", annotateCorpusCmd.Use)
}

func TestAnnotateTextCmd_RequiresConceptDB(t *testing.T) {
	setupTestDeps(t)

	_, err := execute(t, "annotate", "text", "chest pain")

	assert.ErrorIs(t, err, domain.ErrMissingConceptDB)
}

func TestAnnotateTextCmd_RequiresVocab(t *testing.T) {
	env := setupTestDeps(t)
	loaded := false
	deps.LoadModel = func(context.Context, ModelPaths, *domain.AppSettings, ModelOptions) (*Model, error) {
		loaded = true
		return env.model, nil
	}

	_, err := execute(t, "--cdb", "cdb.csv", "annotate", "text", "chest pain")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingVocab)
	assert.Contains(t, err.Error(), "--vocab is required")
	assert.False(t, loaded)
}

func TestTrainSupervisedCmd_RequiresVocab(t *testing.T) {
	setupTestDeps(t)

	_, err := execute(t, "--cdb", "cdb.csv", "train", "supervised", writeExport(t))

	assert.ErrorIs(t, err, domain.ErrMissingVocab)
}

func TestAnnotateTextCmd_PrintsJSON(t *testing.T) {
	env := setupTestDeps(t)
	env.annotator.out = domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{
		0: {CUI: "C0008031", PrettyName: "Chest pain", Start: 0, End: 10},
	}}

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "text", "chest", "pain")

	require.NoError(t, err)
	assert.Equal(t, []string{"chest pain"}, env.annotator.texts)
	assert.Contains(t, out, `"cui": "C0008031"`)
	assert.Contains(t, out, `"pretty_name": "Chest pain"`)

	paths, _, loads := env.loaded()
	assert.Equal(t, "cdb.csv", paths.ConceptDB)
	assert.Equal(t, "vocab.txt", paths.Vocab)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, env.closed)
}

func TestAnnotateTextCmd_YAMLFromStdin(t *testing.T) {
	env := setupTestDeps(t)
	env.annotator.out = domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{
		0: {CUI: "C1"},
	}}

	out, err := executeWithInput(t, "fever today", "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "text", "-", "--format", "YAML")

	require.NoError(t, err)
	assert.Equal(t, []string{"fever today"}, env.annotator.texts)
	assert.Contains(t, out, "cui: C1")
}

func TestAnnotateCorpusCmd_FlagsOverrideSettings(t *testing.T) {
	env := setupTestDeps(t)
	dir := writeCorpus(t)

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", dir,
		"--workers", "4", "--batch-chars", "500", "--min-free-memory", "0.3",
		"--only-cui", "--addl-info", "cui2icd10,cui2ontologies")

	require.NoError(t, err)
	assert.Equal(t, 4, env.bulk.opts.Workers)
	assert.Equal(t, 500, env.bulk.opts.BatchSizeChars)
	assert.Equal(t, 0, env.bulk.opts.OutSplitSizeChars)
	assert.InDelta(t, 0.3, env.bulk.opts.MinFreeMemory, 1e-9)
	assert.True(t, env.bulk.opts.OnlyCUI)
	assert.True(t, env.bulk.opts.SeparateNNComponents)
	assert.Equal(t, []string{"cui2icd10", "cui2ontologies"}, env.bulk.opts.AddlInfo)
	assert.Equal(t, []string{"a.txt", "b.txt"}, env.bulk.ids)
	assert.Contains(t, out, `"a.txt"`)
	assert.Contains(t, out, `"b.txt"`)
}

func TestAnnotateCorpusCmd_Extractors(t *testing.T) {
	env := setupTestDeps(t)
	deps.Extractors = normalisers.Defaults()
	dir := writeCorpus(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), []byte("# Plan\nrest"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.pdf"), []byte("%PDF"), 0o600))

	_, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.md"}, env.bulk.ids)
}

func TestCorpusOptions(t *testing.T) {
	setupTestDeps(t)
	assert.Empty(t, corpusOptions())

	deps.Extractors = normalisers.Defaults()
	assert.Len(t, corpusOptions(), 1)
}

func TestAnnotateCorpusCmd_UsesSettingsByDefault(t *testing.T) {
	env := setupTestDeps(t)
	dir := writeCorpus(t)
	_, err := execute(t, "settings", "workers", "3")
	require.NoError(t, err)

	_, err = execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", dir)

	require.NoError(t, err)
	assert.Equal(t, 3, env.bulk.opts.Workers)
	assert.Equal(t, 1_000_000, env.bulk.opts.BatchSizeChars)
	assert.False(t, env.bulk.opts.OnlyCUI)
}

func TestAnnotateCorpusCmd_WritesOutputFile(t *testing.T) {
	setupTestDeps(t)
	dir := writeCorpus(t)
	outPath := filepath.Join(t.TempDir(), "results.json")

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", dir, "--out", outPath)

	require.NoError(t, err)
	assert.NotContains(t, out, "a.txt")
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a.txt"`)
}

func TestAnnotateCorpusCmd_ReadsCheckpointedResults(t *testing.T) {
	env := setupTestDeps(t)
	store := memory.NewCheckpointStore()
	require.NoError(t, store.SaveShard(context.Background(), domain.ResultShard{
		Part:    0,
		Results: map[string]domain.AnnotationOutput{"earlier.txt": {Entities: map[int]domain.EntityOutput{}}},
	}))
	env.withCheckpoint(store)
	dir := writeCorpus(t)

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", dir, "--split-chars", "100")

	require.NoError(t, err)
	assert.Equal(t, 100, env.bulk.opts.OutSplitSizeChars)
	assert.Contains(t, out, `"earlier.txt"`)
	// The fake runner never flushes, so its own results are not in the store.
	assert.NotContains(t, out, `"a.txt"`)
}

func TestAnnotateCorpusCmd_FreshClearsCheckpoint(t *testing.T) {
	env := setupTestDeps(t)
	store := memory.NewCheckpointStore()
	require.NoError(t, store.SaveShard(context.Background(), domain.ResultShard{
		Results: map[string]domain.AnnotationOutput{"stale.txt": {}},
	}))
	env.withCheckpoint(store)

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", writeCorpus(t), "--fresh")

	require.NoError(t, err)
	assert.Empty(t, store.Shards())
	assert.NotContains(t, out, "stale.txt")
}

func TestAnnotateCorpusCmd_MissingCorpus(t *testing.T) {
	setupTestDeps(t)

	_, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading corpus")
}

func TestAnnotateCorpusCmd_ServesMetrics(t *testing.T) {
	env := setupTestDeps(t)

	out, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "annotate", "corpus", writeCorpus(t), "--metrics-addr", "127.0.0.1:0")

	require.NoError(t, err)
	assert.Contains(t, out, "Serving metrics on http://127.0.0.1:")
	_, opts, _ := env.loaded()
	assert.NotNil(t, opts.Metrics)
}
