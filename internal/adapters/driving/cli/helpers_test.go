package cli

import (
	"bytes"
	"context"
	"io"
	"iter"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/memory"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/services"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

type fakeAnnotator struct {
	out   domain.AnnotationOutput
	err   error
	texts []string
}

func (f *fakeAnnotator) Annotate(_ context.Context, text string) (domain.AnnotationOutput, error) {
	f.texts = append(f.texts, text)
	return f.out, f.err
}

func (f *fakeAnnotator) AnnotateTexts(ctx context.Context, texts []string, _, _ int) ([]domain.AnnotationOutput, error) {
	outs := make([]domain.AnnotationOutput, len(texts))
	for i, t := range texts {
		out, err := f.Annotate(ctx, t)
		if err != nil {
			return nil, err
		}
		outs[i] = out
	}
	return outs, nil
}

// fakeBulk annotates every item with an empty output and records the options.
type fakeBulk struct {
	opts domain.BulkOptions
	ids  []string
	err  error
}

func (f *fakeBulk) Run(_ context.Context, items iter.Seq[domain.Item], opts domain.BulkOptions) (map[string]domain.AnnotationOutput, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]domain.AnnotationOutput{}
	for item := range items {
		f.ids = append(f.ids, item.ID)
		out[item.ID] = domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{}}
	}
	return out, nil
}

type fakeEvaluator struct {
	report *domain.StatsReport
	opts   domain.EvalOptions
	calls  int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *domain.Dataset, _ *domain.FilterContext, opts domain.EvalOptions) (*domain.StatsReport, error) {
	f.opts = opts
	f.calls++
	return f.report, nil
}

type fakeTrainer struct {
	report   *domain.StatsReport
	opts     domain.TrainOptions
	unsup    domain.UnsupervisedOptions
	lines    []string
	projects int
}

func (f *fakeTrainer) TrainSupervised(_ context.Context, ds *domain.Dataset, _ *domain.FilterContext, opts domain.TrainOptions) (*domain.StatsReport, error) {
	f.opts = opts
	f.projects = len(ds.Projects)
	return f.report, nil
}

func (f *fakeTrainer) Train(_ context.Context, lines iter.Seq[string], opts domain.UnsupervisedOptions) error {
	f.unsup = opts
	for l := range lines {
		f.lines = append(f.lines, l)
	}
	return nil
}

func (f *fakeTrainer) AddAndTrainConcept(context.Context, domain.ConceptTraining) error { return nil }
func (f *fakeTrainer) UnlinkConceptName(string, string)                                 {}
func (f *fakeTrainer) ResetCUICounts([]string)                                          {}
func (f *fakeTrainer) AddCUIToGroup(string, string)                                     {}

type fakeBrowser struct {
	concepts map[string]domain.Concept
	names    map[string][]domain.Concept
}

func (f *fakeBrowser) Concept(cui string) (domain.Concept, error) {
	c, ok := f.concepts[cui]
	if !ok {
		return domain.Concept{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeBrowser) Lookup(name string) []domain.Concept {
	return f.names[name]
}

// testEnv is a model assembled from fakes plus what the loader saw.
type testEnv struct {
	model     *Model
	annotator *fakeAnnotator
	bulk      *fakeBulk
	evaluator *fakeEvaluator
	trainer   *fakeTrainer
	browser   *fakeBrowser

	mu     sync.Mutex
	paths  ModelPaths
	opts   ModelOptions
	loads  int
	closed int
	config *memory.ConfigStore
}

func (e *testEnv) loaded() (ModelPaths, ModelOptions, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paths, e.opts, e.loads
}

// setupTestDeps wires the CLI to fakes backed by an in-memory config store.
func setupTestDeps(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		annotator: &fakeAnnotator{},
		bulk:      &fakeBulk{},
		evaluator: &fakeEvaluator{report: domain.NewStatsReport(0)},
		trainer:   &fakeTrainer{},
		browser:   &fakeBrowser{},
		config:    memory.NewConfigStore(),
	}
	env.model = &Model{
		Annotator: env.annotator,
		Bulk:      env.bulk,
		Evaluator: env.evaluator,
		Trainer:   env.trainer,
		Concepts:  env.browser,
		Filters:   &domain.FilterContext{},
	}
	env.model.Close = func() error {
		env.mu.Lock()
		env.closed++
		env.mu.Unlock()
		return nil
	}

	prevDeps := deps
	deps = Dependencies{
		Settings: func(bool) (driving.SettingsService, error) {
			return services.NewSettingsService(env.config), nil
		},
		Datasets: dataset.Loader{},
		LoadModel: func(_ context.Context, paths ModelPaths, _ *domain.AppSettings, opts ModelOptions) (*Model, error) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.paths = paths
			env.opts = opts
			env.loads++
			return env.model, nil
		},
	}
	logger.SetOutput(io.Discard)

	t.Cleanup(func() {
		deps = prevDeps
		settingsService = nil
		datasetLoader = nil
		logger.SetOutput(os.Stderr)
	})
	return env
}

// withCheckpoint attaches a checkpoint store to the fake model.
func (e *testEnv) withCheckpoint(store driven.CheckpointStore) {
	e.model.Checkpoint = store
}

// execute runs the root command with args and returns everything printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
