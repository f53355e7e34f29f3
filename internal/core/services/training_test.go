package services

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

type trainingFixture struct {
	pipeline *fakePipeline
	concepts *fakeConcepts
	trainer  *fakeTrainer
}

func newTrainingFixture() trainingFixture {
	return trainingFixture{
		pipeline: newFakePipeline(),
		concepts: newFakeConcepts(),
		trainer:  newFakeTrainer(),
	}
}

func (f trainingFixture) orchestrator(opts ...TrainingOption) *TrainingOrchestrator {
	return NewTrainingOrchestrator(f.pipeline, f.concepts, nil, f.trainer, opts...)
}

func killed(text, mention, cui string) domain.GoldAnnotation {
	a := gold(text, mention, cui)
	a.Killed = true
	return a
}

func TestTrainSupervised_NoAnnotations(t *testing.T) {
	f := newTrainingFixture()
	ds := dataset(domain.Document{Name: "dog", Text: "The dog is not a house"})

	report, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil,
		domain.TrainOptions{NEpochs: 1, PrintStats: 1})

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Epoch)
	assert.Zero(t, report.TP+report.FP+report.FN)
	assert.Zero(t, report.Precision)
	assert.Zero(t, report.Recall)
	assert.Zero(t, report.F1)
	assert.Empty(t, f.trainer.calls)
}

func TestTrainSupervised_TrainsEveryNonKilledAnnotation(t *testing.T) {
	f := newTrainingFixture()
	f.pipeline.on(feverText, "fever", "C1")
	deleted := gold(feverText, "cough", "C2")
	deleted.Deleted = true
	ds := dataset(feverDoc(
		gold(feverText, "fever", "C1"),
		deleted,
		killed(feverText, "today", "C4"),
	))

	report, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil, domain.TrainOptions{NEpochs: 2})

	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, []trainCall{
		{cui: "C1", start: 12, end: 17},
		{cui: "C2", start: 22, end: 27, negative: true},
		{cui: "C1", start: 12, end: 17},
		{cui: "C2", start: 22, end: 27, negative: true},
	}, f.trainer.calls)
	assert.True(t, f.concepts.HasConcept("C1"))
	assert.True(t, f.concepts.HasConcept("C2"))
	assert.False(t, f.concepts.HasConcept("C4"))
	assert.Equal(t, []string{"C1"}, f.concepts.CUIsForName("fever"))
	assert.Equal(t, []string{"C4:today"}, f.concepts.removed)
}

func TestTrainSupervised_KilledNamesUnlinkOrder(t *testing.T) {
	tests := []struct {
		name          string
		opts          domain.TrainOptions
		beforeTrain   int
		afterTraining int
	}{
		{"before epochs", domain.TrainOptions{NEpochs: 1}, 1, 1},
		{"after epochs", domain.TrainOptions{NEpochs: 1, TerminateLast: true}, 0, 1},
		{"never", domain.TrainOptions{NEpochs: 1, NeverTerminate: true}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrainingFixture()
			removedAtTrain := -1
			f.trainer.onTrain = func(string) {
				if removedAtTrain < 0 {
					removedAtTrain = len(f.concepts.removed)
				}
			}
			ds := dataset(feverDoc(gold(feverText, "fever", "C1"), killed(feverText, "cough", "C2")))

			_, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil, tt.opts)

			require.NoError(t, err)
			assert.Equal(t, tt.beforeTrain, removedAtTrain)
			assert.Len(t, f.concepts.removed, tt.afterTraining)
		})
	}
}

func TestTrainSupervised_DevalueOthers(t *testing.T) {
	f := newTrainingFixture()
	f.concepts.with("C9", "Fever (other)", "fever")
	ds := dataset(feverDoc(gold(feverText, "fever", "C1")))

	_, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil,
		domain.TrainOptions{NEpochs: 1, DevalueOthers: true})

	require.NoError(t, err)
	assert.Equal(t, []trainCall{
		{cui: "C1", start: 12, end: 17},
		{cui: "C9", start: 12, end: 17, negative: true},
	}, f.trainer.calls)
}

func TestTrainSupervised_FalsePositiveMining(t *testing.T) {
	f := newTrainingFixture()
	f.pipeline.on(feverText, "fever", "C1").on(feverText, "cough", "C3")
	ds := dataset(feverDoc(gold(feverText, "fever", "C1")))

	_, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil,
		domain.TrainOptions{NEpochs: 1, TrainFromFalsePositives: true})

	require.NoError(t, err)
	assert.Equal(t, []trainCall{
		{cui: "C1", start: 12, end: 17},
		{cui: "C3", start: 22, end: 27, negative: true},
	}, f.trainer.calls)
	assert.False(t, f.concepts.HasConcept("C3"))
}

func TestTrainSupervised_ResetCUICount(t *testing.T) {
	f := newTrainingFixture()
	f.concepts.with("C1", "Fever")
	f.concepts.SetTrainCount("C1", 500)
	ds := dataset(feverDoc(gold(feverText, "fever", "C1"), gold(feverText, "cough", "C2")))

	_, err := f.orchestrator().TrainSupervised(context.Background(), ds, nil,
		domain.TrainOptions{NEpochs: 1, ResetCUICount: true})

	require.NoError(t, err)
	n, ok := f.concepts.TrainCount("C1")
	require.True(t, ok)
	assert.Equal(t, domain.ResetTrainCount, n)
}

func TestTrainSupervised_EvaluationSchedule(t *testing.T) {
	f := newTrainingFixture()
	eval := &fakeEvaluator{}
	ds := dataset(feverDoc(gold(feverText, "fever", "C1")))

	report, err := f.orchestrator(WithEvaluator(eval)).TrainSupervised(context.Background(), ds, nil,
		domain.TrainOptions{NEpochs: 4, PrintStats: 2})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, eval.epochs)
	assert.Equal(t, 4, report.Epoch)
}

func TestTrainSupervised_EvaluationError(t *testing.T) {
	f := newTrainingFixture()
	eval := &fakeEvaluator{err: errBoom}

	_, err := f.orchestrator(WithEvaluator(eval)).TrainSupervised(context.Background(),
		dataset(feverDoc()), nil, domain.TrainOptions{NEpochs: 1, PrintStats: 1})

	assert.ErrorIs(t, err, errBoom)
}

func TestTrainSupervised_ProjectFilters(t *testing.T) {
	f := newTrainingFixture()
	ds := &domain.Dataset{Projects: []domain.Project{
		{CUIs: domain.StringList{"C1"}, Documents: []domain.Document{feverDoc()}},
		{Documents: []domain.Document{feverDoc()}},
	}}
	filters := domain.NewFilterContext("C1", "C2")

	_, err := f.orchestrator().TrainSupervised(context.Background(), ds, filters,
		domain.TrainOptions{NEpochs: 1, UseFilters: true, ExtraCUIFilter: []string{"C1", "C2"}})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"C1"}, {"C1", "C2"}}, f.pipeline.filters)
	assert.Equal(t, []string{"C1", "C2"}, filters.CUIs())
}

func TestTrainSupervised_ErrorRestoresFilter(t *testing.T) {
	f := newTrainingFixture()
	f.trainer.failOn["C1"] = errBoom
	filters := domain.NewFilterContext("C7")
	ds := &domain.Dataset{Projects: []domain.Project{{
		CUIs:      domain.StringList{"C1"},
		Documents: []domain.Document{feverDoc(gold(feverText, "fever", "C1"))},
	}}}

	_, err := f.orchestrator().TrainSupervised(context.Background(), ds, filters,
		domain.TrainOptions{NEpochs: 1, UseFilters: true})

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "train document d1")
	assert.Equal(t, []string{"C7"}, filters.CUIs())
}

func TestTrainSupervised_InvalidSpan(t *testing.T) {
	f := newTrainingFixture()
	bad := domain.Document{Name: "bad", Text: "tiny", Annotations: []domain.GoldAnnotation{
		{Start: 2, End: 40, CUI: "C1", Validated: true},
	}}

	_, err := f.orchestrator().TrainSupervised(context.Background(), dataset(bad), nil, domain.TrainOptions{NEpochs: 1})

	assert.ErrorIs(t, err, domain.ErrInvalidSpan)
	assert.Empty(t, f.pipeline.calls)
}

func TestTrainSupervised_EmptySpanRejectedBeforeTraining(t *testing.T) {
	f := newTrainingFixture()
	empty := domain.Document{Name: "empty", Text: feverText, Annotations: []domain.GoldAnnotation{
		{Start: 3, End: 3, CUI: "C1", Validated: true},
	}}

	_, err := f.orchestrator().TrainSupervised(context.Background(), dataset(empty), nil, domain.TrainOptions{NEpochs: 1})

	require.ErrorIs(t, err, domain.ErrInvalidSpan)
	assert.Contains(t, err.Error(), "train document empty")
	assert.Empty(t, f.pipeline.calls)
}

func TestTrainSupervised_Validation(t *testing.T) {
	ds := dataset(feverDoc())
	opts := domain.TrainOptions{NEpochs: 1}
	ctx := context.Background()

	_, err := NewTrainingOrchestrator(nil, newFakeConcepts(), nil, nil).TrainSupervised(ctx, ds, nil, opts)
	assert.ErrorIs(t, err, domain.ErrPipelineUnavailable)

	_, err = NewTrainingOrchestrator(newFakePipeline(), nil, nil, nil).TrainSupervised(ctx, ds, nil, opts)
	assert.ErrorIs(t, err, domain.ErrMissingConceptDB)

	f := newTrainingFixture()
	_, err = f.orchestrator().TrainSupervised(ctx, ds, nil, domain.TrainOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.orchestrator().TrainSupervised(ctx, nil, nil, opts)
	assert.ErrorIs(t, err, domain.ErrInvalidDataset)

	_, err = f.orchestrator().TrainSupervised(ctx, ds, nil, domain.TrainOptions{NEpochs: 1, TestSize: 1.5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTrainSupervised_Cancelled(t *testing.T) {
	f := newTrainingFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orchestrator().TrainSupervised(ctx, dataset(feverDoc()), nil, domain.TrainOptions{NEpochs: 1})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAddAndTrainConcept(t *testing.T) {
	f := newTrainingFixture()
	o := f.orchestrator()
	ctx := context.Background()

	require.NoError(t, o.AddAndTrainConcept(ctx, domain.ConceptTraining{
		CUI: "C1", Name: " Heart Attack ", DoAddConcept: true, PreferredName: "Myocardial infarction",
	}))
	assert.Equal(t, []string{"C1"}, f.concepts.CUIsForName("heart attack"))
	assert.Equal(t, "Myocardial infarction", f.concepts.DisplayName("C1"))
	assert.Empty(t, f.trainer.calls)

	err := o.AddAndTrainConcept(ctx, domain.ConceptTraining{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noTrainer := NewTrainingOrchestrator(f.pipeline, f.concepts, nil, nil)
	err = noTrainer.AddAndTrainConcept(ctx, domain.ConceptTraining{CUI: "C1", Doc: &domain.AnnotatedDocument{}})
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}

func TestUnlinkConceptName(t *testing.T) {
	f := newTrainingFixture()
	f.concepts.with("C1", "", "cold").with("C2", "", "cold")

	f.orchestrator().UnlinkConceptName("C1", "Cold")
	assert.Equal(t, []string{"C2"}, f.concepts.CUIsForName("cold"))

	f.concepts.with("C1", "", "cold")
	f.orchestrator(WithFullUnlink(true)).UnlinkConceptName("C1", "Cold")
	assert.Empty(t, f.concepts.CUIsForName("cold"))
	assert.Equal(t, []string{"C1:cold", "C1:cold", "C2:cold"}, f.concepts.removed)
}

func TestAddCUIToGroup(t *testing.T) {
	f := newTrainingFixture()

	f.orchestrator().AddCUIToGroup("A1", "G")

	g, ok := f.concepts.Group("A1")
	assert.True(t, ok)
	assert.Equal(t, "G", g)
}

func TestTrain_SkipsFailingLines(t *testing.T) {
	f := newTrainingFixture()
	f.trainer.failOn["bad line"] = errBoom
	f.trainer.panicOn["explosive line"] = true
	lines := slices.Values([]string{"first line", "   ", "bad line", "explosive line", " last line "})

	err := f.orchestrator().Train(context.Background(), lines, domain.UnsupervisedOptions{ProgressEvery: 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "last line"}, f.trainer.texts)
	assert.Equal(t, 1, f.trainer.resets)
}

func TestTrain_FineTuneKeepsTraining(t *testing.T) {
	f := newTrainingFixture()

	err := f.orchestrator().Train(context.Background(), slices.Values([]string{"a"}),
		domain.UnsupervisedOptions{FineTune: true})

	require.NoError(t, err)
	assert.Zero(t, f.trainer.resets)
}

func TestTrain_Errors(t *testing.T) {
	err := NewTrainingOrchestrator(newFakePipeline(), newFakeConcepts(), nil, nil).
		Train(context.Background(), slices.Values([]string{"a"}), domain.UnsupervisedOptions{})
	assert.ErrorIs(t, err, domain.ErrNotImplemented)

	f := newTrainingFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = f.orchestrator().Train(ctx, slices.Values([]string{"a"}), domain.UnsupervisedOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSafeCall(t *testing.T) {
	assert.NoError(t, safeCall(func() error { return nil }))
	assert.ErrorIs(t, safeCall(func() error { return errBoom }), errBoom)
	assert.ErrorContains(t, safeCall(func() error { panic("x") }), "panic: x")
}
