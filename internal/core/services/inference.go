package services

import (
	"github.com/google/uuid"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// inferenceDeps holds the optional collaborators shared by the annotator,
// the worker pool and the bulk annotator.
type inferenceDeps struct {
	filters     *domain.FilterContext
	probe       driven.MemoryProbe
	metrics     driven.InferenceMetrics
	classifiers []driven.MetaClassifier
	store       driven.CheckpointStore
	maxDocLen   int
	nested      bool
	newRunID    func() string
}

// InferenceOption configures inference services.
type InferenceOption func(*inferenceDeps)

// WithFilters sets the model filter applied to every annotation.
func WithFilters(f *domain.FilterContext) InferenceOption {
	return func(d *inferenceDeps) {
		d.filters = f
	}
}

// WithMemoryProbe enables memory-aware worker admission.
func WithMemoryProbe(p driven.MemoryProbe) InferenceOption {
	return func(d *inferenceDeps) {
		d.probe = p
	}
}

// WithInferenceMetrics records progress counters.
func WithInferenceMetrics(m driven.InferenceMetrics) InferenceOption {
	return func(d *inferenceDeps) {
		d.metrics = m
	}
}

// WithMetaClassifiers attaches auxiliary classifiers.
func WithMetaClassifiers(cs ...driven.MetaClassifier) InferenceOption {
	return func(d *inferenceDeps) {
		d.classifiers = append(d.classifiers, cs...)
	}
}

// WithCheckpointStore enables resumable bulk inference.
func WithCheckpointStore(s driven.CheckpointStore) InferenceOption {
	return func(d *inferenceDeps) {
		d.store = s
	}
}

// WithMaxDocumentLength trims texts to n characters before annotation.
func WithMaxDocumentLength(n int) InferenceOption {
	return func(d *inferenceDeps) {
		d.maxDocLen = n
	}
}

// WithNestedEntities includes overlapping entities in output.
func WithNestedEntities(nested bool) InferenceOption {
	return func(d *inferenceDeps) {
		d.nested = nested
	}
}

// WithRunID overrides checkpoint run id generation.
func WithRunID(fn func() string) InferenceOption {
	return func(d *inferenceDeps) {
		d.newRunID = fn
	}
}

func newInferenceDeps(opts []InferenceOption) inferenceDeps {
	d := inferenceDeps{
		maxDocLen: domain.DefaultAppSettings().Preprocessing.MaxDocumentLength,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.filters == nil {
		d.filters = domain.NewFilterContext()
	}
	if d.metrics == nil {
		d.metrics = nopMetrics{}
	}
	return d
}

// trim cuts text to the configured maximum length in characters.
func (d inferenceDeps) trim(text string) string {
	if d.maxDocLen <= 0 || len(text) <= d.maxDocLen {
		return text
	}
	r := []rune(text)
	if len(r) <= d.maxDocLen {
		return text
	}
	return string(r[:d.maxDocLen])
}

type nopMetrics struct{}

func (nopMetrics) DocumentAnnotated(int) {}
func (nopMetrics) DocumentFailed() {}
func (nopMetrics) BatchFailed() {}
func (nopMetrics) WorkerStopped(string) {}
func (nopMetrics) ShardWritten(int) {}
