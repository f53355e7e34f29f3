// Package prometheus records bulk inference progress as Prometheus metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.InferenceMetrics = (*Recorder)(nil)

const namespace = "medcat"

// Recorder implements driven.InferenceMetrics.
type Recorder struct {
	documents     prometheus.Counter
	characters    prometheus.Counter
	failed        prometheus.Counter
	batchesFailed prometheus.Counter
	workerStops   *prometheus.CounterVec
	shards        prometheus.Counter
	shardSize     prometheus.Histogram
}

// NewRecorder creates a recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_annotated_total",
			Help:      "Total number of documents annotated",
		}),
		characters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "characters_annotated_total",
			Help:      "Total number of characters annotated",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Total number of documents skipped after an annotation error",
		}),
		batchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Total number of outer batches skipped after an error",
		}),
		workerStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_stops_total",
				Help:      "Total number of worker exits by reason",
			},
			[]string{"reason"}, // drained, memory, cancelled
		),
		shards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shards_written_total",
			Help:      "Total number of checkpoint shards written",
		}),
		shardSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shard_documents",
			Help:      "Histogram of documents per checkpoint shard",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		r.documents, r.characters, r.failed, r.batchesFailed, r.workerStops, r.shards, r.shardSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DocumentAnnotated records one annotated document of chars characters.
func (r *Recorder) DocumentAnnotated(chars int) {
	r.documents.Inc()
	r.characters.Add(float64(chars))
}

// DocumentFailed records a skipped document.
func (r *Recorder) DocumentFailed() {
	r.failed.Inc()
}

// BatchFailed records a skipped outer batch.
func (r *Recorder) BatchFailed() {
	r.batchesFailed.Inc()
}

// WorkerStopped records why a worker exited.
func (r *Recorder) WorkerStopped(reason string) {
	r.workerStops.WithLabelValues(reason).Inc()
}

// ShardWritten records a checkpoint shard holding docs documents.
func (r *Recorder) ShardWritten(docs int) {
	r.shards.Inc()
	r.shardSize.Observe(float64(docs))
}
