package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// queueFactor sizes the work queue relative to the worker count.
const queueFactor = 10

// Worker stop reasons reported to metrics.
const (
	stopMemory    = "memory"
	stopDrained   = "drained"
	stopCancelled = "cancelled"
)

// WorkerPool annotates batches in parallel under a memory admission policy.
type WorkerPool struct {
	pipeline driven.Pipeline
	output   OutputBuilder
	separate bool
	deps     inferenceDeps
}

// NewWorkerPool creates a worker pool. With separate set, meta classifiers
// run once over the merged results instead of per document.
func NewWorkerPool(pipeline driven.Pipeline, output OutputBuilder, separate bool, opts ...InferenceOption) *WorkerPool {
	return &WorkerPool{
		pipeline: pipeline,
		output:   output,
		separate: separate,
		deps:     newInferenceDeps(opts),
	}
}

type idOutput struct {
	id  string
	out domain.AnnotationOutput
}

// Run annotates every item of every batch with the given number of workers.
// A worker stops early, keeping what it has, when the free memory ratio
// drops below minFreeMemory. Documents that fail are logged and left out.
// The result is keyed by item id and carries no ordering. On cancellation
// the results gathered so far are returned with the context error.
func (p *WorkerPool) Run(
	ctx context.Context,
	batches []domain.Batch,
	workers int,
	minFreeMemory float64,
) (map[string]domain.AnnotationOutput, error) {
	if workers < 1 {
		return nil, domain.ErrInvalidWorkerCount
	}
	if p.pipeline == nil {
		return nil, domain.ErrPipelineUnavailable
	}

	queue := make(chan domain.Batch, queueFactor*workers)
	workersDone := make(chan struct{})

	// Closing the queue tells every worker there is no more work.
	go func() {
		defer close(queue)
		for _, b := range batches {
			select {
			case queue <- b:
			case <-workersDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu     sync.Mutex
		shared []idOutput
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			local := p.work(gctx, w, queue, minFreeMemory)
			mu.Lock()
			shared = append(shared, local...)
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()
	close(workersDone)

	results := make(map[string]domain.AnnotationOutput, len(shared))
	for _, r := range shared {
		results[r.id] = r.out
	}

	if p.separate && len(p.deps.classifiers) > 0 {
		if p.output.OnlyCUI {
			logger.Debug("Skipping meta classifiers for CUI-only output")
		} else {
			p.classifyMerged(ctx, results, batches)
		}
	}

	return results, err
}

// work drains the queue until it is closed, memory runs low or the context
// ends, and returns the worker's results.
func (p *WorkerPool) work(ctx context.Context, id int, queue <-chan domain.Batch, minFree float64) []idOutput {
	var local []idOutput
	for {
		if p.underPressure(minFree) {
			logger.Warn("Worker %d: free memory below %.2f, stopping with %d documents", id, minFree, len(local))
			p.deps.metrics.WorkerStopped(stopMemory)
			return local
		}

		select {
		case <-ctx.Done():
			p.deps.metrics.WorkerStopped(stopCancelled)
			return local
		case batch, ok := <-queue:
			if !ok {
				p.deps.metrics.WorkerStopped(stopDrained)
				return local
			}
			for _, it := range batch {
				out, err := p.annotateOne(ctx, it)
				if err != nil {
					logger.Warn("Worker %d failed one document, running will continue normally. "+
						"Document length in chars: %d, and ID: %s: %v", id, it.Chars(), it.ID, err)
					p.deps.metrics.DocumentFailed()
					continue
				}
				local = append(local, idOutput{id: it.ID, out: out})
				p.deps.metrics.DocumentAnnotated(it.Chars())
			}
		}
	}
}

func (p *WorkerPool) annotateOne(ctx context.Context, it domain.Item) (out domain.AnnotationOutput, err error) {
	err = safeCall(func() error {
		doc, err := p.pipeline.Annotate(ctx, p.deps.trim(it.Text), p.deps.filters)
		if err != nil {
			return err
		}
		if !p.separate && doc != nil {
			runClassifiers(ctx, p.deps.classifiers, []*domain.AnnotatedDocument{doc})
		}
		out = p.output.Build(doc)
		return nil
	})
	return out, err
}

// underPressure reports whether available/total memory is below minFree.
// Probe failures are logged and treated as no pressure.
func (p *WorkerPool) underPressure(minFree float64) bool {
	if p.deps.probe == nil || minFree <= 0 {
		return false
	}
	avail, total, err := p.deps.probe.Memory()
	if err != nil {
		logger.Debug("Memory probe failed: %v", err)
		return false
	}
	if total == 0 {
		return false
	}
	return float64(avail)/float64(total) < minFree
}

// classifyMerged runs the classifiers once over all results and merges
// their decisions back by entity id.
func (p *WorkerPool) classifyMerged(ctx context.Context, results map[string]domain.AnnotationOutput,
	batches []domain.Batch) {
	texts := make(map[string]string)
	for _, b := range batches {
		for _, it := range b {
			texts[it.ID] = p.deps.trim(it.Text)
		}
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]*domain.AnnotatedDocument, len(ids))
	for i, id := range ids {
		docs[i] = results[id].ToDocument(texts[id])
	}

	logger.Debug("Running meta classifiers over %d documents", len(docs))
	runClassifiers(ctx, p.deps.classifiers, docs)

	for i, id := range ids {
		metas := make(map[int]map[string]domain.MetaAnnotation)
		for _, ent := range docs[i].Entities {
			if len(ent.MetaAnns) > 0 {
				metas[ent.ID] = ent.MetaAnns
			}
		}
		results[id].MergeMeta(metas)
	}
}

// runClassifiers applies each classifier in turn. A failing classifier is
// logged and the documents keep whatever was attached before it.
func runClassifiers(ctx context.Context, cs []driven.MetaClassifier, docs []*domain.AnnotatedDocument) {
	for _, c := range cs {
		err := safeCall(func() error { return c.ClassifyBatch(ctx, docs) })
		if err != nil {
			logger.Warn("Meta classifier %s failed: %v", c.Name(), fmt.Errorf("classify batch: %w", err))
		}
	}
}
