package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// Ensure BulkAnnotator implements the interface.
var _ driving.BulkAnnotator = (*BulkAnnotator)(nil)

// batchRunner annotates a set of batches in parallel.
type batchRunner interface {
	Run(ctx context.Context, batches []domain.Batch, workers int, minFree float64) (map[string]domain.AnnotationOutput, error)
}

// BulkAnnotator runs resumable, checkpointed parallel inference.
type BulkAnnotator struct {
	pipeline driven.Pipeline
	concepts driven.ConceptStore
	opts     []InferenceOption
	deps     inferenceDeps

	// newRunner builds the runner for one Run.
	newRunner func(output OutputBuilder, separate bool) batchRunner
}

// NewBulkAnnotator creates a bulk annotator. Checkpointing requires
// WithCheckpointStore.
func NewBulkAnnotator(pipeline driven.Pipeline, concepts driven.ConceptStore, opts ...InferenceOption) *BulkAnnotator {
	b := &BulkAnnotator{
		pipeline: pipeline,
		concepts: concepts,
		opts:     opts,
		deps:     newInferenceDeps(opts),
	}
	b.newRunner = func(output OutputBuilder, separate bool) batchRunner {
		return NewWorkerPool(b.pipeline, output, separate, b.opts...)
	}
	return b
}

// bulkRun is the mutable state of one Run.
type bulkRun struct {
	runID      string
	annotated  []string
	part       int
	results    map[string]domain.AnnotationOutput
	sinceFlush int
}

// Run annotates every item not recorded in the checkpoint cursor. With
// checkpointing on, results are flushed to numbered shards whenever the
// annotated volume since the last flush exceeds opts.OutSplitSizeChars,
// and the results not yet flushed are written as a final shard. The
// returned map holds the results since the last intermediate flush.
//
// An outer batch that fails is logged and skipped; flushed shards are kept.
// Cancellation stops the run without a final flush.
func (b *BulkAnnotator) Run(
	ctx context.Context,
	items iter.Seq[domain.Item],
	opts domain.BulkOptions,
) (map[string]domain.AnnotationOutput, error) {
	if opts.Workers < 1 {
		return nil, domain.ErrInvalidWorkerCount
	}
	if opts.BatchSizeChars < 1 {
		return nil, domain.ErrInvalidBatchBudget
	}
	if b.pipeline == nil {
		return nil, domain.ErrPipelineUnavailable
	}

	checkpointing := b.deps.store != nil && opts.Checkpointing()
	run, err := b.start(ctx, checkpointing)
	if err != nil {
		return nil, err
	}

	pool := b.newRunner(OutputBuilder{
		Concepts:    b.concepts,
		OnlyCUI:     opts.OnlyCUI,
		AddlInfo:    opts.AddlInfo,
		IncludeText: opts.IncludeText,
		Nested:      b.deps.nested,
	}, opts.SeparateNNComponents)
	inner := InternalBatchBudget(opts.BatchSizeChars, opts.Workers)
	started := time.Now()

	n := 0
	for outer := range Batches(items, opts.BatchSizeChars, run.skip()) {
		if err := ctx.Err(); err != nil {
			return run.results, err
		}
		n++
		logger.Info("Annotated until now: %d docs; Current BS: %d docs; Elapsed time: %.2f minutes",
			len(run.annotated), len(outer), time.Since(started).Minutes())

		out, err := b.runOuter(ctx, pool, outer, inner, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run.results, ctxErr
			}
			logger.Warn("Failed outer batch %d: %v", n, err)
			b.deps.metrics.BatchFailed()
			continue
		}

		for _, it := range outer {
			o, ok := out[it.ID]
			if !ok {
				continue
			}
			run.results[it.ID] = o
			run.annotated = append(run.annotated, it.ID)
			run.sinceFlush += it.Chars()
		}

		if checkpointing && run.sinceFlush > opts.OutSplitSizeChars {
			if err := b.flush(ctx, run); err != nil {
				return run.results, err
			}
			run.results = map[string]domain.AnnotationOutput{}
			run.sinceFlush = 0
		}
	}

	if checkpointing && len(run.results) > 0 {
		if err := b.flush(ctx, run); err != nil {
			return run.results, err
		}
	}
	return run.results, nil
}

// start loads the cursor when checkpointing, or begins a fresh run.
func (b *BulkAnnotator) start(ctx context.Context, checkpointing bool) (*bulkRun, error) {
	run := &bulkRun{results: map[string]domain.AnnotationOutput{}}
	if !checkpointing {
		run.runID = b.deps.newRunID()
		return run, nil
	}

	cp, err := b.deps.store.LoadCursor(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		run.runID = b.deps.newRunID()
		logger.Info("Starting bulk run %s", run.runID)
	case err != nil:
		return nil, fmt.Errorf("load cursor: %w", err)
	default:
		run.runID = cp.RunID
		run.annotated = append(run.annotated, cp.AnnotatedIDs...)
		run.part = cp.NextPart
		logger.Info("Resuming bulk run %s at part %d with %d documents done", cp.RunID, cp.NextPart, len(cp.AnnotatedIDs))
	}
	return run, nil
}

func (r *bulkRun) skip() map[string]struct{} {
	return (&domain.Checkpoint{AnnotatedIDs: r.annotated}).SkipSet()
}

// runOuter splits an outer batch for the pool and runs it, turning a panic
// into an error.
func (b *BulkAnnotator) runOuter(ctx context.Context, pool batchRunner, outer domain.Batch, inner int,
	opts domain.BulkOptions) (out map[string]domain.AnnotationOutput, err error) {
	err = safeCall(func() error {
		batches := slices.Collect(Batches(slices.Values(outer), inner, nil))
		var runErr error
		out, runErr = pool.Run(ctx, batches, opts.Workers, opts.MinFreeMemory)
		return runErr
	})
	return out, err
}

// flush writes the current results as shard part, then the cursor pointing
// at part+1. The cursor is written second so a crash between the two only
// repeats work.
func (b *BulkAnnotator) flush(ctx context.Context, run *bulkRun) error {
	now := time.Now().UTC()
	shard := domain.ResultShard{
		RunID:     run.runID,
		Part:      run.part,
		Results:   run.results,
		CreatedAt: now,
	}
	if err := b.deps.store.SaveShard(ctx, shard); err != nil {
		return fmt.Errorf("save shard %d: %w", run.part, err)
	}
	cp := domain.Checkpoint{
		RunID:        run.runID,
		AnnotatedIDs: slices.Clone(run.annotated),
		NextPart:     run.part + 1,
		UpdatedAt:    now,
	}
	if err := b.deps.store.SaveCursor(ctx, cp); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	logger.Info("Saved part: %d with %d documents", run.part, len(run.results))
	b.deps.metrics.ShardWritten(len(run.results))
	run.part++
	return nil
}
