package services

import (
	"iter"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// workerBatchDivisor sets how many internal batches each worker should
// receive per outer batch.
const workerBatchDivisor = 5

// Batches groups items into batches whose character length stays within
// budget. An item that would overflow a non-empty batch starts the next
// one; an item larger than the budget forms its own batch. The final
// partial batch is always emitted. Items whose id is in skip are dropped.
// A budget below one is treated as one.
func Batches(items iter.Seq[domain.Item], budget int, skip map[string]struct{}) iter.Seq[domain.Batch] {
	budget = max(budget, 1)
	return func(yield func(domain.Batch) bool) {
		var batch domain.Batch
		size := 0
		for it := range items {
			if _, ok := skip[it.ID]; ok {
				continue
			}
			n := it.Chars()
			if len(batch) > 0 && size+n > budget {
				if !yield(batch) {
					return
				}
				batch, size = nil, 0
			}
			batch = append(batch, it)
			size += n
			if size >= budget {
				if !yield(batch) {
					return
				}
				batch, size = nil, 0
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

// InternalBatchBudget derives the per-worker batch budget from an outer
// batch budget: outer / (5 × workers), at least one.
func InternalBatchBudget(outer, workers int) int {
	return max(outer/(workerBatchDivisor*max(workers, 1)), 1)
}
