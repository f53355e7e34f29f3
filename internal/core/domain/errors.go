package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// Model Errors.

	// ErrMissingConceptDB indicates the concept database could not be loaded.
	// Nothing can be annotated or trained without it, so this is never retried.
	ErrMissingConceptDB = errors.New("concept database missing")

	// ErrMissingVocab indicates the vocabulary could not be loaded.
	ErrMissingVocab = errors.New("vocabulary missing")

	// ErrPipelineUnavailable indicates no annotation pipeline is configured.
	ErrPipelineUnavailable = errors.New("annotation pipeline unavailable")

	// Dataset Errors.

	// ErrInvalidDataset indicates a trainer export could not be interpreted.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrInvalidSpan indicates annotation offsets outside the document text.
	ErrInvalidSpan = errors.New("invalid span")

	// Inference Errors.

	// ErrInvalidBatchBudget indicates a non-positive character budget.
	ErrInvalidBatchBudget = errors.New("batch budget must be positive")

	// ErrInvalidWorkerCount indicates a non-positive worker count.
	ErrInvalidWorkerCount = errors.New("worker count must be positive")

	// ErrCheckpointCorrupt indicates a cursor or shard could not be decoded.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)
