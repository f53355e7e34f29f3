package annotate

import "errors"

// Error definitions for the annotate view.
var (
	// ErrNoAnnotator indicates that no annotator was provided.
	ErrNoAnnotator = errors.New("annotator is required")

	// ErrNoConcepts indicates that concept lookup is unavailable.
	ErrNoConcepts = errors.New("concept lookup is not available")
)
