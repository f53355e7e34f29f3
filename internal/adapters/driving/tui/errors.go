package tui

import "errors"

// ErrMissingAnnotator is returned when the annotator is not provided.
var ErrMissingAnnotator = errors.New("tui: annotator is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
