// Package mcp provides an MCP (Model Context Protocol) server adapter for MedCAT.
// It lets AI assistants annotate clinical text and browse the concept database.
package mcp

import "errors"

// ErrMissingAnnotator is returned when the annotator is not provided.
var ErrMissingAnnotator = errors.New("mcp: annotator is required")
