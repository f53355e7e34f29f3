package mcp

import (
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Annotator annotates texts.
	Annotator driving.Annotator

	// Concepts browses the concept database. Optional.
	Concepts driving.ConceptBrowser

	// Trainer curates the loaded model during the session. Optional;
	// changes are not persisted.
	Trainer driving.Trainer
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Annotator == nil {
		return ErrMissingAnnotator
	}
	return nil
}
