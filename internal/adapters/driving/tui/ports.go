// Package tui provides an interactive terminal user interface for medcat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Annotator annotates the entered text.
	Annotator driving.Annotator

	// Concepts shows the concept behind an entity. Optional.
	Concepts driving.ConceptBrowser
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Annotator == nil {
		return ErrMissingAnnotator
	}
	return nil
}
