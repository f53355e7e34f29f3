// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// AnnotationCompleted carries the entities found in the submitted text.
type AnnotationCompleted struct {
	Text   string
	Output domain.AnnotationOutput
	Err    error
}

// ConceptLoaded carries the concept behind the selected entity.
type ConceptLoaded struct {
	Concept domain.Concept
	Err     error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewAnnotate is the text input and entity list view.
	ViewAnnotate ViewType = iota
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewAnnotate:
		return "annotate"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
