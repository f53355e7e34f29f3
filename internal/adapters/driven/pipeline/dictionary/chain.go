package dictionary

import (
	"context"
	"errors"
	"fmt"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Doc is the working state passed along the component chain.
type Doc struct {
	Text    string
	Runes   []rune
	Filters *domain.FilterContext

	// Tokens is filled by the tokenizer.
	Tokens []Token

	// Spans are recognised names with every CUI they may refer to.
	Spans []Span

	// Linked are spans resolved to a single CUI, possibly overlapping.
	Linked []domain.Entity

	// Entities and Nested are the final entity sets.
	Entities []domain.Entity
	Nested   []domain.Entity
}

func newDoc(text string, filters *domain.FilterContext) *Doc {
	if filters == nil {
		filters = domain.NewFilterContext()
	}
	return &Doc{Text: text, Runes: []rune(text), Filters: filters}
}

// Result returns the annotated document built by the chain.
func (d *Doc) Result() *domain.AnnotatedDocument {
	return &domain.AnnotatedDocument{Text: d.Text, Entities: d.Entities, Nested: d.Nested}
}

// Component is one stage of the annotation chain.
type Component interface {
	// Name identifies the component in errors and logs.
	Name() string

	// Process reads and extends the working document in place.
	Process(ctx context.Context, doc *Doc) error
}

// StageError reports which component failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("component %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageOf returns the failing component name, or "pipeline".
func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

// Chain runs components in order.
type Chain struct {
	components []Component
}

// NewChain creates a chain with the given components.
func NewChain(components ...Component) *Chain {
	return &Chain{components: components}
}

// Process runs the document through every component in order, stopping at
// the first failure or when ctx is done.
func (c *Chain) Process(ctx context.Context, doc *Doc) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}
	for _, comp := range c.components {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := comp.Process(ctx, doc); err != nil {
			return &StageError{Stage: comp.Name(), Err: err}
		}
	}
	return nil
}

// Add appends a component to the chain.
func (c *Chain) Add(comp Component) {
	c.components = append(c.components, comp)
}

// Len returns the number of components.
func (c *Chain) Len() int {
	return len(c.components)
}

// Names returns the component names in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.components))
	for _, comp := range c.components {
		names = append(names, comp.Name())
	}
	return names
}
