// Package annotate provides the interactive annotation view for the TUI.
package annotate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/components/input"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/components/list"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/components/status"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/keymap"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/messages"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/styles"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
)

// View shows a text input, the annotated text with mentions highlighted,
// the entity list and a status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.TextInput
	list      *list.EntityList
	statusbar *status.Bar

	annotator driving.Annotator
	concepts  driving.ConceptBrowser
	ctx       context.Context

	text    string
	concept *domain.Concept

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing, false = browsing entities
}

// NewView creates an annotate view. concepts may be nil.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	annotator driving.Annotator,
	concepts driving.ConceptBrowser,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewTextInput(s),
		list:       list.NewEntityList(s),
		statusbar:  status.NewBar(s, km),
		annotator:  annotator,
		concepts:   concepts,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context used for annotation calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the annotate view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnnotationCompleted:
		v.handleAnnotationCompleted(msg)
		return v, nil

	case messages.ConceptLoaded:
		v.handleConceptLoaded(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	// Esc closes an open concept panel first.
	if v.concept != nil && msg.Type == tea.KeyEsc {
		v.concept = nil
		v.statusbar.SetMessage("")
		return v, nil
	}

	if msg.Type == tea.KeyEsc {
		if v.focusInput {
			return v, func() tea.Msg { return messages.Quit{} }
		}
		v.startNewText(false)
		return v, nil
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(v.input.Value())
			if text == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateAnnotating)
			v.focusInput = false
			v.input.Blur()
			return v, v.annotate(text)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case msg.Type == tea.KeyEnter:
		if e := v.list.SelectedEntity(); e != nil {
			return v, v.loadConcept(e.CUI)
		}
	case msg.String() == "n":
		v.startNewText(true)
		return v, v.input.Focus()
	case msg.String() == "?":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }
	default:
		v.concept = nil
		v.list, _ = v.list.Update(msg)
	}
	return v, nil
}

// startNewText returns to typing. With drop the previous text is cleared.
func (v *View) startNewText(drop bool) {
	v.focusInput = true
	v.concept = nil
	v.input.Focus()
	if drop {
		v.input.SetValue("")
	}
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

// annotate runs the annotator off the update loop.
func (v *View) annotate(text string) tea.Cmd {
	annotator, ctx := v.annotator, v.ctx
	return func() tea.Msg {
		if annotator == nil {
			return messages.ErrorOccurred{Err: ErrNoAnnotator}
		}
		out, err := annotator.Annotate(ctx, text)
		return messages.AnnotationCompleted{Text: text, Output: out, Err: err}
	}
}

func (v *View) loadConcept(cui string) tea.Cmd {
	concepts := v.concepts
	return func() tea.Msg {
		if concepts == nil {
			return messages.ConceptLoaded{Err: ErrNoConcepts}
		}
		c, err := concepts.Concept(cui)
		return messages.ConceptLoaded{Concept: c, Err: err}
	}
}

func (v *View) handleAnnotationCompleted(msg messages.AnnotationCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		v.focusInput = true
		v.input.Focus()
		return
	}
	v.err = nil
	v.text = msg.Text
	v.list.SetOutput(msg.Output)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetMessage("")
	v.statusbar.SetEntityCount(v.list.Count())
}

func (v *View) handleConceptLoaded(msg messages.ConceptLoaded) {
	if msg.Err != nil {
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}
	c := msg.Concept
	v.concept = &c
	v.statusbar.SetMessage(c.DisplayName())
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the annotate view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections, v.styles.Title.Render("MedCAT"), "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	if v.text != "" && !v.focusInput {
		sections = append(sections, v.wrap(v.highlight()), "")
	}

	sections = append(sections, v.list.View())

	if v.concept != nil {
		sections = append(sections, "", v.renderConcept(*v.concept))
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// highlight renders the annotated text with top-level mentions styled.
// Offsets are character offsets, so the text is indexed by rune.
func (v *View) highlight() string {
	runes := []rune(v.text)
	entities := v.list.Entities()
	spans := make([]domain.EntityOutput, 0, len(entities))
	spans = append(spans, entities...)
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var b strings.Builder
	pos := 0
	for _, e := range spans {
		if e.Start < pos || e.End > len(runes) || e.Start >= e.End {
			continue // nested or out of range
		}
		b.WriteString(string(runes[pos:e.Start]))
		b.WriteString(v.styles.Mention.Render(string(runes[e.Start:e.End])))
		pos = e.End
	}
	b.WriteString(string(runes[pos:]))
	return b.String()
}

func (v *View) wrap(s string) string {
	return lipgloss.NewStyle().Width(max(v.width-2, 20)).Render(s)
}

func (v *View) renderConcept(c domain.Concept) string {
	lines := []string{
		v.styles.Title.Render(c.DisplayName()) + " " + v.styles.CUI.Render(c.CUI),
		v.styles.Muted.Render("Names: ") + strings.Join(c.Names, ", "),
	}
	if len(c.TypeIDs) > 0 {
		lines = append(lines, v.styles.Muted.Render("Types: ")+strings.Join(c.TypeIDs, ", "))
	}
	lines = append(lines, v.styles.Muted.Render(fmt.Sprintf("Training updates: %d", c.TrainCount)))
	return v.styles.Border.Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-12) // header, input, text and status
	v.statusbar.SetWidth(width)
}

// Reset returns the view to an empty input.
func (v *View) Reset() {
	v.startNewText(true)
	v.text = ""
	v.err = nil
	v.list.Clear()
	v.statusbar.Clear()
}

// Text returns the last annotated text.
func (v *View) Text() string {
	return v.text
}

// Entities returns the entities of the last annotation in id order.
func (v *View) Entities() []domain.EntityOutput {
	return v.list.Entities()
}

// Concept returns the concept shown in the detail panel, if any.
func (v *View) Concept() *domain.Concept {
	return v.concept
}

func (v *View) Err() error {
	return v.err
}

func (v *View) InputFocused() bool {
	return v.focusInput
}

func (v *View) Ready() bool {
	return v.ready
}
