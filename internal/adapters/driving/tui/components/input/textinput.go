// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/styles"
)

// charLimit bounds a single interactive text.
const charLimit = 4096

// TextInput wraps a bubbles textinput for entering clinical text.
type TextInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewTextInput creates a focused text input.
func NewTextInput(s *styles.Styles) *TextInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Type or paste clinical text..."
	ti.Focus()
	ti.CharLimit = charLimit
	ti.Width = 50

	return &TextInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init starts the cursor blinking.
func (t *TextInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (t *TextInput) Update(msg tea.Msg) (*TextInput, tea.Cmd) {
	var cmd tea.Cmd
	t.textinput, cmd = t.textinput.Update(msg)
	return t, cmd
}

// View renders the input with its label.
func (t *TextInput) View() string {
	label := t.styles.Title.Render("Text: ")
	field := t.styles.InputField.Render(t.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

func (t *TextInput) Value() string {
	return t.textinput.Value()
}

func (t *TextInput) SetValue(value string) {
	t.textinput.SetValue(value)
}

func (t *TextInput) Focus() tea.Cmd {
	return t.textinput.Focus()
}

func (t *TextInput) Blur() {
	t.textinput.Blur()
}

func (t *TextInput) Focused() bool {
	return t.textinput.Focused()
}

// SetWidth sets the width, leaving room for the label and border.
func (t *TextInput) SetWidth(width int) {
	t.width = width
	t.textinput.Width = max(width-10, 20)
}

func (t *TextInput) Width() int {
	return t.width
}
