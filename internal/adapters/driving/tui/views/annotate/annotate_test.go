package annotate

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/messages"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

type mockAnnotator struct {
	out  domain.AnnotationOutput
	err  error
	text string
}

func (m *mockAnnotator) Annotate(_ context.Context, text string) (domain.AnnotationOutput, error) {
	m.text = text
	return m.out, m.err
}

func (m *mockAnnotator) AnnotateTexts(context.Context, []string, int, int) ([]domain.AnnotationOutput, error) {
	return nil, nil
}

type mockConcepts struct{}

func (mockConcepts) Concept(cui string) (domain.Concept, error) {
	if cui == "C0008031" {
		return domain.Concept{CUI: cui, PreferredName: "Chest pain", Names: []string{"chest~pain"}, TrainCount: 4}, nil
	}
	return domain.Concept{}, domain.ErrNotFound
}

func (mockConcepts) Lookup(string) []domain.Concept { return nil }

func chestPain() domain.AnnotationOutput {
	return domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{
		0: {ID: 0, CUI: "C0008031", PrettyName: "Chest pain", SourceValue: "chest pain", Start: 3, End: 13, Acc: 0.8},
	}}
}

func newReadyView(a *mockAnnotator) *View {
	v := NewView(nil, nil, a, mockConcepts{})
	v.SetDimensions(100, 40)
	return v
}

func typeText(v *View, text string) *View {
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return v
}

// submit presses enter and feeds the command's message back into the view.
func submit(t *testing.T, v *View) *View {
	t.Helper()
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())
	return v
}

func TestNewView_Defaults(t *testing.T) {
	v := NewView(nil, nil, nil, nil)

	assert.True(t, v.InputFocused())
	assert.False(t, v.Ready())
	assert.Equal(t, "Initialising...", v.View())
	assert.NotNil(t, v.Init())
}

func TestView_AnnotateText(t *testing.T) {
	a := &mockAnnotator{out: chestPain()}
	v := newReadyView(a)

	v = typeText(v, "No chest pain today")
	v = submit(t, v)

	assert.Equal(t, "No chest pain today", a.text)
	assert.False(t, v.InputFocused())
	assert.Equal(t, "No chest pain today", v.Text())
	require.Len(t, v.Entities(), 1)
	assert.Equal(t, "C0008031", v.Entities()[0].CUI)
	assert.Contains(t, v.View(), "Entities (1)")
	assert.Contains(t, v.View(), "1 entities")
}

func TestView_EnterOnEmptyInputDoesNothing(t *testing.T) {
	v := newReadyView(&mockAnnotator{})

	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, v.InputFocused())
}

func TestView_AnnotationError(t *testing.T) {
	v := newReadyView(&mockAnnotator{err: errors.New("model not loaded")})

	v = typeText(v, "fever")
	v = submit(t, v)

	require.Error(t, v.Err())
	assert.True(t, v.InputFocused())
	assert.Contains(t, v.View(), "Error: model not loaded")
}

func TestView_NoAnnotator(t *testing.T) {
	v := NewView(nil, nil, nil, nil)
	v.SetDimensions(80, 24)

	v = typeText(v, "fever")
	v = submit(t, v)

	assert.ErrorIs(t, v.Err(), ErrNoAnnotator)
}

func TestView_ShowsConceptForSelectedEntity(t *testing.T) {
	v := newReadyView(&mockAnnotator{out: chestPain()})
	v = typeText(v, "No chest pain today")
	v = submit(t, v)

	v = submit(t, v)

	require.NotNil(t, v.Concept())
	assert.Equal(t, "Chest pain", v.Concept().DisplayName())
	assert.Contains(t, v.View(), "Training updates: 4")

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, v.Concept())
	assert.False(t, v.InputFocused())
}

func TestView_ConceptLookupUnavailable(t *testing.T) {
	v := NewView(nil, nil, &mockAnnotator{out: chestPain()}, nil)
	v.SetDimensions(100, 40)
	v = typeText(v, "No chest pain today")
	v = submit(t, v)

	v = submit(t, v)

	assert.Nil(t, v.Concept())
	assert.Contains(t, v.View(), ErrNoConcepts.Error())
}

func TestView_NewTextClearsInput(t *testing.T) {
	v := newReadyView(&mockAnnotator{out: chestPain()})
	v = typeText(v, "No chest pain today")
	v = submit(t, v)

	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

	assert.NotNil(t, cmd)
	assert.True(t, v.InputFocused())
	assert.NotContains(t, v.View(), "No chest pain today")
}

func TestView_EscFromInputQuits(t *testing.T) {
	v := newReadyView(&mockAnnotator{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.Quit{}, cmd())
}

func TestView_HelpFromResults(t *testing.T) {
	v := newReadyView(&mockAnnotator{out: chestPain()})
	v = typeText(v, "chest pain")
	v = submit(t, v)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewHelp}, cmd())
}

func TestView_HighlightSkipsOverlapsAndUsesRuneOffsets(t *testing.T) {
	v := newReadyView(&mockAnnotator{})
	v.text = "Bö chest pain"
	v.list.SetOutput(domain.AnnotationOutput{Entities: map[int]domain.EntityOutput{
		0: {Start: 3, End: 13},
		1: {Start: 9, End: 13},
		2: {Start: 20, End: 25},
	}})

	assert.Contains(t, v.highlight(), "chest pain")
	assert.Contains(t, v.highlight(), "Bö ")
}

func TestView_Reset(t *testing.T) {
	v := newReadyView(&mockAnnotator{out: chestPain()})
	v = typeText(v, "chest pain")
	v = submit(t, v)

	v.Reset()

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Text())
	assert.Empty(t, v.Entities())
	assert.NoError(t, v.Err())
}
