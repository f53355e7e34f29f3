package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextInput(t *testing.T) {
	in := NewTextInput(nil)

	require.NotNil(t, in)
	assert.True(t, in.Focused())
	assert.Empty(t, in.Value())
	assert.Equal(t, charLimit, in.textinput.CharLimit)
	assert.NotNil(t, in.Init())
}

func TestTextInput_TypingUpdatesValue(t *testing.T) {
	in := NewTextInput(nil)

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("fever")})

	assert.Equal(t, "fever", in.Value())
}

func TestTextInput_BlurIgnoresTyping(t *testing.T) {
	in := NewTextInput(nil)
	in.Blur()

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})

	assert.False(t, in.Focused())
	assert.Empty(t, in.Value())
}

func TestTextInput_SetWidth(t *testing.T) {
	in := NewTextInput(nil)

	in.SetWidth(100)
	assert.Equal(t, 100, in.Width())
	assert.Equal(t, 90, in.textinput.Width)

	in.SetWidth(15)
	assert.Equal(t, 20, in.textinput.Width)
}

func TestTextInput_View(t *testing.T) {
	in := NewTextInput(nil)
	in.SetValue("chest pain")

	assert.Contains(t, in.View(), "Text:")
	assert.Contains(t, in.View(), "chest pain")
}
