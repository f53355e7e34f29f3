// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/styles"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// linesPerEntity is the rendered height of one entry.
const linesPerEntity = 2

// EntityList displays detected entities in a navigable list.
type EntityList struct {
	entities []domain.EntityOutput
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewEntityList creates an empty entity list.
func NewEntityList(s *styles.Styles) *EntityList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &EntityList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Update handles list navigation messages.
func (l *EntityList) Update(msg tea.Msg) (*EntityList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyUp:
			l.MoveUp()
		case tea.KeyDown:
			l.MoveDown()
		default:
			switch msg.String() {
			case "k":
				l.MoveUp()
			case "j":
				l.MoveDown()
			}
		}
	}
	return l, nil
}

// View renders the visible window of the list around the selection.
func (l *EntityList) View() string {
	if len(l.entities) == 0 {
		return l.styles.Muted.Render("No entities")
	}

	lines := make([]string, 0, len(l.entities)*linesPerEntity+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Entities (%d)", len(l.entities))), "")

	visible := max((l.height-2)/linesPerEntity, 1)
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.entities))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderEntity(i, l.entities[i]))
	}
	return strings.Join(lines, "\n")
}

func (l *EntityList) renderEntity(index int, e domain.EntityOutput) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	name := e.PrettyName
	if name == "" {
		name = e.CUI
	}
	maxName := max(l.width-30, 10)
	if len(name) > maxName {
		name = name[:maxName-3] + "..."
	}
	acc := fmt.Sprintf("%.2f", e.Acc)

	var head string
	if index == l.selected {
		head = l.styles.Selected.Render(fmt.Sprintf("%s%-*s %-10s %s", indicator, maxName, name, e.CUI, acc))
	} else {
		head = l.styles.Normal.Render(fmt.Sprintf("%s%-*s ", indicator, maxName, name)) +
			l.styles.CUI.Render(fmt.Sprintf("%-10s ", e.CUI)) +
			l.styles.Accuracy(e.Acc).Render(acc)
	}

	detail := fmt.Sprintf("    %q [%d:%d]", e.SourceValue, e.Start, e.End)
	if len(e.Types) > 0 {
		detail += " " + strings.Join(e.Types, ", ")
	}
	for _, name := range slices.Sorted(maps.Keys(e.MetaAnns)) {
		detail += fmt.Sprintf(" %s=%s", name, e.MetaAnns[name].Value)
	}
	return head + "\n" + l.styles.Muted.Render(detail)
}

// SetOutput replaces the list with the entities of out in id order.
func (l *EntityList) SetOutput(out domain.AnnotationOutput) {
	ids := out.EntityIDs()
	l.entities = make([]domain.EntityOutput, 0, len(ids))
	for _, id := range ids {
		l.entities = append(l.entities, out.Entities[id])
	}
	l.selected = 0
}

// Clear empties the list.
func (l *EntityList) Clear() {
	l.entities = nil
	l.selected = 0
}

func (l *EntityList) Entities() []domain.EntityOutput {
	return l.entities
}

func (l *EntityList) Selected() int {
	return l.selected
}

// SelectedEntity returns the highlighted entity, or nil when the list is empty.
func (l *EntityList) SelectedEntity() *domain.EntityOutput {
	if l.selected < 0 || l.selected >= len(l.entities) {
		return nil
	}
	return &l.entities[l.selected]
}

func (l *EntityList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

func (l *EntityList) MoveDown() {
	if l.selected < len(l.entities)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *EntityList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

func (l *EntityList) Count() int {
	return len(l.entities)
}
