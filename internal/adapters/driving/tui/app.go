package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/keymap"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/messages"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/styles"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/tui/views/annotate"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	styles *styles.Styles
	keymap *keymap.KeyMap

	annotateView *annotate.View

	currentView messages.ViewType

	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:        ports,
		styles:       s,
		keymap:       km,
		annotateView: annotate.NewView(s, km, ports.Annotator, ports.Concepts),
		currentView:  messages.ViewAnnotate,
	}, nil
}

// WithContext sets the context used for annotation calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.annotateView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("medcat"),
		a.annotateView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Global quit with ctrl+c
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewHelp {
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				a.currentView = messages.ViewAnnotate
			}
			return a, nil
		}
		a.annotateView, cmd = a.annotateView.Update(msg)
		a.err = a.annotateView.Err()
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err

	case messages.Quit:
		return a, tea.Quit
	}

	a.annotateView, cmd = a.annotateView.Update(msg)
	if a.annotateView.Err() != nil {
		a.err = a.annotateView.Err()
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	if a.currentView == messages.ViewHelp {
		return a.viewHelp()
	}
	return a.annotateView.View()
}

func (a *App) viewHelp() string {
	out := a.styles.Title.Render("Help") + "\n"
	for _, group := range a.keymap.FullHelp() {
		out += "\n"
		for _, b := range group {
			h := b.Help()
			out += fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc)
		}
	}
	return out + "\n" + a.styles.Muted.Render("[esc] back")
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.annotateView.SetDimensions(width, height)
}
