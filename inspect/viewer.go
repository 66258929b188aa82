package inspect

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

var quitKey = key.NewBinding(
	key.WithKeys("q", "esc", "ctrl+c"),
	key.WithHelp("q", "quit"),
)

// Viewer is the scrollable view of the report.
type Viewer struct {
	content  string
	viewport viewport.Model
	ready    bool
}

// NewViewer returns viewer of the report.
func NewViewer(r Report) Viewer {
	return Viewer{content: Full(r)}
}

// Init implements tea.Model.
func (v Viewer) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (v Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !v.ready {
			v.viewport = viewport.New(msg.Width, msg.Height-1)
			v.viewport.SetContent(v.content)
			v.ready = true
		} else {
			v.viewport.Width = msg.Width
			v.viewport.Height = msg.Height - 1
		}
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return v, tea.Quit
		}
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// View implements tea.Model.
func (v Viewer) View() string {
	if !v.ready {
		return "loading..."
	}
	return v.viewport.View() + "\n" + labelStyle.Render("↑/↓ scroll • "+quitKey.Help().Key+" "+quitKey.Help().Desc)
}

// Run runs the interactive viewer until user quits.
func Run(r Report) error {
	_, err := tea.NewProgram(NewViewer(r), tea.WithAltScreen()).Run()
	return errors.WithStack(err)
}
