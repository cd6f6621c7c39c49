package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/selene-app/selene/internal/chart"
	"github.com/selene-app/selene/internal/companion"
	"github.com/selene-app/selene/internal/events"
	"github.com/selene-app/selene/internal/history"
)

const maxChatWidth = 100

// Messages pushed into the program from outside the Update loop.
type (
	conversationChangedMsg struct{}
	navigatedMsg           struct{ Page string }
	errMsg                 error
)

type Model struct {
	Viewport     viewport.Model
	TextInput    textarea.Model
	Spinner      spinner.Model
	Client       *companion.Client
	Repo         history.Repository
	State        *chart.Store
	Bus          *events.Bus
	Renderer     *glamour.TermRenderer
	Err          error
	WindowWidth  int
	WindowHeight int
	Page         string

	// Tracks the generating flag across refreshes so a finished
	// exchange is persisted exactly once.
	wasGenerating bool
}

func InitialModel(client *companion.Client, repo history.Repository, state *chart.Store, bus *events.Bus) Model {
	ti := textarea.New()
	ti.Placeholder = "Ask the stars..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))

	vp := viewport.New(60, 15)

	return Model{
		TextInput: ti,
		Viewport:  vp,
		Spinner:   sp,
		Client:    client,
		Repo:      repo,
		State:     state,
		Bus:       bus,
		Page:      "chart",
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
	)
}

// NewProgram builds the program and wires external change sources
// into it. Conversation updates and navigation events arrive from
// goroutines outside the Update loop, so they are forwarded as
// messages via Program.Send.
func NewProgram(client *companion.Client, repo history.Repository, state *chart.Store, bus *events.Bus) *tea.Program {
	m := InitialModel(client, repo, state, bus)
	p := tea.NewProgram(&m, tea.WithAltScreen())

	// Watchers can fire from inside the Update loop (a mutation made by a
	// key handler notifies immediately), so the forward must not block on
	// the program's own message channel.
	client.Conversation().Watch(func() {
		go p.Send(conversationChangedMsg{})
	})
	bus.Subscribe(func(ev events.Event) {
		if nav, ok := ev.(events.Navigate); ok {
			go p.Send(navigatedMsg{Page: nav.Page})
		}
	})
	return p
}
