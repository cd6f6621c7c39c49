package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const persistTimeout = 3 * time.Second

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Client.Conversation().Generating() {
			m.UpdateViewport()
		}
		return m, spCmd

	case conversationChangedMsg:
		generating := m.Client.Conversation().Generating()
		if m.wasGenerating && !generating {
			m.persistLastExchange()
		}
		m.wasGenerating = generating
		m.UpdateViewport()
		return m, nil

	case navigatedMsg:
		m.Page = msg.Page
		m.UpdateViewport()
		return m, nil

	case errMsg:
		m.Err = msg
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+l":
			if err := m.Client.ClearHistory(context.Background()); err != nil {
				m.Err = err
			}
			m.UpdateViewport()
			return m, nil

		case "ctrl+r":
			client := m.Client
			return m, func() tea.Msg {
				if err := client.Connect(context.Background()); err != nil {
					return errMsg(err)
				}
				return conversationChangedMsg{}
			}

		case "enter":
			content := strings.TrimSpace(m.TextInput.Value())
			if content == "" || m.Client.Conversation().Generating() {
				return m, nil
			}
			m.TextInput.Reset()
			m.Err = nil
			if err := m.Client.SendMessage(context.Background(), content); err != nil {
				m.Err = err
			}
			m.wasGenerating = m.Client.Conversation().Generating()
			m.UpdateViewport()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		chatWidth := msg.Width - 2
		if chatWidth > maxChatWidth {
			chatWidth = maxChatWidth
		}
		m.Viewport.Width = chatWidth
		m.Viewport.Height = msg.Height - 8
		if m.Viewport.Height < 5 {
			m.Viewport.Height = 5
		}
		m.TextInput.SetWidth(chatWidth - 4)

		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// persistLastExchange writes the trailing user/assistant pair of the
// finished generation to the transcript store.
func (m *Model) persistLastExchange() {
	if m.Repo == nil {
		return
	}
	session := m.Client.SessionID()
	if session == "" {
		return
	}
	msgs := m.Client.Conversation().Messages()
	if len(msgs) == 0 {
		return
	}
	start := len(msgs) - 2
	if start < 0 {
		start = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, msg := range msgs[start:] {
		if msg.Content == "" {
			continue
		}
		if err := m.Repo.SaveMessage(ctx, session, msg.Role, msg.Content); err != nil {
			m.Err = err
			return
		}
	}
}
