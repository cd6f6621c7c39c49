package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/selene-app/selene/internal/companion"
	"github.com/selene-app/selene/internal/domain"
)

// UpdateViewport rebuilds the transcript content and pins the view to
// the newest message.
func (m *Model) UpdateViewport() {
	conv := m.Client.Conversation()
	msgs := conv.Messages()
	insights := conv.Insights()

	var blocks []string
	for _, msg := range msgs {
		switch msg.Role {
		case domain.RoleUser:
			blocks = append(blocks,
				userLabelStyle.Render("You"),
				userMsgStyle.Render(msg.Content),
				"")
		case domain.RoleAssistant:
			body := msg.Content
			if body == "" && conv.Generating() {
				body = m.Spinner.View() + " consulting the ephemeris..."
			} else if m.Renderer != nil {
				if rendered, err := m.Renderer.Render(body); err == nil {
					body = strings.TrimRight(rendered, "\n")
				}
			}
			blocks = append(blocks,
				companionLabelStyle.Render("Selene"),
				body,
				"")
		}
	}

	for _, ins := range insights {
		blocks = append(blocks, insightStyle.Render("✦ "+ins.Message), "")
	}

	if len(blocks) == 0 {
		blocks = append(blocks, helpStyle.Render("The sky is quiet. Ask about your chart to begin."))
	}

	m.Viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, blocks...))
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	if inputWidth > maxChatWidth {
		inputWidth = maxChatWidth
	}
	inputBox := inputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("SELENE"),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)

	return lipgloss.JoinVertical(lipgloss.Left, chatArea, m.renderStatusBar())
}

func (m *Model) renderStatusBar() string {
	parts := []string{m.renderStatus()}

	if mood := m.Client.Conversation().Mood(); mood != domain.MoodIdle {
		parts = append(parts, statusStyle.Render(string(mood)))
	}
	if action := m.Client.Dispatcher().CurrentAction(); action != "" {
		parts = append(parts, actionStyle.Render(action))
	}
	if m.Page != "" {
		parts = append(parts, statusStyle.Render("page: "+m.Page))
	}
	if m.Err != nil {
		parts = append(parts, errorStyle.Render(m.Err.Error()))
	}
	parts = append(parts, helpStyle.Render("enter send • ctrl+l clear • ctrl+r reconnect • ctrl+c quit"))

	return " " + strings.Join(parts, "  ·  ")
}

func (m *Model) renderStatus() string {
	status := m.Client.Status()
	switch status {
	case companion.StatusConnected:
		return statusConnectedStyle.Render("● connected")
	case companion.StatusConnecting:
		return statusStyle.Render(m.Spinner.View() + " connecting")
	case companion.StatusNoAPIKey:
		return statusWarnStyle.Render("◌ no api key")
	case companion.StatusError:
		return errorStyle.Render("● error")
	default:
		return statusStyle.Render(fmt.Sprintf("○ %s", status))
	}
}
