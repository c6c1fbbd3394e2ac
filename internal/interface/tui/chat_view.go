package tui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/playback"
	"github.com/neilberkman/supportchat/internal/core/render"
)

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.send()

	case "ctrl+n":
		m.svc.NewChat()
		m.err = nil
		m.status = "New chat"
		m.refreshTranscript()
		return m, nil

	case "ctrl+s":
		m.mode = sessionsView
		m.refreshList()
		return m, nil

	case "ctrl+e":
		return m, exportTranscript(m.svc, m.opts.ExportDir, "pdf")

	case "ctrl+t":
		return m, exportTranscript(m.svc, m.opts.ExportDir, "txt")

	case "ctrl+y":
		return m, copyTranscript(m.svc)

	case "ctrl+v":
		m.status = "Voice input is not supported in the terminal"
		return m, nil

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send records the typed question and posts it in the background. Blank
// input is dropped without a round trip. While an answer is pending the
// input is held.
func (m Model) send() (tea.Model, tea.Cmd) {
	if m.waiting > 0 {
		// one turn at a time; the input is kept for the next try
		m.status = "Waiting for the previous answer..."
		return m, nil
	}
	turn, err := m.svc.BeginTurn(m.input.Value())
	m.input.Reset()
	if errors.Is(err, chat.ErrEmptyMessage) {
		return m, nil
	}
	if err != nil {
		m.err = err
		return m, nil
	}

	m.err = nil
	m.waiting++
	m.refreshTranscript()
	return m, tea.Batch(postTurn(m.svc, turn, m.opts.RequestTimeout), m.spinner.Tick)
}

// refreshTranscript redraws the visible messages and keeps the newest one
// in view
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(renderTranscript(m.svc.Registry().Visible(), m.viewport.Width, m.svc.Player().State() == playback.Streaming))
	m.viewport.GotoBottom()
}

func renderTranscript(msgs []models.Message, width int, streaming bool) string {
	if len(msgs) == 0 {
		return metaStyle.Render("Ask a question to get started. F1 shows the keys.")
	}
	if width <= 0 {
		width = 80
	}

	blocks := make([]string, 0, len(msgs))
	for i, msg := range msgs {
		r := render.Message(msg)

		label := botStyle.Render(render.RoleLabel(r.Role))
		if r.Role == models.RoleUser {
			label = userStyle.Render(render.RoleLabel(r.Role))
		}
		body := r.Terminal(func(s string) string { return linkStyle.Render(s) })
		if streaming && i == len(msgs)-1 && r.Role == models.RoleBot {
			body += "▌"
		}

		align := lipgloss.Left
		if r.Align == models.AlignRight {
			align = lipgloss.Right
		}
		blocks = append(blocks, lipgloss.NewStyle().
			Width(width).
			Align(align).
			Render(label+"\n"+body))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) viewChat() string {
	title := models.DefaultTitle
	if active, ok := m.svc.Registry().Active(); ok {
		title = active.Title
	}
	who := "guest"
	if ident := m.svc.Identity(); !ident.IsGuest() {
		who = ident.Email
	}
	header := titleStyle.Render(title) + metaStyle.Render("  ("+who+")")

	status := statusStyle.Render(m.status)
	if m.err != nil {
		status = errorStyle.Render(describeError(m.err))
	}
	if m.waiting > 0 {
		status = m.spinner.View() + " " + metaStyle.Render("Waiting for the assistant...")
	}

	help := helpStyle.Render("enter send • ctrl+n new • ctrl+s sessions • ctrl+e pdf • ctrl+t txt • ctrl+y copy • F1 help • ctrl+c quit")

	return header + "\n" + m.viewport.View() + "\n" + m.input.View() + "\n" + status + "\n" + help
}
