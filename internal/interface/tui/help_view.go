package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "f1":
		m.mode = chatView
		return m, nil
	}

	return m, nil
}

func (m Model) viewHelp() string {
	help := `
Support Chat - Help
═══════════════════

CHAT
────
  Enter        Send your question
  PgUp/PgDn    Scroll the conversation
  Ctrl+N       Start a new chat
  Ctrl+S       Browse chat sessions
  Ctrl+E       Export the chat as PDF
  Ctrl+T       Export the chat as text
  Ctrl+Y       Copy the chat to the clipboard
  Ctrl+V       Voice input (not supported in the terminal)
  Ctrl+C       Quit

SESSIONS
────────
  ↑/↓, j/k     Navigate sessions
  Enter        Open session
  n            New chat
  r            Rename session
  d            Delete session
  /            Filter (title, text, after:, before:, date:, is:local, is:synced)
  s            Sync with the server
  esc          Back to the chat

PAGES
─────
  F1           This help
  F2           Documentation
  F3           FAQ
  F4           Support

Press esc to return to the chat
`

	return helpStyle.Render(help)
}
