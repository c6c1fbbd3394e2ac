package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateContent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = chatView
		return m, nil
	case "g":
		m.pageView.GotoTop()
		return m, nil
	case "G":
		m.pageView.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.pageView, cmd = m.pageView.Update(msg)
	return m, cmd
}

func (m Model) viewContent() string {
	header := titleStyle.Render(m.page.Title())
	footer := helpStyle.Render(fmt.Sprintf("%3.f%% • j/k scroll • g/G top/bottom • esc back", m.pageView.ScrollPercent()*100))
	return header + "\n" + m.pageView.View() + "\n" + footer
}
