package tui

import "github.com/charmbracelet/lipgloss"

// Global styles used across views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	// Session list styles
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("170")).
				Bold(true)

	activeItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Bold(true).
			Foreground(lipgloss.Color("120")) // Light green - contrasts better with purple selection

	// Chat view styles
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("cyan")).
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")) // Lighter gray that works better in dark terminals

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// Help view styles
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
