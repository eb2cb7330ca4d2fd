package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#6C6C6C")
	colorError   = lipgloss.Color("#E06C75")
	colorOK      = lipgloss.Color("#98C379")

	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(colorMuted)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorPrimary)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Width(28)
	activeColumnStyle = columnStyle.BorderForeground(colorPrimary)
	columnTitleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)

	cardStyle         = lipgloss.NewStyle().Padding(0, 1)
	selectedCardStyle = cardStyle.Foreground(lipgloss.Color("#FFFFFF")).Background(colorPrimary)
	busyCardStyle     = cardStyle.Foreground(colorMuted).Italic(true)
	removedStyle      = lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true)

	quickViewStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)

	helpStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(colorOK)
)
