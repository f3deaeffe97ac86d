package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor     = lipgloss.Color("7")
	accentColor  = lipgloss.Color("12")
	successColor = lipgloss.Color("10")
	warningColor = lipgloss.Color("11")
	dangerColor  = lipgloss.Color("9")

	// Title style
	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	// Dimmed detail text (device IDs, timestamps, help lines)
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Field labels in rendered output
	LabelStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	// The user's side of a conversation
	QueryStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Currently highlighted selector row
	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	// Error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)
