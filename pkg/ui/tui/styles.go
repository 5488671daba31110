package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#00D7FF")
	green  = lipgloss.Color("#39FF14")
	red    = lipgloss.Color("#FF4040")
	orange = lipgloss.Color("#FF8700")
	dim    = lipgloss.Color("#808080")

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	phaseDoneStyle = lipgloss.NewStyle().
			Foreground(dim)

	phaseActiveStyle = lipgloss.NewStyle().
				Foreground(accent).
				Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Width(10)

	okStyle = lipgloss.NewStyle().
		Foreground(green)

	failStyle = lipgloss.NewStyle().
			Foreground(red)

	warnStyle = lipgloss.NewStyle().
			Foreground(orange).
			Bold(true)

	eventStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1)
)
