package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF5F5F")
	colorGreen   = lipgloss.Color("#5FD75F")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorCyan    = lipgloss.Color("#5FD7FF")
	colorGray    = lipgloss.Color("#767676")
	colorDimGray = lipgloss.Color("#444444")
	colorWhite   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	liveDotStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	pausedDotStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	endedDotStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	clockStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	clockLowStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	panelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorCyan)

	interimStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	questionStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	answerStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	stoppedStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	confirmStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)
