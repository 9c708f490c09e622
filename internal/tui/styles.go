package tui

import "github.com/charmbracelet/lipgloss"

// palette
var (
	accent  = lipgloss.Color("99")  // violet
	hot     = lipgloss.Color("205") // magenta
	fg      = lipgloss.Color("252")
	dim     = lipgloss.Color("243")
	faint   = lipgloss.Color("238")
	barBg   = lipgloss.Color("235")
	failure = lipgloss.Color("203")
)

// List rows.
var (
	SelectedItem = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(accent)
	NormalItem   = lipgloss.NewStyle().Foreground(fg)
	MetaItem     = lipgloss.NewStyle().Foreground(dim)
)

// Bottom bar.
var (
	StatusBar     = lipgloss.NewStyle().Foreground(fg).Background(barBg).Padding(0, 1)
	StatusBarKey  = lipgloss.NewStyle().Bold(true).Foreground(hot)
	StatusBarText = lipgloss.NewStyle().Foreground(dim)
)

var (
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(failure).Padding(0, 1)
	HelpStyle    = lipgloss.NewStyle().Foreground(dim).Padding(1, 2)
	SpinnerStyle = lipgloss.NewStyle().Foreground(hot)
)

// Panels drawn over the list: the article detail view and the event
// overlay toggled with D.
var (
	DetailPanel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 2)
	DetailTitle = lipgloss.NewStyle().Bold(true).Foreground(hot)

	DebugPanel       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(faint).Padding(1, 2)
	DebugHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accent)
)
