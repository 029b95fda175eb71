package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // headings
	colorAccent  = lipgloss.Color("#FFD700") // near capacity
	colorSuccess = lipgloss.Color("#00E676") // within capacity
	colorDanger  = lipgloss.Color("#FF5252") // critical or overallocated
	colorMuted   = lipgloss.Color("#636363") // de-emphasized
	colorBlue    = lipgloss.Color("#5B8DEF") // tasks with slack
)

// Status icons.
const (
	iconOK       = "✓"
	iconCritical = "✗"
	iconWarning  = "⚠"
	iconInfo     = "·"
)

var (
	styleHeading  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleMuted    = lipgloss.NewStyle().Foreground(colorMuted)
	styleOK       = lipgloss.NewStyle().Foreground(colorSuccess)
	styleNear     = lipgloss.NewStyle().Foreground(colorAccent)
	styleOver     = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleCritical = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleSlack    = lipgloss.NewStyle().Foreground(colorBlue)
)
