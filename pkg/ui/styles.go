package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorSecondary = lipgloss.Color("#10B981")
	ColorDanger    = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#374151")
	colorBlock     = lipgloss.Color("#60A5FA")
)

// Layout
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	HelpStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)
	MutedValue = lipgloss.NewStyle().Foreground(ColorMuted)
	LiveStyle  = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
)

// Activity feed lines
var (
	blockLine = lipgloss.NewStyle().Foreground(colorBlock)
	buyLine   = lipgloss.NewStyle().Foreground(ColorSecondary)
	sellLine  = lipgloss.NewStyle().Foreground(ColorDanger)
	otherLine = lipgloss.NewStyle().Foreground(ColorWarning)
)

// feedStyle colours an activity line by what it reports.
func feedStyle(line string) lipgloss.Style {
	switch {
	case strings.Contains(line, "Block #"):
		return blockLine
	case strings.Contains(line, "BUY "):
		return buyLine
	case strings.Contains(line, "SELL "):
		return sellLine
	default:
		return otherLine
	}
}
