package display

import "github.com/charmbracelet/lipgloss"

var (
	// Colors follow the dark-surface palette used across the CLI.
	humanColor  = lipgloss.Color("#10B981") // Green
	engineColor = lipgloss.Color("#A78BFA") // Purple
	mutedColor  = lipgloss.Color("#9CA3AF") // Gray
	errorColor  = lipgloss.Color("#F87171") // Red
	noticeColor = lipgloss.Color("#60A5FA") // Blue

	humanLabel  = lipgloss.NewStyle().Bold(true).Foreground(humanColor)
	engineLabel = lipgloss.NewStyle().Bold(true).Foreground(engineColor)
	mutedText   = lipgloss.NewStyle().Foreground(mutedColor)
	errorText   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	noticeText  = lipgloss.NewStyle().Foreground(noticeColor)
)
