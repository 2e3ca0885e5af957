package report

import "github.com/charmbracelet/lipgloss"

// Color palette for status output.
var (
	successColor = lipgloss.Color("#8BC34A") // green
	failureColor = lipgloss.Color("#e53935") // red
	warningColor = lipgloss.Color("#FFC107") // yellow
	infoColor    = lipgloss.Color("#2196F3") // blue
	mutedColor   = lipgloss.Color("#808080")
)

var (
	// SuccessStyle marks verified modules and runs.
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)

	// FailureStyle marks exhausted modules and failed runs.
	FailureStyle = lipgloss.NewStyle().Foreground(failureColor).Bold(true)

	// WarningStyle marks retries and skipped modules.
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)

	// InfoStyle marks progress lines.
	InfoStyle = lipgloss.NewStyle().Foreground(infoColor)

	// MutedStyle marks secondary detail (durations, attempt counts).
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	// BannerStyle frames per-module section headers.
	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	// PanelStyle frames diagnostic excerpts.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(failureColor).
			PaddingLeft(1)
)

// StatusStyle picks the style for a module or run state string.
func StatusStyle(state string) lipgloss.Style {
	switch state {
	case "verified", "passed":
		return SuccessStyle
	case "exhausted", "partially_failed", "compile_error", "logic_error":
		return FailureStyle
	case "aborted", "timeout", "tool_unavailable":
		return WarningStyle
	default:
		return InfoStyle
	}
}
