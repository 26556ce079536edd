package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/oactree/jobmon/internal/event"
)

var (
	textMutedColor     = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#696969"}
	textPrimaryColor   = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}
	statusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	statusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	statusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	statusRunningColor = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	borderColor        = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(textPrimaryColor)
	mutedStyle     = lipgloss.NewStyle().Foreground(textMutedColor)
	selectedStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(statusErrorColor).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(statusWarningColor)
	sectionStyle   = lipgloss.NewStyle().Foreground(textMutedColor).Bold(true)
	logBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true, false, false, false).
			BorderForeground(borderColor)
)

func jobStateStyle(st event.JobState) lipgloss.Style {
	switch st {
	case event.JobSucceeded:
		return lipgloss.NewStyle().Foreground(statusSuccessColor).Bold(true)
	case event.JobFailed, event.JobHalted:
		return lipgloss.NewStyle().Foreground(statusErrorColor).Bold(true)
	case event.JobRunning, event.JobStepping:
		return lipgloss.NewStyle().Foreground(statusRunningColor).Bold(true)
	case event.JobPaused:
		return lipgloss.NewStyle().Foreground(statusWarningColor).Bold(true)
	default:
		return mutedStyle
	}
}

func instructionStatusStyle(status string) lipgloss.Style {
	switch status {
	case event.StatusSuccess.String():
		return lipgloss.NewStyle().Foreground(statusSuccessColor)
	case event.StatusFailure.String():
		return lipgloss.NewStyle().Foreground(statusErrorColor)
	case event.StatusRunning.String():
		return lipgloss.NewStyle().Foreground(statusRunningColor)
	case event.StatusNotFinished.String():
		return lipgloss.NewStyle().Foreground(statusWarningColor)
	default:
		return mutedStyle
	}
}

func severityStyle(sev event.Severity) lipgloss.Style {
	switch {
	case sev <= event.SeverityError:
		return lipgloss.NewStyle().Foreground(statusErrorColor)
	case sev == event.SeverityWarning:
		return lipgloss.NewStyle().Foreground(statusWarningColor)
	default:
		return lipgloss.NewStyle().Foreground(textPrimaryColor)
	}
}
