package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/github"
)

var (
	// Health colors
	colorHealthy = lipgloss.Color("46")  // green
	colorWarning = lipgloss.Color("220") // yellow
	colorError   = lipgloss.Color("196") // red
	colorUnknown = lipgloss.Color("240") // gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	timerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	runStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			MarginTop(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func healthIcon(h dashboard.Health) string {
	switch h {
	case dashboard.HealthHealthy:
		return "●"
	case dashboard.HealthWarning:
		return "◐"
	case dashboard.HealthError:
		return "✖"
	default:
		return "○"
	}
}

func healthColor(h dashboard.Health) lipgloss.Color {
	switch h {
	case dashboard.HealthHealthy:
		return colorHealthy
	case dashboard.HealthWarning:
		return colorWarning
	case dashboard.HealthError:
		return colorError
	default:
		return colorUnknown
	}
}

func statusIcon(s github.Status) string {
	switch s {
	case github.StatusQueued:
		return "⏳"
	case github.StatusInProgress:
		return "🔄"
	case github.StatusCompleted:
		return "🏁"
	default:
		return "❓"
	}
}

func conclusionIcon(c github.Conclusion) string {
	switch c {
	case github.ConclusionSuccess:
		return "✅"
	case github.ConclusionFailure:
		return "❌"
	case github.ConclusionCancelled:
		return "🚫"
	case github.ConclusionSkipped:
		return "⏭️"
	case github.ConclusionTimedOut:
		return "⌛"
	default:
		return "  "
	}
}

func conclusionColor(c github.Conclusion) lipgloss.Color {
	switch c {
	case github.ConclusionSuccess:
		return colorHealthy
	case github.ConclusionFailure, github.ConclusionTimedOut:
		return colorError
	case github.ConclusionNone:
		return lipgloss.Color("33") // blue, still running
	default:
		return colorWarning
	}
}
