package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/github"
)

const maxRunNameWidth = 40

func (m Model) renderDashboard() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("📦 Repositories"))
	b.WriteString("\n")
	b.WriteString(renderTree(snap))

	if snap.Popup == dashboard.PopupContextMenu {
		b.WriteString("\n")
		b.WriteString(renderMenu(snap.MenuIndex))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.snapshot
	var timer string
	if snap.Refreshing {
		timer = m.spinner.View() + " " + refreshingText(snap.InFlight)
	} else {
		timer = countdownText(snap.UntilNext)
	}
	header := fmt.Sprintf("nighthub │ %d repos │ ", len(snap.Repos))
	return headerStyle.Render(header) + timerStyle.Render(timer)
}

func (m Model) renderFooter() string {
	var b strings.Builder
	if m.snapshot.Notice != "" {
		b.WriteString(noticeStyle.Render(m.snapshot.Notice))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("Updated %s │ ", m.snapshot.Timestamp.Format("15:04:05"))))
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func renderTree(snap dashboard.Snapshot) string {
	if len(snap.Repos) == 0 {
		return emptyStyle.Render("  (no repositories configured)") + "\n"
	}

	var b strings.Builder
	for i, repo := range snap.Repos {
		isLast := i == len(snap.Repos)-1
		prefix := "├─"
		childPrefix := "│  "
		if isLast {
			prefix = "└─"
			childPrefix = "   "
		}

		repoLine := fmt.Sprintf("%s %s %s (every %s)",
			prefix, healthIcon(repo.Health), repo.Repo.FullName, formatInterval(repo.Interval))
		style := lipgloss.NewStyle().Bold(true).Foreground(healthColor(repo.Health))
		if snap.Selection.Repo == i && snap.Selection.Run < 0 {
			style = selectedStyle
		}
		b.WriteString(style.Render(repoLine))
		b.WriteString("\n")

		if len(repo.Runs) == 0 {
			b.WriteString(emptyStyle.Render(childPrefix + "  (no workflow runs)"))
			b.WriteString("\n")
			continue
		}

		for j, run := range repo.Runs {
			runPrefix := "├─"
			if j == len(repo.Runs)-1 {
				runPrefix = "└─"
			}
			line := childPrefix + runPrefix + " " + runLine(run, snap.Timestamp)

			style := runStyle.Foreground(conclusionColor(run.Conclusion))
			if snap.Selection.Repo == i && snap.Selection.Run == j {
				style = selectedStyle
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func runLine(run github.Run, now time.Time) string {
	name := run.Name
	if runewidth.StringWidth(name) > maxRunNameWidth {
		name = runewidth.Truncate(name, maxRunNameWidth, "...")
	}
	return fmt.Sprintf("%s %s %s %s %s",
		statusIcon(run.Status),
		conclusionIcon(run.Conclusion),
		runewidth.FillRight(name, maxRunNameWidth),
		dimStyle.Render(run.Branch),
		dimStyle.Render(relativeTime(now, run.UpdatedAt)))
}

func renderMenu(selected int) string {
	var b strings.Builder
	for i, action := range dashboard.MenuActions() {
		if i > 0 {
			b.WriteString("\n")
		}
		if i == selected {
			b.WriteString(selectedStyle.Render("> " + action.String()))
		} else {
			b.WriteString("  " + action.String())
		}
	}
	return popupStyle.Render(b.String())
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	repo, run, ok := m.state.SelectedRun()
	if ok {
		title := fmt.Sprintf("%s › %s #%d", repo.FullName, run.Name, run.ID)
		b.WriteString(sectionStyle.Render(title))
		b.WriteString("\n")
		meta := fmt.Sprintf("%s %s │ branch %s │ %s │ by %s │ %s",
			statusIcon(run.Status), conclusionIcon(run.Conclusion),
			run.Branch, shortSHA(run.CommitSHA), run.Actor, relativeTime(m.snapshot.Timestamp, run.UpdatedAt))
		b.WriteString(dimStyle.Render(meta))
		b.WriteString("\n")
	}

	body := m.viewport.View()
	if m.logLoading {
		body = m.spinner.View() + " " + body
	}
	b.WriteString(popupStyle.Render(body))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("%3.f%% │ ↑/↓ scroll │ esc close", m.viewport.ScrollPercent()*100)))
	return b.String()
}

func refreshingText(n int) string {
	if n == 1 {
		return "Refreshing 1 repo..."
	}
	return fmt.Sprintf("Refreshing %d repos...", n)
}

// countdownText rounds up so the timer only reads 0 when something is due.
func countdownText(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 60 {
		return fmt.Sprintf("Refresh in %ds", secs)
	}
	return fmt.Sprintf("Refresh in %dm %ds", secs/60, secs%60)
}

func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	default:
		return "Just now"
	}
}

func formatInterval(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
