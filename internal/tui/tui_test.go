package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/github"
	"github.com/marcin-skalski/nighthub/internal/refresh"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeFetcher map[string][]github.Run

func (f fakeFetcher) ListWorkflowRuns(_ context.Context, owner, name string) ([]github.Run, error) {
	return f[owner+"/"+name], nil
}

type recordingRefresher struct {
	requests []bool
}

func (r *recordingRefresher) RequestRefresh(force bool) {
	r.requests = append(r.requests, force)
}

type fakeLogs struct {
	content string
	err     error
}

func (f fakeLogs) RunLog(context.Context, string, string, int64) (string, error) {
	return f.content, f.err
}

type nopOpener struct{}

func (nopOpener) Open(string) error { return nil }

type nopClipboard struct{}

func (nopClipboard) WriteAll(string) error { return nil }

func newTestModel(t *testing.T, logs fakeLogs) (Model, *dashboard.State, *recordingRefresher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := fixedClock{now: epoch}
	fetcher := fakeFetcher{
		"acme/api": {
			{ID: 11, Name: "CI", Status: github.StatusCompleted, Conclusion: github.ConclusionFailure, Branch: "main", CommitSHA: "0123456789abcdef", Actor: "octocat", CreatedAt: epoch.Add(-3 * time.Hour), UpdatedAt: epoch.Add(-3 * time.Hour), HTMLURL: "https://github.com/acme/api/actions/runs/11"},
			{ID: 10, Name: "Release", Status: github.StatusInProgress, Branch: "v1", CreatedAt: epoch.Add(-4 * time.Hour), UpdatedAt: epoch.Add(-4 * time.Hour)},
		},
	}
	repos := []github.Repository{
		{Owner: "acme", Name: "api", FullName: "acme/api", HTMLURL: "https://github.com/acme/api"},
		{Owner: "acme", Name: "web", FullName: "acme/web", HTMLURL: "https://github.com/acme/web"},
	}
	orch := refresh.NewOrchestrator(fetcher, clock, logger)
	state := dashboard.New(repos, map[string]time.Duration{"acme/web": 90 * time.Second}, orch, clock, logger,
		dashboard.WithOpener(nopOpener{}), dashboard.WithClipboard(nopClipboard{}))
	state.Refresh(context.Background(), true)

	refresher := &recordingRefresher{}
	return NewModel(state, refresher, logs, time.Second), state, refresher
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestKeysDriveNavigation(t *testing.T) {
	m, state, _ := newTestModel(t, fakeLogs{})

	m, _ = send(t, m, keyPress("j"))
	if got := state.Selection(); got != (dashboard.Selection{Repo: 0, Run: -1}) {
		t.Fatalf("after j: %+v", got)
	}
	m, _ = send(t, m, keyPress("l"), keyPress("l"))
	if got := state.Selection(); got != (dashboard.Selection{Repo: 0, Run: 1}) {
		t.Fatalf("after l l: %+v", got)
	}
	m, _ = send(t, m, keyPress("h"))
	if got := state.Selection(); got != (dashboard.Selection{Repo: 0, Run: 0}) {
		t.Fatalf("after h: %+v", got)
	}
	m, _ = send(t, m, keyPress("enter"))
	if m.snapshot.Popup != dashboard.PopupContextMenu {
		t.Fatalf("enter should open the menu")
	}
	m, _ = send(t, m, keyPress("esc"))
	if m.snapshot.Popup != dashboard.PopupNone {
		t.Fatalf("esc should close the menu")
	}
}

func TestRefreshKeys(t *testing.T) {
	m, _, refresher := newTestModel(t, fakeLogs{})
	send(t, m, keyPress("r"), keyPress("R"))
	if len(refresher.requests) != 2 || !refresher.requests[0] || refresher.requests[1] {
		t.Fatalf("requests = %v, want [true false]", refresher.requests)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, fakeLogs{})
	_, cmd := send(t, m, keyPress("q"))
	if cmd == nil {
		t.Fatalf("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q should quit")
	}
}

func TestViewLogsLoadsContent(t *testing.T) {
	var content strings.Builder
	for i := range maxLogLines + 10 {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	m, _, _ := newTestModel(t, fakeLogs{content: content.String()})

	m, _ = send(t, m, keyPress("l"), keyPress("enter"))
	m, cmd := send(t, m, keyPress("enter"))
	if m.snapshot.Popup != dashboard.PopupLogs {
		t.Fatalf("popup = %v, want logs", m.snapshot.Popup)
	}
	if cmd == nil || !m.logLoading || m.logRunID != 11 {
		t.Fatalf("expected a log fetch for run 11, loading=%v run=%d", m.logLoading, m.logRunID)
	}

	m, _ = send(t, m, cmd())
	if m.logLoading {
		t.Fatalf("still loading after logs arrived")
	}
	view := m.View()
	if !strings.Contains(view, "acme/api › CI #11") || !strings.Contains(view, "0123456") {
		t.Fatalf("logs view missing run metadata:\n%s", view)
	}

	m, _ = send(t, m, keyPress("j"))
	if m.snapshot.Popup != dashboard.PopupLogs {
		t.Fatalf("scrolling should not close the popup")
	}
	m, _ = send(t, m, keyPress("esc"))
	if m.snapshot.Popup != dashboard.PopupNone {
		t.Fatalf("esc should close the logs popup")
	}
}

func TestViewLogsIgnoresStaleResult(t *testing.T) {
	m, _, _ := newTestModel(t, fakeLogs{})
	m.logRunID = 11
	m.logLoading = true
	m, _ = send(t, m, logsMsg{runID: 99, content: "other"})
	if !m.logLoading {
		t.Fatalf("a result for another run should be ignored")
	}
	m, _ = send(t, m, logsMsg{runID: 11, err: errors.New("HTTP 410")})
	if m.logLoading || !strings.Contains(m.viewport.View(), "HTTP 410") {
		t.Fatalf("error not shown: %q", m.viewport.View())
	}
}

func TestDashboardView(t *testing.T) {
	m, _, _ := newTestModel(t, fakeLogs{})
	m, _ = send(t, m, keyPress("enter"))
	view := m.View()

	for _, want := range []string{
		"nighthub │ 2 repos",
		"Refresh in 1m 0s",
		"acme/api (every 1m)",
		"acme/web (every 90s)",
		"(no workflow runs)",
		"CI",
		"3h ago",
		"View Logs",
		"Close Menu",
		"2 succeeded, 0 failed",
	} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestLastLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "a\nb\nc\n", n: 5, want: "a\nb\nc"},
		{in: "a\nb\nc", n: 2, want: "b\nc"},
		{in: "", n: 2, want: ""},
	}
	for _, tt := range tests {
		if got := lastLines(tt.in, tt.n); got != tt.want {
			t.Fatalf("lastLines(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCountdownText(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "Refresh in 0s"},
		{1500 * time.Millisecond, "Refresh in 2s"},
		{59 * time.Second, "Refresh in 59s"},
		{60 * time.Second, "Refresh in 1m 0s"},
		{7200 * time.Second, "Refresh in 120m 0s"},
	}
	for _, tt := range tests {
		if got := countdownText(tt.d); got != tt.want {
			t.Fatalf("countdownText(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "Just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := relativeTime(epoch, epoch.Add(-tt.ago)); got != tt.want {
			t.Fatalf("relativeTime(%s ago) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
