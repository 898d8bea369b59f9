package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
)

type Model struct {
	state     StateProvider
	refresher RefreshRequester
	logs      LogFetcher
	interval  time.Duration
	snapshot  dashboard.Snapshot

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	logRunID   int64
	logLoading bool
	width      int
	height     int
}

func NewModel(state StateProvider, refresher RefreshRequester, logs LogFetcher, interval time.Duration) Model {
	return Model{
		state:     state,
		refresher: refresher,
		logs:      logs,
		interval:  interval,
		snapshot:  state.Snapshot(),
		keys:      defaultKeys,
		help:      help.New(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		viewport:  viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.interval), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(5, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.snapshot = m.state.Snapshot()
		return m, tickCmd(m.interval)

	case logsMsg:
		if msg.runID != m.logRunID {
			return m, nil
		}
		m.logLoading = false
		if msg.err != nil {
			m.viewport.SetContent(errorStyle.Render("Failed to load logs: " + msg.err.Error()))
		} else {
			m.viewport.SetContent(lastLines(msg.content, maxLogLines))
			m.viewport.GotoBottom()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		m.refresher.RequestRefresh(true)
		return m, nil
	case key.Matches(msg, m.keys.RefreshDue):
		m.refresher.RequestRefresh(false)
		return m, nil
	}

	// Inside the logs popup only esc reaches the state machine; other keys scroll.
	if m.snapshot.Popup == dashboard.PopupLogs && !key.Matches(msg, m.keys.Back) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	in, ok := m.keys.input(msg)
	if !ok {
		return m, nil
	}
	before := m.snapshot.Popup
	m.state.Handle(in)
	m.snapshot = m.state.Snapshot()

	if before != dashboard.PopupLogs && m.snapshot.Popup == dashboard.PopupLogs {
		return m, m.openLogs()
	}
	return m, nil
}

// openLogs starts loading the selected run's logs into the viewport.
func (m *Model) openLogs() tea.Cmd {
	repo, run, ok := m.state.SelectedRun()
	if !ok {
		return nil
	}
	m.logRunID = run.ID
	m.logLoading = true
	m.viewport.SetContent("Loading logs...")
	m.viewport.GotoTop()

	fetcher := m.logs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), logFetchTimeout)
		defer cancel()
		content, err := fetcher.RunLog(ctx, repo.Owner, repo.Name, run.ID)
		return logsMsg{runID: run.ID, content: content, err: err}
	}
}

func (m Model) View() string {
	switch m.snapshot.Popup {
	case dashboard.PopupLogs:
		return m.renderLogs()
	default:
		return m.renderDashboard()
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// lastLines keeps the final n lines of s.
func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
