package tui

import (
	"context"
	"time"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/github"
)

// StateProvider is implemented by *dashboard.State.
type StateProvider interface {
	Snapshot() dashboard.Snapshot
	Handle(in dashboard.Input)
	SelectedRun() (github.Repository, github.Run, bool)
}

// RefreshRequester is implemented by *daemon.Daemon.
type RefreshRequester interface {
	RequestRefresh(force bool)
}

// LogFetcher is implemented by *github.Client.
type LogFetcher interface {
	RunLog(ctx context.Context, owner, name string, runID int64) (string, error)
}

const (
	maxLogLines     = 2000
	logFetchTimeout = 30 * time.Second
)

type tickMsg time.Time

type logsMsg struct {
	runID   int64
	content string
	err     error
}
