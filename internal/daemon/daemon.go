package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/nighthub/internal/config"
	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/github"
	"github.com/marcin-skalski/nighthub/internal/refresh"
)

const DefaultStatusInterval = 30 * time.Second

// Dashboard is the part of *dashboard.State the driver needs.
type Dashboard interface {
	Refresh(ctx context.Context, force bool) refresh.Outcome
	SecondsUntilNextRefresh() int
	Snapshot() dashboard.Snapshot
}

// Daemon drives refreshes: it is the only caller of Dashboard.Refresh, so run cache
// and ledger have a single writer.
type Daemon struct {
	state          Dashboard
	logger         *slog.Logger
	checkInterval  time.Duration
	statusInterval time.Duration

	mu      sync.Mutex
	pending bool
	force   bool
	wake    chan struct{}
}

type Option func(*Daemon)

func WithStatusInterval(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.statusInterval = d
		}
	}
}

func New(state Dashboard, logger *slog.Logger, checkInterval time.Duration, opts ...Option) *Daemon {
	d := &Daemon{
		state:          state,
		logger:         logger,
		checkInterval:  checkInterval,
		statusInterval: DefaultStatusInterval,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestRefresh queues a refresh for the driver loop. Requests made while one is
// pending are merged; a forced request wins over a non-forced one.
func (d *Daemon) RequestRefresh(force bool) {
	d.mu.Lock()
	d.pending = true
	d.force = d.force || force
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Daemon) takeRequest() (force, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	force, ok = d.force, d.pending
	d.pending, d.force = false, false
	return force, ok
}

func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon started", "check_interval", d.checkInterval, "repos", len(d.state.Snapshot().Repos))

	// Initial refresh
	d.refresh(ctx, true)

	ticker := time.NewTicker(d.checkInterval)
	defer ticker.Stop()

	statusTicker := time.NewTicker(d.statusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			return nil
		case <-d.wake:
			if force, ok := d.takeRequest(); ok {
				d.refresh(ctx, force)
			}
		case <-ticker.C:
			if d.state.SecondsUntilNextRefresh() == 0 {
				d.refresh(ctx, false)
			}
		case <-statusTicker.C:
			d.logStatus()
		}
	}
}

func (d *Daemon) refresh(ctx context.Context, force bool) {
	out := d.state.Refresh(ctx, force)
	if out.Empty() {
		return
	}
	if out.Err != nil && ctx.Err() != nil {
		return
	}
	d.logger.Info("refresh finished", "summary", out.Summary(), "force", force)
}

func (d *Daemon) logStatus() {
	snap := d.state.Snapshot()
	counts := make(map[dashboard.Health]int)
	for _, r := range snap.Repos {
		counts[r.Health]++
	}
	d.logger.Info("status",
		"next_refresh_s", int(snap.UntilNext.Round(time.Second)/time.Second),
		"refreshing", snap.Refreshing,
		"healthy", counts[dashboard.HealthHealthy],
		"warning", counts[dashboard.HealthWarning],
		"error", counts[dashboard.HealthError],
		"unknown", counts[dashboard.HealthUnknown])
	for _, r := range snap.Repos {
		if r.Health == dashboard.HealthError {
			d.logger.Info("→ failing", "repo", r.Repo.FullName, "run", r.Runs[0].Name, "url", r.Runs[0].HTMLURL)
		}
	}
}

type RepositoryFetcher interface {
	GetRepository(ctx context.Context, owner, name string) (github.Repository, error)
}

// ResolveRepositories fetches the metadata of every configured repository in order
// and fails on the first one that cannot be resolved.
func ResolveRepositories(ctx context.Context, fetcher RepositoryFetcher, repos []config.RepoConfig, logger *slog.Logger) ([]github.Repository, error) {
	out := make([]github.Repository, 0, len(repos))
	for _, r := range repos {
		repo, err := fetcher.GetRepository(ctx, r.Owner, r.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve repository %s: %w", r.FullName(), err)
		}
		if repo.FullName != r.FullName() {
			logger.Info("repository resolved under another name", "configured", r.FullName(), "repo", repo.FullName)
		}
		logger.Debug("resolved repository", "repo", repo.FullName, "default_branch", repo.DefaultBranch)
		out = append(out, repo)
	}
	return out, nil
}

// Overrides keys the fixed refresh intervals of cfg by the names GitHub resolved them
// to. repos is the result of ResolveRepositories for cfg, in the same order.
func Overrides(cfg []config.RepoConfig, repos []github.Repository) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for i, r := range cfg {
		if i >= len(repos) {
			break
		}
		if r.RefreshInterval > 0 {
			out[repos[i].FullName] = r.RefreshInterval
		}
	}
	return out
}
