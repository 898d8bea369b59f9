// Package dashboard holds the state shown by the UI: repositories, their cached
// runs, the refresh ledger and the selection/popup machine driven by user input.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/marcin-skalski/nighthub/internal/github"
	"github.com/marcin-skalski/nighthub/internal/refresh"
)

// BatchRunner runs one refresh batch; *refresh.Orchestrator implements it.
type BatchRunner interface {
	Refresh(ctx context.Context, repos []github.Repository) refresh.Outcome
}

type Opener interface {
	Open(url string) error
}

type ClipboardWriter interface {
	WriteAll(text string) error
}

type State struct {
	mu sync.RWMutex

	repos     []github.Repository
	overrides map[string]time.Duration
	runs      refresh.RunCache
	ledger    refresh.Ledger

	refreshing bool
	inFlight   int
	notice     string

	selection Selection
	popup     Popup
	menu      Menu

	runner    BatchRunner
	clock     refresh.Clock
	opener    Opener
	clipboard ClipboardWriter
	logger    *slog.Logger
}

type Option func(*State)

func WithOpener(o Opener) Option {
	return func(s *State) {
		s.opener = o
	}
}

func WithClipboard(c ClipboardWriter) Option {
	return func(s *State) {
		s.clipboard = c
	}
}

// New creates the state for a fixed repository list. overrides maps a full name to
// a fixed refresh interval; repositories without one use activity tiers.
func New(repos []github.Repository, overrides map[string]time.Duration, runner BatchRunner, clock refresh.Clock, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		repos:     slices.Clone(repos),
		overrides: overrides,
		runs:      make(refresh.RunCache),
		ledger:    make(refresh.Ledger),
		selection: noSelection,
		runner:    runner,
		clock:     clock,
		opener:    BrowserOpener{},
		clipboard: SystemClipboard{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs one batch over the due repositories (all of them when force is set)
// and merges the successful results. It returns an empty outcome when nothing is due
// or another batch is already running.
func (s *State) Refresh(ctx context.Context, force bool) refresh.Outcome {
	due, ok := s.beginRefresh(force)
	if !ok {
		return refresh.Outcome{}
	}
	s.logger.Info("refreshing repositories", "count", len(due), "force", force)

	out := s.runner.Refresh(ctx, due)
	s.applyOutcome(out)
	return out
}

func (s *State) beginRefresh(force bool) ([]github.Repository, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshing {
		s.logger.Debug("refresh already in progress")
		return nil, false
	}
	due := s.schedulerLocked().Due(force, s.repos, s.ledger, s.clock.Now())
	if len(due) == 0 {
		return nil, false
	}
	s.refreshing = true
	s.inFlight = len(due)
	return due, true
}

// applyOutcome is the only place the run cache and ledger are written. Each
// repository's run list is swapped whole.
func (s *State) applyOutcome(out refresh.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range out.Results {
		if r.Err != nil {
			continue
		}
		s.runs[r.Repo.FullName] = r.Runs
		s.ledger[r.Repo.FullName] = out.StartedAt
	}
	s.refreshing = false
	s.inFlight = 0
	s.notice = out.Summary()
}

func (s *State) schedulerLocked() refresh.Scheduler {
	return refresh.Scheduler{Policy: refresh.NewPolicy(s.overrides, s.runs, s.clock)}
}

func (s *State) IsRefreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing
}

// IntervalFor is the current refresh interval of a repository.
func (s *State) IntervalFor(fullName string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return refresh.NewPolicy(s.overrides, s.runs, s.clock).IntervalFor(fullName)
}

func (s *State) UntilNextRefresh() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedulerLocked().UntilNext(s.repos, s.ledger, s.clock.Now())
}

// SecondsUntilNextRefresh rounds up so a repository is only reported at 0 when it is due.
func (s *State) SecondsUntilNextRefresh() int {
	return int(math.Ceil(s.UntilNextRefresh().Seconds()))
}

func (s *State) Repositories() []github.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.repos)
}

func (s *State) Runs(fullName string) []github.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.runs[fullName])
}

func (s *State) LastRefresh(fullName string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.ledger[fullName]
	return t, ok
}

func (s *State) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

func (s *State) Popup() Popup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.popup
}

func (s *State) Menu() Menu {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.menu
}

func (s *State) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// SelectedRun returns the selected run and its repository, if the selection is valid.
func (s *State) SelectedRun() (github.Repository, github.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedRunLocked()
}

func (s *State) selectedRepoLocked() (github.Repository, bool) {
	i := s.selection.Repo
	if i < 0 || i >= len(s.repos) {
		return github.Repository{}, false
	}
	return s.repos[i], true
}

func (s *State) selectedRunLocked() (github.Repository, github.Run, bool) {
	repo, ok := s.selectedRepoLocked()
	if !ok {
		return github.Repository{}, github.Run{}, false
	}
	runs := s.runs[repo.FullName]
	j := s.selection.Run
	if j < 0 || j >= len(runs) {
		return repo, github.Run{}, false
	}
	return repo, runs[j], true
}

// selectedURLLocked prefers the selected run's page and falls back to the repository's.
func (s *State) selectedURLLocked() string {
	repo, run, ok := s.selectedRunLocked()
	if ok {
		return run.HTMLURL
	}
	return repo.HTMLURL
}

type RepoView struct {
	Repo        github.Repository
	Runs        []github.Run
	Health      Health
	Interval    time.Duration
	LastRefresh time.Time
}

// Snapshot is a consistent copy of everything the UI renders.
type Snapshot struct {
	Timestamp  time.Time
	Repos      []RepoView
	Selection  Selection
	Popup      Popup
	MenuIndex  int
	Refreshing bool
	InFlight   int
	UntilNext  time.Duration
	Notice     string
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	policy := refresh.NewPolicy(s.overrides, s.runs, s.clock)
	repos := make([]RepoView, 0, len(s.repos))
	for _, repo := range s.repos {
		runs := slices.Clone(s.runs[repo.FullName])
		repos = append(repos, RepoView{
			Repo:        repo,
			Runs:        runs,
			Health:      HealthOf(runs),
			Interval:    policy.IntervalAt(repo.FullName, now),
			LastRefresh: s.ledger[repo.FullName],
		})
	}

	return Snapshot{
		Timestamp:  now,
		Repos:      repos,
		Selection:  s.selection,
		Popup:      s.popup,
		MenuIndex:  s.menu.Index(),
		Refreshing: s.refreshing,
		InFlight:   s.inFlight,
		UntilNext:  s.schedulerLocked().UntilNext(s.repos, s.ledger, now),
		Notice:     s.notice,
	}
}
