package refresh

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/marcin-skalski/nighthub/internal/github"
)

const (
	DefaultMaxConcurrent = 5
	DefaultBatchTimeout  = 60 * time.Second
	DefaultRunsPerRepo   = 5
)

var ErrBatchTimeout = errors.New("refresh batch timed out")

type Fetcher interface {
	ListWorkflowRuns(ctx context.Context, owner, name string) ([]github.Run, error)
}

type Result struct {
	Repo github.Repository
	Runs []github.Run
	Err  error
}

type Outcome struct {
	StartedAt time.Time
	// Results holds every fetch that settled before the batch ended, in request order.
	Results []Result
	// Abandoned lists repositories still in flight when the deadline expired.
	Abandoned []github.Repository
	Err       error
}

func (o Outcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func (o Outcome) Failed() int {
	return len(o.Results) - o.Succeeded()
}

// Empty reports whether the batch had no work at all.
func (o Outcome) Empty() bool {
	return len(o.Results) == 0 && len(o.Abandoned) == 0 && o.Err == nil
}

func (o Outcome) Summary() string {
	s := fmt.Sprintf("%d succeeded, %d failed", o.Succeeded(), o.Failed())
	if errors.Is(o.Err, ErrBatchTimeout) {
		s += fmt.Sprintf(", timed out with %d pending", len(o.Abandoned))
	} else if o.Err != nil {
		s += ", cancelled"
	}
	return s
}

type Orchestrator struct {
	fetcher       Fetcher
	clock         Clock
	logger        *slog.Logger
	maxConcurrent int
	timeout       time.Duration
	runsPerRepo   int
}

type OrchestratorOption func(*Orchestrator)

func WithMaxConcurrent(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

func WithBatchTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithRunsPerRepo(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.runsPerRepo = n
		}
	}
}

func NewOrchestrator(fetcher Fetcher, clock Clock, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fetcher:       fetcher,
		clock:         clock,
		logger:        logger,
		maxConcurrent: DefaultMaxConcurrent,
		timeout:       DefaultBatchTimeout,
		runsPerRepo:   DefaultRunsPerRepo,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Refresh fetches runs for every repository concurrently, at most maxConcurrent at a
// time, and waits for all of them up to the batch timeout. A failing repository never
// affects the others. Fetches still running at the deadline are dropped from the outcome.
func (o *Orchestrator) Refresh(ctx context.Context, repos []github.Repository) Outcome {
	out := Outcome{StartedAt: o.clock.Now()}
	if len(repos) == 0 {
		return out
	}

	batchCtx, cancel := context.WithTimeoutCause(ctx, o.timeout, ErrBatchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(o.maxConcurrent))
	results := make([]*Result, len(repos))
	var (
		mu      sync.Mutex
		settled bool
		g       errgroup.Group
	)

	for i, repo := range repos {
		g.Go(func() error {
			if err := sem.Acquire(batchCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			runs, err := o.fetcher.ListWorkflowRuns(batchCtx, repo.Owner, repo.Name)
			if err != nil && batchCtx.Err() != nil {
				// Cut off by the deadline, not a failure of its own.
				return nil
			}
			if err == nil {
				runs = o.normalize(runs)
			}

			mu.Lock()
			defer mu.Unlock()
			if settled {
				return nil
			}
			results[i] = &Result{Repo: repo, Runs: runs, Err: err}
			if err != nil {
				o.logger.Error("refresh repo failed", "repo", repo.FullName, "err", err)
			} else {
				o.logger.Debug("refreshed repo", "repo", repo.FullName, "runs", len(runs))
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
	}

	mu.Lock()
	settled = true
	for i, r := range results {
		if r == nil {
			out.Abandoned = append(out.Abandoned, repos[i])
			continue
		}
		out.Results = append(out.Results, *r)
	}
	mu.Unlock()

	// Only a deadline or cancellation leaves repositories without a result.
	if len(out.Abandoned) > 0 {
		if errors.Is(context.Cause(batchCtx), ErrBatchTimeout) {
			out.Err = fmt.Errorf("%w after %s", ErrBatchTimeout, o.timeout)
		} else {
			out.Err = fmt.Errorf("refresh cancelled: %w", context.Cause(batchCtx))
		}
	}

	if out.Err != nil || out.Failed() > 0 {
		o.logger.Warn("refresh completed", "successful", out.Succeeded(), "failed", out.Failed(), "pending", len(out.Abandoned), "err", out.Err)
	} else {
		o.logger.Info("refresh completed", "successful", out.Succeeded())
	}
	return out
}

// normalize sorts newest first and keeps at most runsPerRepo runs.
func (o *Orchestrator) normalize(runs []github.Run) []github.Run {
	sorted := slices.Clone(runs)
	slices.SortStableFunc(sorted, func(a, b github.Run) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	if len(sorted) > o.runsPerRepo {
		sorted = sorted[:o.runsPerRepo]
	}
	return sorted
}
