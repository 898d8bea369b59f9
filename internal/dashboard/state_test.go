package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcin-skalski/nighthub/internal/github"
	"github.com/marcin-skalski/nighthub/internal/refresh"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFetcher struct {
	mu    sync.Mutex
	runs  map[string][]github.Run
	errs  map[string]error
	block map[string]bool
	calls []string
}

func (f *fakeFetcher) ListWorkflowRuns(ctx context.Context, owner, name string) ([]github.Run, error) {
	full := owner + "/" + name
	f.mu.Lock()
	f.calls = append(f.calls, full)
	block := f.block[full]
	err := f.errs[full]
	runs := f.runs[full]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingOpener struct {
	urls []string
	err  error
}

func (o *recordingOpener) Open(url string) error {
	o.urls = append(o.urls, url)
	return o.err
}

type recordingClipboard struct {
	texts []string
}

func (c *recordingClipboard) WriteAll(text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRepo(name string) github.Repository {
	return github.Repository{
		Owner:    "o",
		Name:     name,
		FullName: "o/" + name,
		HTMLURL:  "https://github.com/o/" + name,
	}
}

func testRuns(repo string, n int, updated time.Time) []github.Run {
	runs := make([]github.Run, 0, n)
	for i := 0; i < n; i++ {
		at := updated.Add(-time.Duration(i) * time.Minute)
		runs = append(runs, github.Run{
			ID:         int64(i + 1),
			Name:       "CI",
			Status:     github.StatusCompleted,
			Conclusion: github.ConclusionSuccess,
			CreatedAt:  at,
			UpdatedAt:  at,
			HTMLURL:    fmt.Sprintf("https://github.com/o/%s/actions/runs/%d", repo, i+1),
		})
	}
	return runs
}

type harness struct {
	state   *State
	clock   *fakeClock
	fetcher *fakeFetcher
	opener  *recordingOpener
	clip    *recordingClipboard
}

func newHarness(t *testing.T, repos []github.Repository, overrides map[string]time.Duration, opts ...refresh.OrchestratorOption) *harness {
	t.Helper()
	return buildHarness(repos, overrides, opts...)
}

func buildHarness(repos []github.Repository, overrides map[string]time.Duration, opts ...refresh.OrchestratorOption) *harness {
	h := &harness{
		clock:   &fakeClock{now: epoch},
		fetcher: &fakeFetcher{runs: map[string][]github.Run{}, errs: map[string]error{}, block: map[string]bool{}},
		opener:  &recordingOpener{},
		clip:    &recordingClipboard{},
	}
	orch := refresh.NewOrchestrator(h.fetcher, h.clock, discardLogger(), opts...)
	h.state = New(repos, overrides, orch, h.clock, discardLogger(), WithOpener(h.opener), WithClipboard(h.clip))
	return h
}

func TestRefreshPartialFailure(t *testing.T) {
	h := newHarness(t, []github.Repository{testRepo("good"), testRepo("bad")}, nil)
	h.fetcher.runs["o/good"] = testRuns("good", 2, epoch.Add(-time.Hour))
	h.fetcher.errs["o/bad"] = errors.New("502 bad gateway")

	out := h.state.Refresh(context.Background(), false)
	if out.Succeeded() != 1 || out.Failed() != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", out.Succeeded(), out.Failed())
	}
	if got := len(h.state.Runs("o/good")); got != 2 {
		t.Fatalf("good runs = %d, want 2", got)
	}
	if last, ok := h.state.LastRefresh("o/good"); !ok || !last.Equal(epoch) {
		t.Fatalf("good ledger = %v, %v; want %v", last, ok, epoch)
	}
	if got := h.state.Runs("o/bad"); len(got) != 0 {
		t.Fatalf("bad runs = %v, want none", got)
	}
	if _, ok := h.state.LastRefresh("o/bad"); ok {
		t.Fatalf("failed repo should not get a ledger entry")
	}
	if h.state.IsRefreshing() {
		t.Fatalf("IsRefreshing stuck true")
	}
	if got := h.state.Notice(); got != "1 succeeded, 1 failed" {
		t.Fatalf("Notice = %q", got)
	}
	if got := h.state.SecondsUntilNextRefresh(); got != 0 {
		t.Fatalf("failed repo should stay due, SecondsUntilNextRefresh = %d", got)
	}
}

func TestRefreshFailureKeepsPreviousRuns(t *testing.T) {
	h := newHarness(t, []github.Repository{testRepo("r")}, nil)
	h.fetcher.runs["o/r"] = testRuns("r", 3, epoch.Add(-time.Hour))
	h.state.Refresh(context.Background(), true)

	h.clock.Advance(10 * time.Second)
	h.fetcher.errs["o/r"] = errors.New("rate limited")
	h.state.Refresh(context.Background(), true)

	if got := len(h.state.Runs("o/r")); got != 3 {
		t.Fatalf("runs after failed refresh = %d, want previous 3", got)
	}
	if last, _ := h.state.LastRefresh("o/r"); !last.Equal(epoch) {
		t.Fatalf("ledger moved on failure: %v", last)
	}
}

func TestRefreshOnlyDueRepositories(t *testing.T) {
	h := newHarness(t, []github.Repository{testRepo("hot"), testRepo("cold")}, map[string]time.Duration{"o/cold": 300 * time.Second})
	h.fetcher.runs["o/hot"] = testRuns("hot", 1, epoch.Add(-time.Hour))
	h.fetcher.runs["o/cold"] = testRuns("cold", 1, epoch.Add(-time.Hour))

	h.state.Refresh(context.Background(), false)
	if got := h.fetcher.callCount(); got != 2 {
		t.Fatalf("initial calls = %d, want 2", got)
	}

	if got := h.state.UntilNextRefresh(); got != 5*time.Second {
		t.Fatalf("UntilNextRefresh = %s, want 5s", got)
	}
	if out := h.state.Refresh(context.Background(), false); !out.Empty() {
		t.Fatalf("nothing due yet, got %+v", out)
	}
	if got := h.fetcher.callCount(); got != 2 {
		t.Fatalf("calls after idle refresh = %d, want 2", got)
	}

	h.clock.Advance(5 * time.Second)
	out := h.state.Refresh(context.Background(), false)
	if len(out.Results) != 1 || out.Results[0].Repo.FullName != "o/hot" {
		t.Fatalf("expected only o/hot to refresh, got %+v", out.Results)
	}

	h.state.Refresh(context.Background(), true)
	if got := h.fetcher.callCount(); got != 5 {
		t.Fatalf("calls after forced refresh = %d, want 5", got)
	}
}

func TestRefreshEmptyDueSetDoesNotFlipIndicator(t *testing.T) {
	runner := &recordingRunner{}
	s := New(nil, nil, runner, &fakeClock{now: epoch}, discardLogger())
	out := s.Refresh(context.Background(), true)
	if !out.Empty() || runner.calls != 0 || s.IsRefreshing() {
		t.Fatalf("empty repo list should do no work: out=%+v calls=%d", out, runner.calls)
	}
	if got := s.SecondsUntilNextRefresh(); got != 5 {
		t.Fatalf("SecondsUntilNextRefresh with no repos = %d, want 5", got)
	}
}

type recordingRunner struct {
	calls      int
	refreshing func() bool
	sawFlag    bool
}

func (r *recordingRunner) Refresh(_ context.Context, repos []github.Repository) refresh.Outcome {
	r.calls++
	if r.refreshing != nil {
		r.sawFlag = r.refreshing()
	}
	return refresh.Outcome{StartedAt: epoch}
}

func TestIsRefreshingDuringBatch(t *testing.T) {
	runner := &recordingRunner{}
	s := New([]github.Repository{testRepo("r")}, nil, runner, &fakeClock{now: epoch}, discardLogger())
	runner.refreshing = s.IsRefreshing

	s.Refresh(context.Background(), false)
	if !runner.sawFlag {
		t.Fatalf("IsRefreshing should be true while the batch runs")
	}
	if s.IsRefreshing() {
		t.Fatalf("IsRefreshing should be false after the batch")
	}
}

func TestRefreshTimeoutClearsIndicator(t *testing.T) {
	h := newHarness(t, []github.Repository{testRepo("fast"), testRepo("stuck")}, nil, refresh.WithBatchTimeout(30*time.Millisecond))
	h.fetcher.runs["o/fast"] = testRuns("fast", 1, epoch)
	h.fetcher.block["o/stuck"] = true

	out := h.state.Refresh(context.Background(), true)
	if !errors.Is(out.Err, refresh.ErrBatchTimeout) {
		t.Fatalf("Err = %v, want ErrBatchTimeout", out.Err)
	}
	if h.state.IsRefreshing() {
		t.Fatalf("IsRefreshing stuck true after timeout")
	}
	if len(h.state.Runs("o/fast")) != 1 {
		t.Fatalf("completed fetch should still be applied")
	}
	if _, ok := h.state.LastRefresh("o/stuck"); ok {
		t.Fatalf("unfinished repo should remain due")
	}
	if !strings.Contains(h.state.Notice(), "timed out") {
		t.Fatalf("Notice = %q", h.state.Notice())
	}
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, []github.Repository{testRepo("a"), testRepo("b")}, map[string]time.Duration{"o/b": 30 * time.Second})
	h.fetcher.runs["o/a"] = testRuns("a", 2, epoch.Add(-12*time.Hour))
	h.fetcher.runs["o/b"] = []github.Run{{ID: 9, Status: github.StatusCompleted, Conclusion: github.ConclusionFailure, CreatedAt: epoch, UpdatedAt: epoch}}
	h.state.Refresh(context.Background(), true)
	h.clock.Advance(10 * time.Second)

	snap := h.state.Snapshot()
	if len(snap.Repos) != 2 {
		t.Fatalf("repos = %d", len(snap.Repos))
	}
	if snap.Repos[0].Interval != refresh.ModerateInterval || snap.Repos[1].Interval != 30*time.Second {
		t.Fatalf("intervals = %s, %s", snap.Repos[0].Interval, snap.Repos[1].Interval)
	}
	if snap.Repos[0].Health != HealthHealthy || snap.Repos[1].Health != HealthError {
		t.Fatalf("health = %s, %s", snap.Repos[0].Health, snap.Repos[1].Health)
	}
	if snap.UntilNext != 20*time.Second {
		t.Fatalf("UntilNext = %s, want 20s", snap.UntilNext)
	}
	if snap.Selection != (Selection{Repo: -1, Run: -1}) || snap.Popup != PopupNone {
		t.Fatalf("unexpected selection %+v popup %v", snap.Selection, snap.Popup)
	}

	snap.Repos[0].Runs[0].Name = "mutated"
	if h.state.Runs("o/a")[0].Name == "mutated" {
		t.Fatalf("snapshot shares run storage with state")
	}
}

func TestHealthOf(t *testing.T) {
	tests := []struct {
		name string
		runs []github.Run
		want Health
	}{
		{name: "no runs", want: HealthUnknown},
		{name: "success", runs: []github.Run{{Conclusion: github.ConclusionSuccess}}, want: HealthHealthy},
		{name: "failure", runs: []github.Run{{Conclusion: github.ConclusionFailure}, {Conclusion: github.ConclusionSuccess}}, want: HealthError},
		{name: "cancelled", runs: []github.Run{{Conclusion: github.ConclusionCancelled}}, want: HealthWarning},
		{name: "in progress", runs: []github.Run{{Status: github.StatusInProgress}}, want: HealthUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthOf(tt.runs); got != tt.want {
				t.Fatalf("HealthOf = %s, want %s", got, tt.want)
			}
		})
	}
}
