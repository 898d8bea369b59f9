package refresh

import (
	"time"

	"github.com/marcin-skalski/nighthub/internal/github"
)

// DefaultWait is reported by UntilNext when there is nothing to schedule.
const DefaultWait = 5 * time.Second

type IntervalPolicy interface {
	IntervalAt(fullName string, now time.Time) time.Duration
}

// Scheduler is stateless: the same ledger, policy and instant always give the same answer.
type Scheduler struct {
	Policy IntervalPolicy
}

// Due returns the repositories that should be refreshed at now, in list order.
func (s Scheduler) Due(force bool, repos []github.Repository, ledger Ledger, now time.Time) []github.Repository {
	var due []github.Repository
	for _, repo := range repos {
		if force || s.isDue(repo.FullName, ledger, now) {
			due = append(due, repo)
		}
	}
	return due
}

// UntilNext returns how long until the next repository becomes due, zero if one already is.
func (s Scheduler) UntilNext(repos []github.Repository, ledger Ledger, now time.Time) time.Duration {
	if len(repos) == 0 {
		return DefaultWait
	}

	next := time.Duration(-1)
	for _, repo := range repos {
		last, ok := ledger[repo.FullName]
		if !ok {
			return 0
		}
		remaining := s.Policy.IntervalAt(repo.FullName, now) - now.Sub(last)
		if remaining <= 0 {
			return 0
		}
		if next < 0 || remaining < next {
			next = remaining
		}
	}
	return next
}

func (s Scheduler) isDue(fullName string, ledger Ledger, now time.Time) bool {
	last, ok := ledger[fullName]
	if !ok {
		return true
	}
	return now.Sub(last) >= s.Policy.IntervalAt(fullName, now)
}
