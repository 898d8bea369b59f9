// Package refresh decides when each repository is polled and runs the polls.
package refresh

import (
	"time"

	"github.com/marcin-skalski/nighthub/internal/github"
)

// Activity tiers for repositories without a fixed interval.
const (
	VeryActiveInterval = 5 * time.Second
	ModerateInterval   = 60 * time.Second
	InactiveInterval   = 7200 * time.Second

	veryActiveHours = 2
	moderateHours   = 24
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RunCache holds the latest runs per repository full name, newest first.
type RunCache map[string][]github.Run

// LatestActivity reports when the newest cached run of a repository was last updated.
func (c RunCache) LatestActivity(fullName string) (time.Time, bool) {
	runs := c[fullName]
	if len(runs) == 0 {
		return time.Time{}, false
	}
	return runs[0].UpdatedAt, true
}

// Ledger maps a repository full name to the start of its last successful refresh.
type Ledger map[string]time.Time

type ActivitySource interface {
	LatestActivity(fullName string) (time.Time, bool)
}

// Policy computes how often a repository should be refreshed. Intervals are
// recomputed on every call so they always follow the cached runs.
type Policy struct {
	overrides map[string]time.Duration
	activity  ActivitySource
	clock     Clock
}

func NewPolicy(overrides map[string]time.Duration, activity ActivitySource, clock Clock) *Policy {
	return &Policy{overrides: overrides, activity: activity, clock: clock}
}

func (p *Policy) IntervalFor(fullName string) time.Duration {
	return p.IntervalAt(fullName, p.clock.Now())
}

// IntervalAt is IntervalFor evaluated at a given instant.
func (p *Policy) IntervalAt(fullName string, now time.Time) time.Duration {
	if d, ok := p.overrides[fullName]; ok && d > 0 {
		return d
	}

	if p.activity == nil {
		return InactiveInterval
	}
	updated, ok := p.activity.LatestActivity(fullName)
	if !ok {
		return InactiveInterval
	}

	// Whole hours, so exactly 2h lands in the moderate tier and 24h in inactive.
	hours := int64(now.Sub(updated) / time.Hour)
	switch {
	case hours < veryActiveHours:
		return VeryActiveInterval
	case hours < moderateHours:
		return ModerateInterval
	default:
		return InactiveInterval
	}
}
