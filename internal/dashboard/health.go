package dashboard

import "github.com/marcin-skalski/nighthub/internal/github"

type Health int

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthWarning
	HealthError
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthWarning:
		return "warning"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}

// HealthOf judges a repository by its newest run.
func HealthOf(runs []github.Run) Health {
	if len(runs) == 0 {
		return HealthUnknown
	}
	switch runs[0].Conclusion {
	case github.ConclusionSuccess:
		return HealthHealthy
	case github.ConclusionFailure:
		return HealthError
	case github.ConclusionNone:
		return HealthUnknown
	default:
		return HealthWarning
	}
}
