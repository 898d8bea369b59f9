package github

import "time"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is empty unless the run's status is completed.
type Conclusion string

const (
	ConclusionNone      Conclusion = ""
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionTimedOut  Conclusion = "timed_out"
)

type Repository struct {
	ID            int64
	Owner         string
	Name          string
	FullName      string
	HTMLURL       string
	DefaultBranch string
}

type Run struct {
	ID         int64
	Name       string
	Status     Status
	Conclusion Conclusion
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Branch     string
	CommitSHA  string
	Actor      string
	HTMLURL    string
	LogsURL    string
}

// ParseStatus maps the API status string. Anything unrecognised is treated as queued.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusInProgress:
		return StatusInProgress
	case StatusCompleted:
		return StatusCompleted
	default:
		return StatusQueued
	}
}

// ParseConclusion maps the API conclusion for a run with the given status.
func ParseConclusion(status Status, s string) Conclusion {
	if status != StatusCompleted || s == "" {
		return ConclusionNone
	}
	switch c := Conclusion(s); c {
	case ConclusionSuccess, ConclusionFailure, ConclusionCancelled, ConclusionSkipped, ConclusionTimedOut:
		return c
	default:
		return ConclusionSkipped
	}
}

type apiUser struct {
	Login string `json:"login"`
}

type apiRepository struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	FullName      string  `json:"full_name"`
	HTMLURL       string  `json:"html_url"`
	DefaultBranch string  `json:"default_branch"`
	Owner         apiUser `json:"owner"`
}

type apiWorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion *string   `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	HeadBranch *string   `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	HTMLURL    string    `json:"html_url"`
	LogsURL    *string   `json:"logs_url"`
	Actor      apiUser   `json:"actor"`
}

type apiWorkflowRunsResponse struct {
	TotalCount   int              `json:"total_count"`
	WorkflowRuns []apiWorkflowRun `json:"workflow_runs"`
}

func (r apiRepository) toRepository() Repository {
	return Repository{
		ID:            r.ID,
		Owner:         r.Owner.Login,
		Name:          r.Name,
		FullName:      r.FullName,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: r.DefaultBranch,
	}
}

func (r apiWorkflowRun) toRun() Run {
	status := ParseStatus(r.Status)
	run := Run{
		ID:        r.ID,
		Name:      r.Name,
		Status:    status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		CommitSHA: r.HeadSHA,
		Actor:     r.Actor.Login,
		HTMLURL:   r.HTMLURL,
	}
	if r.Conclusion != nil {
		run.Conclusion = ParseConclusion(status, *r.Conclusion)
	}
	if r.HeadBranch != nil {
		run.Branch = *r.HeadBranch
	}
	if r.LogsURL != nil {
		run.LogsURL = *r.LogsURL
	}
	return run
}
