package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	token   string
	perPage int
	logger  *slog.Logger

	// exec runs the gh binary; swapped out in tests.
	exec func(ctx context.Context, env []string, args ...string) ([]byte, error)
}

type Option func(*Client)

// WithToken makes gh authenticate with the given token instead of its own login.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithPerPage limits how many runs are requested per repository.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		perPage: 30,
		logger:  logger,
		exec:    execGH,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListWorkflowRuns returns the most recent workflow runs of a repository, newest first.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, name string) ([]Run, error) {
	route := fmt.Sprintf("/repos/%s/%s/actions/runs?per_page=%d", owner, name, c.perPage)
	out, err := c.gh(ctx, "api", route)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs %s/%s: %w", owner, name, err)
	}

	var resp apiWorkflowRunsResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parse workflow runs %s/%s: %w", owner, name, err)
	}

	runs := make([]Run, 0, len(resp.WorkflowRuns))
	for _, r := range resp.WorkflowRuns {
		runs = append(runs, r.toRun())
	}
	return runs, nil
}

func (c *Client) GetRepository(ctx context.Context, owner, name string) (Repository, error) {
	out, err := c.gh(ctx, "api", fmt.Sprintf("/repos/%s/%s", owner, name))
	if err != nil {
		return Repository{}, fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}

	var repo apiRepository
	if err := json.Unmarshal(out, &repo); err != nil {
		return Repository{}, fmt.Errorf("parse repository %s/%s: %w", owner, name, err)
	}
	return repo.toRepository(), nil
}

// RunLog returns the combined log output of a workflow run.
func (c *Client) RunLog(ctx context.Context, owner, name string, runID int64) (string, error) {
	out, err := c.gh(ctx, "run", "view", strconv.FormatInt(runID, 10), "--log", "-R", owner+"/"+name)
	if err != nil {
		return "", fmt.Errorf("get log of run %d: %w", runID, err)
	}
	return string(out), nil
}

func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("gh", "args", strings.Join(args, " "))
	var env []string
	if c.token != "" {
		env = append(os.Environ(), "GH_TOKEN="+c.token)
	}
	return c.exec(ctx, env, args...)
}

func execGH(ctx context.Context, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Env = env
	out, err := cmd.Output()
	if err != nil {
		return nil, ghError(err)
	}
	return out, nil
}

// ghError attaches gh's stderr to a failed invocation and maps HTTP 404 to ErrNotFound.
func ghError(err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}
	stderr := strings.TrimSpace(string(exitErr.Stderr))
	if strings.Contains(stderr, "HTTP 404") {
		return fmt.Errorf("%w: %s", ErrNotFound, stderr)
	}
	return fmt.Errorf("%w: %s", err, stderr)
}
