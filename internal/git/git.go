package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
)

var (
	ErrNoRemote          = errors.New("no origin or upstream remote")
	ErrUnsupportedRemote = errors.New("remote is not a GitHub repository")
)

// remotes are tried in order.
var remotes = []string{"origin", "upstream"}

type Client struct {
	logger *slog.Logger
	run    func(ctx context.Context, dir string, name string, args ...string) (string, error)
}

func NewClient(logger *slog.Logger) *Client {
	c := &Client{logger: logger}
	c.run = c.exec
	return c
}

// DetectRepository returns the GitHub owner and name of the repository checked out in dir.
func (c *Client) DetectRepository(ctx context.Context, dir string) (string, string, error) {
	for _, remote := range remotes {
		out, err := c.run(ctx, dir, "git", "remote", "get-url", remote)
		if err != nil {
			c.logger.Debug("remote not found", "remote", remote, "dir", dir, "error", err)
			continue
		}
		owner, name, err := ParseRemoteURL(strings.TrimSpace(out))
		if err != nil {
			return "", "", fmt.Errorf("remote %s: %w", remote, err)
		}
		c.logger.Info("detected repository", "remote", remote, "repo", owner+"/"+name)
		return owner, name, nil
	}
	return "", "", ErrNoRemote
}

// ParseRemoteURL extracts owner and name from a GitHub HTTPS or SSH remote URL.
func ParseRemoteURL(remote string) (owner, name string, err error) {
	var path string
	switch {
	case strings.HasPrefix(remote, "git@github.com:"):
		path = strings.TrimPrefix(remote, "git@github.com:")
	case strings.Contains(remote, "://"):
		u, perr := url.Parse(remote)
		if perr != nil || u.Hostname() != "github.com" {
			return "", "", fmt.Errorf("%w: %s", ErrUnsupportedRemote, remote)
		}
		path = u.Path
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedRemote, remote)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	owner, name, ok := strings.Cut(path, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedRemote, remote)
	}
	return owner, name, nil
}

func (c *Client) exec(ctx context.Context, dir string, name string, args ...string) (string, error) {
	c.logger.Debug("exec", "cmd", name+" "+strings.Join(args, " "), "dir", dir)
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}
