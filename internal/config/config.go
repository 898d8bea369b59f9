package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Override bounds for a repository's fixed refresh interval.
const (
	MinRefreshInterval = 5 * time.Second
	MaxRefreshInterval = 7200 * time.Second
)

var ErrNoRepos = errors.New("no repositories configured")

type Config struct {
	Token      string           `yaml:"token"`
	Repos      []RepoConfig     `yaml:"repos"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Log        LogConfig        `yaml:"log"`
	TUI        TUIConfig        `yaml:"tui"`
}

type RepoConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
	// RawInterval is a fixed refresh interval ("30s"); empty means activity tiers.
	RawInterval     string        `yaml:"refresh_interval"`
	RefreshInterval time.Duration `yaml:"-"`
}

func (r RepoConfig) FullName() string {
	return r.Owner + "/" + r.Name
}

type MonitoringConfig struct {
	RunsPerRepo           int           `yaml:"runs_per_repo"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	RawBatchTimeout       string        `yaml:"batch_timeout"`
	BatchTimeout          time.Duration `yaml:"-"`
	RawCheckInterval      string        `yaml:"check_interval"`
	CheckInterval         time.Duration `yaml:"-"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxFiles   int    `yaml:"max_files"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TUIConfig struct {
	RawTickInterval string        `yaml:"tick_interval"`
	TickInterval    time.Duration `yaml:"-"`
}

// RepoDetector finds the repository of a working directory, used when none is configured.
type RepoDetector func(ctx context.Context) (owner, name string, err error)

type loadOptions struct {
	detector RepoDetector
	envFile  string
}

type Option func(*loadOptions)

func WithRepoDetector(d RepoDetector) Option {
	return func(o *loadOptions) {
		o.detector = d
	}
}

// WithEnvFile sets the dotenv file read before the environment; "" disables it.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// Load reads the YAML file at path (a missing file is fine), applies the environment,
// fills defaults and validates the result.
func Load(ctx context.Context, path string, opts ...Option) (*Config, error) {
	lo := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.envFile != "" {
		if err := godotenv.Load(lo.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", lo.envFile, err)
		}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if len(cfg.Repos) == 0 && lo.detector != nil {
		owner, name, err := lo.detector(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: detect repository: %w", ErrNoRepos, err)
		}
		cfg.Repos = []RepoConfig{{Owner: owner, Name: name}}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		c.Token = tok
	} else if tok := os.Getenv("GH_TOKEN"); tok != "" {
		c.Token = tok
	}
	if lvl := os.Getenv("NIGHTHUB_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
	if raw, ok := os.LookupEnv("REPOS"); ok && strings.TrimSpace(raw) != "" {
		repos, err := ParseRepos(raw)
		if err != nil {
			return fmt.Errorf("parse REPOS: %w", err)
		}
		c.Repos = repos
	}
	return nil
}

// ParseRepos parses a comma separated list of owner/name[:seconds] entries.
func ParseRepos(raw string) ([]RepoConfig, error) {
	var repos []RepoConfig
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		slug, secs, hasInterval := strings.Cut(entry, ":")
		owner, name, ok := strings.Cut(slug, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("invalid repository %q (want owner/name[:seconds])", entry)
		}

		r := RepoConfig{Owner: strings.TrimSpace(owner), Name: strings.TrimSpace(name)}
		if hasInterval {
			n, err := strconv.Atoi(strings.TrimSpace(secs))
			if err != nil {
				return nil, fmt.Errorf("invalid refresh interval in %q: %w", entry, err)
			}
			r.RawInterval = strconv.Itoa(n) + "s"
		}
		repos = append(repos, r)
	}
	return repos, nil
}

func (c *Config) setDefaults() error {
	if c.Monitoring.RunsPerRepo == 0 {
		c.Monitoring.RunsPerRepo = 5
	}
	if c.Monitoring.MaxConcurrentRequests == 0 {
		c.Monitoring.MaxConcurrentRequests = 5
	}

	var err error
	if c.Monitoring.BatchTimeout, err = parseDuration("monitoring.batch_timeout", &c.Monitoring.RawBatchTimeout, "60s"); err != nil {
		return err
	}
	if c.Monitoring.CheckInterval, err = parseDuration("monitoring.check_interval", &c.Monitoring.RawCheckInterval, "1s"); err != nil {
		return err
	}
	if c.TUI.TickInterval, err = parseDuration("tui.tick_interval", &c.TUI.RawTickInterval, "250ms"); err != nil {
		return err
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = defaultLogFile()
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxFiles == 0 {
		c.Log.MaxFiles = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	for i := range c.Repos {
		r := &c.Repos[i]
		if r.RawInterval == "" {
			continue
		}
		d, err := parseInterval(r.RawInterval)
		if err != nil {
			return fmt.Errorf("repos[%d]: parse refresh_interval %q: %w", i, r.RawInterval, err)
		}
		r.RefreshInterval = d
	}
	return nil
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func parseDuration(key string, raw *string, def string) (time.Duration, error) {
	if *raw == "" {
		*raw = def
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, *raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, *raw)
	}
	return d, nil
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "nighthub", "nighthub.log")
}

func (c *Config) validate() error {
	if len(c.Repos) == 0 {
		return ErrNoRepos
	}
	if c.Token != "" {
		if err := validateToken(c.Token); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Repos))
	for i, r := range c.Repos {
		if r.Owner == "" {
			return fmt.Errorf("repos[%d]: owner required", i)
		}
		if r.Name == "" {
			return fmt.Errorf("repos[%d]: name required", i)
		}
		if seen[r.FullName()] {
			return fmt.Errorf("repos[%d]: duplicate repository %s", i, r.FullName())
		}
		seen[r.FullName()] = true
		if r.RawInterval != "" && (r.RefreshInterval < MinRefreshInterval || r.RefreshInterval > MaxRefreshInterval) {
			return fmt.Errorf("repos[%d]: refresh_interval %s out of range [%s, %s]", i, r.RefreshInterval, MinRefreshInterval, MaxRefreshInterval)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	if c.Monitoring.RunsPerRepo < 0 {
		return fmt.Errorf("monitoring.runs_per_repo must be positive, got %d", c.Monitoring.RunsPerRepo)
	}
	if c.Monitoring.MaxConcurrentRequests < 0 {
		return fmt.Errorf("monitoring.max_concurrent_requests must be positive, got %d", c.Monitoring.MaxConcurrentRequests)
	}
	return nil
}

func validateToken(tok string) error {
	if !strings.HasPrefix(tok, "ghp_") && !strings.HasPrefix(tok, "github_pat_") {
		return errors.New("token must start with ghp_ or github_pat_")
	}
	if len(tok) < 40 {
		return fmt.Errorf("token too short (%d chars, want at least 40)", len(tok))
	}
	return nil
}
