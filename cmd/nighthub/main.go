package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/nighthub/internal/config"
	"github.com/marcin-skalski/nighthub/internal/daemon"
	"github.com/marcin-skalski/nighthub/internal/dashboard"
	"github.com/marcin-skalski/nighthub/internal/git"
	"github.com/marcin-skalski/nighthub/internal/github"
	"github.com/marcin-skalski/nighthub/internal/logging"
	"github.com/marcin-skalski/nighthub/internal/refresh"
	"github.com/marcin-skalski/nighthub/internal/tui"
)

type options struct {
	configPath string
	noTUI      bool
	logLevel   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "nighthub",
		Short: "Terminal dashboard for GitHub Actions workflow runs",
		Long: `nighthub polls the latest GitHub Actions workflow runs of a set of repositories
and shows their status. Busy repositories are polled often, quiet ones rarely.

Repositories come from the config file, the REPOS environment variable
(owner/name[:seconds], comma separated) or the git remote of the current directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "nighthub.yaml", "path to config file")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "disable TUI mode")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auto-detect TUI capability
	enableTUI := !opts.noTUI && os.Getenv("NIGHTHUB_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	// Logging is configured by the file being loaded.
	detector := func(ctx context.Context) (string, string, error) {
		return git.NewClient(slog.New(slog.DiscardHandler)).DetectRepository(ctx, ".")
	}

	cfg, err := config.Load(ctx, opts.configPath, config.WithRepoDetector(detector))
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.SetupLogger(cfg.Log, enableTUI)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logging.CloseFile() }()

	gh := github.NewClient(logger,
		github.WithToken(cfg.Token),
		github.WithPerPage(cfg.Monitoring.RunsPerRepo))

	repos, err := daemon.ResolveRepositories(ctx, gh, cfg.Repos, logger)
	if err != nil {
		return err
	}

	clock := refresh.SystemClock{}
	orch := refresh.NewOrchestrator(gh, clock, logger,
		refresh.WithMaxConcurrent(cfg.Monitoring.MaxConcurrentRequests),
		refresh.WithBatchTimeout(cfg.Monitoring.BatchTimeout),
		refresh.WithRunsPerRepo(cfg.Monitoring.RunsPerRepo))
	state := dashboard.New(repos, daemon.Overrides(cfg.Repos, repos), orch, clock, logger)
	d := daemon.New(state, logger, cfg.Monitoring.CheckInterval)

	if !enableTUI {
		// Headless mode
		logger.Info("nighthub starting (headless)", "config", opts.configPath, "repos", len(repos))
		return d.Run(ctx)
	}

	// TUI mode: run daemon in background, TUI in foreground
	daemonCtx, cancelDaemon := context.WithCancel(ctx)
	defer cancelDaemon()
	go func() {
		logger.Info("nighthub daemon starting in background", "config", opts.configPath, "repos", len(repos))
		if err := d.Run(daemonCtx); err != nil {
			logger.Error("daemon error", "err", err)
		}
	}()

	m := tui.NewModel(state, d, gh, cfg.TUI.TickInterval)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
