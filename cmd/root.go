package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/config"
	"github.com/bazarteer/bazaar/internal/logging"
	"github.com/bazarteer/bazaar/internal/metrics"
	"github.com/bazarteer/bazaar/internal/profile"
	"github.com/bazarteer/bazaar/internal/session"
)

var (
	// cfg holds the merged configuration, populated in PersistentPreRunE.
	cfg config.Config

	// activeProfile holds the loaded user profile, nil when none exists.
	activeProfile *profile.Profile

	logger   *zap.Logger
	meter    *metrics.Metrics
	sessions *session.Manager
	client   *api.Client
)

var rootCmd = &cobra.Command{
	Use:           "bazaar",
	Short:         "Browse, sell and buy on the bazaar marketplace from your terminal",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to bazaar! Looks like this is your first time.")
			if err := runSetup(cmd, false); err != nil {
				return err
			}
		}
		return bootstrap()
	},
}

// bootstrap loads the profile and config and builds the shared services.
func bootstrap() error {
	activeProfile = nil
	if profile.Exists() {
		p, err := profile.Load()
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
		activeProfile = p
	}

	paths, err := config.DefaultPaths()
	if err != nil {
		return fmt.Errorf("resolving config paths: %w", err)
	}
	cfg, err = config.Load(paths)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err = logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	meter = metrics.New()

	store, err := session.NewStore()
	if err != nil {
		return err
	}
	sessions = session.NewManager(store, logger)
	if err := sessions.Rehydrate(); err != nil {
		// A corrupt record means logged out; the next login overwrites it.
		logger.Warn("ignoring unreadable session", zap.Error(err))
	}

	client, err = api.New(api.Options{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.RequestTimeout,
		MaxRetries:  cfg.MaxRetries,
		Credentials: sessions,
		Logger:      logger,
		Metrics:     meter,
	})
	return err
}

// shutdown flushes the log and writes the metrics textfile, then drops both
// so a later run starts clean.
func shutdown() error {
	defer func() { logger, meter = nil, nil }()
	if logger != nil {
		_ = logger.Sync()
	}
	if err := meter.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// run executes the root command and flushes logs and metrics whether or not
// the command succeeded.
func run() error {
	err := rootCmd.Execute()
	if serr := shutdown(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile, or the defaults when none
// has been saved.
func GetProfile() *profile.Profile {
	if activeProfile == nil {
		d := profile.Defaults()
		return &d
	}
	return activeProfile
}

// requireLogin fails fast when no session is active.
func requireLogin() (session.Session, error) {
	s, ok := sessions.Current()
	if !ok || !s.Valid() {
		return session.Session{}, fmt.Errorf("%w: run 'bazaar login' first", session.ErrNoSession)
	}
	return s, nil
}
