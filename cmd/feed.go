package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/feed"
	"github.com/bazarteer/bazaar/internal/render"
	"github.com/bazarteer/bazaar/internal/session"
	"github.com/bazarteer/bazaar/internal/tui"
)

var (
	feedPlain  bool
	feedFormat string
	feedPages  int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Browse recommended listings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireLogin(); err != nil {
			return err
		}
		f := feed.New(client, feed.Options{Window: cfg.PrefetchWindow, Logger: logger})

		plain := feedPlain || feedFormat != "" || !term.IsTerminal(os.Stdout.Fd())
		if !plain {
			err := tui.Run(cmd.Context(), f, sessions, logger)
			if errors.Is(err, session.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			}
			return err
		}

		if err := f.Load(cmd.Context()); err != nil {
			return err
		}
		for i := 1; i < feedPages; i++ {
			if _, err := f.FetchMore(cmd.Context()); err != nil {
				logger.Debug("stopping after partial feed", zap.Error(err))
				break
			}
		}
		return printPage(cmd, &render.Page{Title: "For you", Items: f.Items()})
	},
}

// printPage renders p in the requested format, falling back to the
// profile's default.
func printPage(cmd *cobra.Command, p *render.Page) error {
	format := feedFormat
	if format == "" {
		format = GetProfile().DefaultFormat
	}
	r, err := render.For(format)
	if err != nil {
		return err
	}
	data, err := r.Render(p)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func init() {
	feedCmd.Flags().BoolVar(&feedPlain, "plain", false, "Print listings instead of opening the browser")
	feedCmd.Flags().StringVar(&feedFormat, "format", "", "Output format: markdown or json (implies --plain)")
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, "Number of batches to fetch with --plain")
	rootCmd.AddCommand(feedCmd)
}
