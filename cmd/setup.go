package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/profile"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure listing defaults and billing details (re-run anytime to edit)",
	// Bypass the normal PersistentPreRunE so setup works before a profile exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, true)
	},
}

// runSetup runs the interactive setup wizard on the command's streams.
func runSetup(cmd *cobra.Command, explicit bool) error {
	out := cmd.OutOrStdout()

	// Load existing profile as defaults if present.
	var existing *profile.Profile
	if profile.Exists() {
		if p, err := profile.Load(); err == nil {
			existing = p
		}
	}

	prof, err := profile.RunSetup(cmd.InOrStdin(), out, existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := profile.Save(prof); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Fprintln(out, "  ✓ Profile saved.")

	if !explicit {
		fmt.Fprintln(out, "  Setup complete. Run 'bazaar login' or 'bazaar signup' to get started.")
		fmt.Fprintln(out)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
