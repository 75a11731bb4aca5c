package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/feed"
	"github.com/bazarteer/bazaar/internal/render"
)

var profileCmd = &cobra.Command{
	Use:   "profile [USER_ID]",
	Short: "Show a user's profile and listings (your own by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireLogin(); err != nil {
			return err
		}
		// The server resolves OwnProfileID from the bearer credential.
		userID := api.OwnProfileID
		if len(args) == 1 {
			userID = args[0]
		}

		user, err := client.UserByID(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
		listings, err := client.ListingsByOwner(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("loading listings: %w", err)
		}
		user.Posts = len(listings)
		items := make([]feed.Item, len(listings))
		for i, l := range listings {
			items[i] = feed.FromListing(l, i)
		}
		return printPage(cmd, &render.Page{Title: "Profile", Profile: &user, Items: items})
	},
}

func init() {
	profileCmd.Flags().StringVar(&feedFormat, "format", "", "Output format: markdown or json")
	rootCmd.AddCommand(profileCmd)
}
