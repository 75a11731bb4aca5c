package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/profile"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show who is signed in and which server is used",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, ok := sessions.Current()
		if !ok || !s.Valid() {
			cmd.Println("not logged in")
		} else {
			id, err := api.UserIDFromCredential(s.Credential)
			if err != nil {
				id = api.OwnProfileID
			}
			cmd.Printf("User: %s (id %s)\n", s.Username, id)
		}
		cmd.Printf("API: %s\n", cfg.APIBaseURL)
		if profile.Exists() {
			p := GetProfile()
			cmd.Printf("Defaults: %s, %s\n", p.Location, p.Condition)
		} else {
			cmd.Println("Profile: not set up (run 'bazaar setup')")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
