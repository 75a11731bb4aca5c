package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/capture"
	"github.com/bazarteer/bazaar/internal/publish"
	"github.com/bazarteer/bazaar/internal/upload"
)

var (
	publishTitle       string
	publishPrice       string
	publishDescription string
	publishCondition   string
	publishLocation    string
	publishStock       int
	publishCapture     bool
)

var publishCmd = &cobra.Command{
	Use:   "publish [MEDIA...]",
	Short: "Upload media and post a new listing",
	Long: `Uploads the given photos or video and publishes a listing with them.
With --capture the shutter screen opens first instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireLogin(); err != nil {
			return err
		}
		prof := GetProfile()
		draft := publish.Draft{
			Title:       publishTitle,
			Description: publishDescription,
			Price:       publishPrice,
			Condition:   firstNonEmpty(publishCondition, prof.Condition),
			Location:    firstNonEmpty(publishLocation, prof.Location),
			Stock:       publishStock,
		}
		// Reject a bad draft before touching the camera or the network.
		if err := draft.Validate(); err != nil {
			return err
		}

		ctrl, err := newController()
		if err != nil {
			return err
		}
		var media capture.Media
		switch {
		case publishCapture:
			res, err := runCapture(cmd, ctrl)
			if err != nil {
				return err
			}
			printCaptured(cmd, res)
			media = res.Media
		default:
			if media, err = ctrl.PickFromGallery(cmd.Context(), args); err != nil {
				return err
			}
		}

		up := upload.New(client, upload.Options{
			Concurrency: cfg.UploadConcurrency,
			Logger:      logger,
			Metrics:     meter,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Uploading %d file(s)…\n", len(media.Files()))
		assets, err := up.Upload(cmd.Context(), media)
		if err != nil {
			return err
		}
		draft.Media = assets
		if publishCapture {
			// The uploaded copy is the listing's media from here on.
			_ = ctrl.Discard(media)
		}

		if err := publish.New(client, logger).Publish(cmd.Context(), draft); err != nil {
			return err
		}
		req := draft.Request()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listed %q for €%.2f\n", req.Name, req.Price)
		return nil
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	publishCmd.Flags().StringVarP(&publishTitle, "title", "t", "", "Listing title")
	publishCmd.Flags().StringVarP(&publishPrice, "price", "p", "", "Price in euros, e.g. 12.50")
	publishCmd.Flags().StringVarP(&publishDescription, "description", "d", "", "Listing description")
	publishCmd.Flags().StringVar(&publishCondition, "condition", "", "Condition (defaults to the profile setting)")
	publishCmd.Flags().StringVar(&publishLocation, "location", "", "Location (defaults to the profile setting)")
	publishCmd.Flags().IntVar(&publishStock, "stock", publish.DefaultStock, "Units available")
	publishCmd.Flags().BoolVar(&publishCapture, "capture", false, "Open the shutter screen instead of using files")
	rootCmd.AddCommand(publishCmd)
}
