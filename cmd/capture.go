package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/capture"
	"github.com/bazarteer/bazaar/internal/session"
	"github.com/bazarteer/bazaar/internal/tui"
)

var (
	capturePhoto   bool
	captureGallery []string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a photo, record a video or pick files for a new listing",
	Long: `Without flags, opens the shutter screen: press space and release it
quickly for a photo, or keep it pressed past the hold threshold and press
space again to stop recording a video.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController()
		if err != nil {
			return err
		}
		res, err := runCapture(cmd, ctrl)
		if err != nil {
			return err
		}
		printCaptured(cmd, res)
		return nil
	},
}

// newController builds the capture controller from config.
func newController() (*capture.Controller, error) {
	out := cfg.Capture.OutputDir
	if out == "" {
		dir, err := session.DataDir()
		if err != nil {
			return nil, err
		}
		out = filepath.Join(dir, "captures")
	}
	return capture.NewController(capture.Options{
		Device: capture.NewExecDevice(cfg.Capture, logger),
		Permissions: capture.DevicePermissions{
			Device:      cfg.Capture.Device,
			AudioDevice: cfg.Capture.AudioDevice,
		},
		OutputDir:    out,
		GalleryLimit: cfg.GalleryLimit,
		Logger:       logger,
	}), nil
}

// runCapture produces media according to the capture flags.
func runCapture(cmd *cobra.Command, ctrl *capture.Controller) (capture.Result, error) {
	ctx := cmd.Context()
	switch {
	case len(captureGallery) > 0:
		m, err := ctrl.PickFromGallery(ctx, captureGallery)
		return capture.Result{Media: m}, err
	case capturePhoto:
		m, err := ctrl.TakeSnapshot(ctx)
		return capture.Result{Media: m}, err
	}
	return tui.RunCapture(ctx, ctrl, cfg.HoldThreshold)
}

func printCaptured(cmd *cobra.Command, res capture.Result) {
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	for _, f := range res.Media.Files() {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
}

func init() {
	captureCmd.Flags().BoolVar(&capturePhoto, "photo", false, "Take a single photo without the shutter screen")
	captureCmd.Flags().StringSliceVar(&captureGallery, "gallery", nil, "Use existing files instead of the camera")
	rootCmd.AddCommand(captureCmd)
}
