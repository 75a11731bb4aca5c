package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/validate"
)

// Device drives the camera.
type Device interface {
	// Snapshot writes a single still image to out.
	Snapshot(ctx context.Context, out string) error
	// StartRecording begins writing video to out and returns once the
	// recording is running.
	StartRecording(ctx context.Context, out string, withAudio bool) (Recording, error)
}

// Recording is an in-progress camera recording.
type Recording interface {
	// Stop ends the recording and waits until the file is finalized.
	Stop() error
}

// Permissions reports whether each capability may be used. A nil error
// means granted.
type Permissions interface {
	Camera() error
	Microphone() error
	MediaLibrary(paths []string) error
}

// DefaultGalleryLimit is the most files PickFromGallery accepts.
const DefaultGalleryLimit = 10

// Options configures a Controller.
type Options struct {
	Device       Device
	Permissions  Permissions
	OutputDir    string
	GalleryLimit int
	Logger       *zap.Logger
}

// Controller serializes access to the camera. At most one snapshot or
// recording holds the device at a time.
type Controller struct {
	dev    Device
	perms  Permissions
	outDir string
	limit  int
	log    *zap.Logger
	sem    chan struct{}
}

// NewController returns a Controller.
func NewController(opts Options) *Controller {
	limit := opts.GalleryLimit
	if limit <= 0 {
		limit = DefaultGalleryLimit
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		dev:    opts.Device,
		perms:  opts.Permissions,
		outDir: opts.OutputDir,
		limit:  limit,
		log:    log,
		sem:    make(chan struct{}, 1),
	}
}

// withDevice runs fn while holding the device. The device is released on
// every return path.
func (c *Controller) withDevice(ctx context.Context, fn func() error) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()
	return fn()
}

// TakeSnapshot captures one photo.
func (c *Controller) TakeSnapshot(ctx context.Context) (Media, error) {
	if err := c.perms.Camera(); err != nil {
		return Media{}, &DeviceError{Op: "camera permission", Err: err}
	}
	out, err := c.newPath("photo", ".jpg")
	if err != nil {
		return Media{}, err
	}
	err = c.withDevice(ctx, func() error {
		return c.dev.Snapshot(ctx, out)
	})
	if err != nil {
		removePartial(out)
		return Media{}, &DeviceError{Op: "snapshot", Err: err}
	}
	c.log.Info("photo captured", zap.String("path", out))
	return Media{Kind: KindPhoto, Path: out}, nil
}

// Record captures video until stop is closed or ctx ends. Without
// microphone access the video is recorded silently and a warning is
// returned alongside it.
func (c *Controller) Record(ctx context.Context, stop <-chan struct{}) (Result, error) {
	if err := c.perms.Camera(); err != nil {
		return Result{}, &DeviceError{Op: "camera permission", Err: err}
	}
	var warnings []string
	withAudio := true
	if err := c.perms.Microphone(); err != nil {
		withAudio = false
		warnings = append(warnings, "Microphone permission required: videos will be recorded without audio.")
		c.log.Warn("recording without audio", zap.Error(err))
	}

	out, err := c.newPath("video", ".mp4")
	if err != nil {
		return Result{}, err
	}

	err = c.withDevice(ctx, func() error {
		rec, err := c.dev.StartRecording(ctx, out, withAudio)
		if err != nil {
			return err
		}
		select {
		case <-stop:
		case <-ctx.Done():
		}
		if err := rec.Stop(); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		removePartial(out)
		return Result{}, &DeviceError{Op: "record", Err: err}
	}
	c.log.Info("video captured", zap.String("path", out), zap.Bool("audio", withAudio))
	return Result{Media: Media{Kind: KindVideo, Path: out}, Warnings: warnings}, nil
}

// PickFromGallery turns files chosen by the user into Media. A single video
// becomes a video; anything else becomes an ordered gallery.
func (c *Controller) PickFromGallery(ctx context.Context, paths []string) (Media, error) {
	if len(paths) == 0 {
		return Media{}, &validate.Error{Field: "media", Rule: "required", Message: "Select at least one file"}
	}
	if len(paths) > c.limit {
		return Media{}, &validate.Error{
			Field:   "media",
			Rule:    "max",
			Message: fmt.Sprintf("You can select at most %d files", c.limit),
		}
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return Media{}, err
		}
		abs, err := resolve(p)
		if err != nil {
			return Media{}, &DeviceError{Op: "media library", Err: err}
		}
		resolved = append(resolved, abs)
	}
	if err := c.perms.MediaLibrary(resolved); err != nil {
		return Media{}, &DeviceError{Op: "media library permission", Err: err}
	}

	if len(resolved) == 1 && IsVideoFile(resolved[0]) {
		return Media{Kind: KindVideo, Path: resolved[0]}, nil
	}
	return Media{Kind: KindGallery, Paths: resolved}, nil
}

// resolve expands ~ and makes p absolute. It fails for anything that is not
// a regular file.
func resolve(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", p)
	}
	return abs, nil
}

// Discard deletes the files of m that this controller captured. Files the
// user picked from elsewhere are left alone.
func (c *Controller) Discard(m Media) error {
	dir, err := filepath.Abs(c.outputDir())
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range m.Files() {
		abs, err := filepath.Abs(f)
		if err != nil || filepath.Dir(abs) != dir {
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.log.Warn("could not discard captured media", zap.Error(err))
		return err
	}
	c.log.Debug("captured media discarded", zap.Strings("files", m.Files()))
	return nil
}

// removePartial drops whatever a failed capture left at path.
func removePartial(path string) {
	_ = os.Remove(path)
}

func (c *Controller) outputDir() string {
	if c.outDir == "" {
		return os.TempDir()
	}
	return c.outDir
}

func (c *Controller) newPath(prefix, ext string) (string, error) {
	dir := c.outputDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", &DeviceError{Op: "prepare output", Err: err}
	}
	return filepath.Join(dir, prefix+"_"+uuid.NewString()+ext), nil
}
