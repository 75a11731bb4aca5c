package capture

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarteer/bazaar/internal/config"
)

const (
	timeoutForTest = 3 * time.Second
	tick           = 20 * time.Millisecond
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExpandPlaceholders(t *testing.T) {
	d := NewExecDevice(config.Capture{
		Device:      "/dev/video3",
		AudioDevice: "hw:1",
		AudioArgs:   []string{"-f", "alsa", "-i", "{audio_device}"},
	}, nil)
	argv := []string{"ffmpeg", "-i", "{device}", "{audio}", "{output}"}

	got, err := d.expand(argv, "/tmp/v.mp4", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ffmpeg", "-i", "/dev/video3", "-f", "alsa", "-i", "hw:1", "/tmp/v.mp4"}, got)

	got, err = d.expand(argv, "/tmp/v.mp4", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ffmpeg", "-i", "/dev/video3", "/tmp/v.mp4"}, got)

	_, err = d.expand(nil, "x", false)
	assert.Error(t, err)
}

func TestExecSnapshot(t *testing.T) {
	requireShell(t)
	d := NewExecDevice(config.Capture{
		PhotoCommand: []string{"sh", "-c", "printf jpeg > {output}"},
	}, nil)
	out := filepath.Join(t.TempDir(), "p.jpg")

	require.NoError(t, d.Snapshot(context.Background(), out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestExecSnapshotFailureIncludesStderr(t *testing.T) {
	requireShell(t)
	d := NewExecDevice(config.Capture{
		PhotoCommand: []string{"sh", "-c", "echo 'cannot open device' >&2; exit 1"},
	}, nil)
	err := d.Snapshot(context.Background(), filepath.Join(t.TempDir(), "p.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open device")
}

func TestExecSnapshotWithoutOutputFails(t *testing.T) {
	requireShell(t)
	d := NewExecDevice(config.Capture{PhotoCommand: []string{"sh", "-c", "true"}}, nil)
	assert.Error(t, d.Snapshot(context.Background(), filepath.Join(t.TempDir(), "p.jpg")))
}

func TestExecRecordingStopsOnInterrupt(t *testing.T) {
	requireShell(t)
	d := NewExecDevice(config.Capture{
		VideoCommand: []string{"sh", "-c", `printf mp4 > {output}; trap 'exit 255' INT; while :; do sleep 0.05; done`},
	}, nil)
	out := filepath.Join(t.TempDir(), "v.mp4")

	rec, err := d.StartRecording(context.Background(), out, false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		fi, err := os.Stat(out)
		return err == nil && fi.Size() > 0
	}, timeoutForTest, tick)

	assert.NoError(t, rec.Stop())
	assert.NoError(t, rec.Stop(), "Stop is idempotent")
}

func TestExecRecordingThatDiesEarly(t *testing.T) {
	requireShell(t)
	d := NewExecDevice(config.Capture{
		VideoCommand: []string{"sh", "-c", "echo 'device busy' >&2; exit 1"},
	}, nil)
	rec, err := d.StartRecording(context.Background(), filepath.Join(t.TempDir(), "v.mp4"), false)
	require.NoError(t, err)

	// Give the process time to exit on its own.
	require.Eventually(t, func() bool {
		select {
		case <-rec.(*execRecording).done:
			return true
		default:
			return false
		}
	}, timeoutForTest, tick)
	err = rec.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestDevicePermissions(t *testing.T) {
	files := writeFiles(t, "a.jpg")
	p := DevicePermissions{Device: files[0]}
	assert.NoError(t, p.Camera())
	assert.NoError(t, p.MediaLibrary(files))

	p.Device = filepath.Join(t.TempDir(), "video9")
	assert.Error(t, p.Camera())

	if os.Getuid() != 0 {
		require.NoError(t, os.Chmod(files[0], 0o000))
		assert.ErrorIs(t, p.MediaLibrary(files), ErrPermissionDenied)
	}
}
