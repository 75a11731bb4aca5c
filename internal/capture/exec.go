package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/config"
)

// stopGrace is how long a recording process may take to finalize its file
// after being interrupted.
const stopGrace = 5 * time.Second

// ExecDevice drives the camera through external commands, ffmpeg by
// default. See config.Capture for the placeholders.
type ExecDevice struct {
	cfg config.Capture
	log *zap.Logger
}

// NewExecDevice returns a Device backed by the commands in cfg.
func NewExecDevice(cfg config.Capture, log *zap.Logger) *ExecDevice {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecDevice{cfg: cfg, log: log}
}

// Snapshot runs the photo command and waits for it.
func (d *ExecDevice) Snapshot(ctx context.Context, out string) error {
	argv, err := d.expand(d.cfg.PhotoCommand, out, false)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	d.log.Debug("running photo command", zap.Strings("argv", argv))
	if err := cmd.Run(); err != nil {
		return commandError(argv[0], err, stderr.String())
	}
	return checkOutput(out)
}

// StartRecording starts the video command. The returned Recording stops it
// with an interrupt so the encoder can finalize the file.
func (d *ExecDevice) StartRecording(ctx context.Context, out string, withAudio bool) (Recording, error) {
	argv, err := d.expand(d.cfg.VideoCommand, out, withAudio)
	if err != nil {
		return nil, err
	}
	// The process outlives the call, so it is not tied to ctx; Controller
	// stops it when ctx ends.
	cmd := exec.Command(argv[0], argv[1:]...)
	rec := &execRecording{cmd: cmd, out: out, done: make(chan struct{}), name: argv[0]}
	cmd.Stderr = &rec.stderr
	d.log.Debug("starting video command", zap.Strings("argv", argv))
	if err := cmd.Start(); err != nil {
		return nil, commandError(argv[0], err, "")
	}
	go func() {
		rec.waitErr = cmd.Wait()
		close(rec.done)
	}()
	return rec, nil
}

// expand substitutes placeholders in argv. {audio} expands to the audio
// arguments, or to nothing when recording silently.
func (d *ExecDevice) expand(argv []string, out string, withAudio bool) ([]string, error) {
	if len(argv) == 0 {
		return nil, errors.New("capture command is not configured")
	}
	r := strings.NewReplacer(
		"{device}", d.cfg.Device,
		"{audio_device}", d.cfg.AudioDevice,
		"{output}", out,
	)
	expanded := make([]string, 0, len(argv)+len(d.cfg.AudioArgs))
	for _, a := range argv {
		if a == "{audio}" {
			if withAudio {
				for _, aa := range d.cfg.AudioArgs {
					expanded = append(expanded, r.Replace(aa))
				}
			}
			continue
		}
		expanded = append(expanded, r.Replace(a))
	}
	return expanded, nil
}

type execRecording struct {
	cmd    *exec.Cmd
	out    string
	name   string
	stderr bytes.Buffer

	once    sync.Once
	stopErr error
	done    chan struct{}
	waitErr error
}

func (r *execRecording) Stop() error {
	r.once.Do(func() { r.stopErr = r.stop() })
	return r.stopErr
}

func (r *execRecording) stop() error {
	select {
	case <-r.done:
		// Exited on its own before being asked to stop.
		if r.waitErr != nil {
			return commandError(r.name, r.waitErr, r.stderr.String())
		}
		return checkOutput(r.out)
	default:
	}

	if err := r.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt %s: %w", r.name, err)
	}
	select {
	case <-r.done:
	case <-time.After(stopGrace):
		_ = r.cmd.Process.Kill()
		<-r.done
		return fmt.Errorf("%s did not stop within %s", r.name, stopGrace)
	}
	// Encoders commonly exit non-zero when interrupted; the file decides.
	return checkOutput(r.out)
}

func commandError(name string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("%s: %w", name, err)
	}
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[i+1:]
	}
	return fmt.Errorf("%s: %w: %s", name, err, stderr)
}

func checkOutput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no media written to %s: %w", filepath.Base(path), err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("empty media written to %s", filepath.Base(path))
	}
	return nil
}

// DevicePermissions checks device nodes and files for read access.
type DevicePermissions struct {
	Device      string
	AudioDevice string
}

// Camera checks that the video device can be opened.
func (p DevicePermissions) Camera() error {
	return canRead(p.Device)
}

// Microphone checks that the sound devices are accessible. ALSA names such as
// "default" are resolved through /dev/snd.
func (p DevicePermissions) Microphone() error {
	dev := p.AudioDevice
	if dev == "" || !strings.HasPrefix(dev, "/") {
		dev = "/dev/snd"
	}
	return canRead(dev)
}

// MediaLibrary checks that every picked file is readable.
func (p DevicePermissions) MediaLibrary(paths []string) error {
	for _, path := range paths {
		if err := canRead(path); err != nil {
			return err
		}
	}
	return nil
}

func canRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%s: %w", path, ErrPermissionDenied)
		}
		return err
	}
	return f.Close()
}
