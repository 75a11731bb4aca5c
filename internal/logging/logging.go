// Package logging builds the zap logger used across bazaar.
//
// Logs go to a rotating file rather than the terminal so the feed browser
// keeps full control of the screen.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level string // debug, info, warn, error
	File  string // empty: DefaultFile()
}

// DefaultFile returns $XDG_STATE_HOME/bazaar/bazaar.log, falling back to
// ~/.local/state.
func DefaultFile() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "bazaar", "bazaar.log"), nil
}

// New returns a JSON logger writing to a size-rotated file.
func New(opts Options) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	path := opts.File
	if path == "" {
		if path, err = DefaultFile(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		LocalTime:  true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), level)

	return zap.New(core, zap.AddCaller()).With(zap.Int("pid", os.Getpid())), nil
}
