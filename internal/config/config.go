package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configurable bazaar settings.
type Config struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	UploadConcurrency int           `mapstructure:"upload_concurrency"`
	GalleryLimit      int           `mapstructure:"gallery_limit"`
	HoldThreshold     time.Duration `mapstructure:"hold_threshold"`
	PrefetchWindow    int           `mapstructure:"prefetch_window"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFile           string        `mapstructure:"log_file"`     // empty: $XDG_STATE_HOME/bazaar/bazaar.log
	MetricsFile       string        `mapstructure:"metrics_file"` // empty: metrics are not written
	Capture           Capture       `mapstructure:"capture"`
}

// Capture configures the external commands that drive the camera.
// {device}, {audio_device} and {output} are substituted before running.
type Capture struct {
	Device       string   `mapstructure:"device"`
	AudioDevice  string   `mapstructure:"audio_device"`
	OutputDir    string   `mapstructure:"output_dir"` // empty: $XDG_DATA_HOME/bazaar/captures
	PhotoCommand []string `mapstructure:"photo_command"`
	VideoCommand []string `mapstructure:"video_command"`
	AudioArgs    []string `mapstructure:"audio_args"` // inserted at {audio} when the microphone is usable
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		APIBaseURL:        "http://74.248.81.121",
		RequestTimeout:    15 * time.Second,
		MaxRetries:        3,
		UploadConcurrency: 4,
		GalleryLimit:      10,
		HoldThreshold:     500 * time.Millisecond,
		PrefetchWindow:    3,
		LogLevel:          "info",
		Capture: Capture{
			Device:       "/dev/video0",
			AudioDevice:  "default",
			PhotoCommand: []string{"ffmpeg", "-loglevel", "error", "-y", "-f", "v4l2", "-i", "{device}", "-frames:v", "1", "{output}"},
			VideoCommand: []string{"ffmpeg", "-loglevel", "error", "-y", "-f", "v4l2", "-i", "{device}", "{audio}", "-c:v", "libx264", "-pix_fmt", "yuv420p", "{output}"},
			AudioArgs:    []string{"-f", "alsa", "-i", "{audio_device}"},
		},
	}
}

// Paths names the files Load reads. Either may be empty.
type Paths struct {
	Global  string
	Project string
}

// DefaultPaths returns ~/.config/bazaar/config.json and .bazaarconfig in the
// current working directory.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Global:  filepath.Join(home, ".config", "bazaar", "config.json"),
		Project: ".bazaarconfig",
	}, nil
}

// Load layers defaults, the global file, the project file and BAZAAR_*
// environment variables, later sources taking precedence. Missing files are
// skipped.
func Load(p Paths) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("BAZAAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Defaults())

	if err := mergeFile(v, p.Global); err != nil {
		return Config{}, err
	}
	if err := mergeFile(v, p.Project); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile merges the JSON file at path into v. Absent files are ignored.
func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	if err := v.MergeConfig(f); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api_base_url", d.APIBaseURL)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("upload_concurrency", d.UploadConcurrency)
	v.SetDefault("gallery_limit", d.GalleryLimit)
	v.SetDefault("hold_threshold", d.HoldThreshold)
	v.SetDefault("prefetch_window", d.PrefetchWindow)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("capture.device", d.Capture.Device)
	v.SetDefault("capture.audio_device", d.Capture.AudioDevice)
	v.SetDefault("capture.output_dir", d.Capture.OutputDir)
	v.SetDefault("capture.photo_command", d.Capture.PhotoCommand)
	v.SetDefault("capture.video_command", d.Capture.VideoCommand)
	v.SetDefault("capture.audio_args", d.Capture.AudioArgs)
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
