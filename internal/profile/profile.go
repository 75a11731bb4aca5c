// Package profile manages the user's local bazaar profile: listing defaults
// and billing details reused at checkout. It lives at
// ~/.config/bazaar/profile.json and is created by the setup wizard.
// Card details are never stored.
package profile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Billing holds the reusable part of the checkout form.
type Billing struct {
	Email      string `json:"email"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Telephone  string `json:"telephone"`
}

// Profile holds user-level preferences set during setup.
type Profile struct {
	Location      string  `json:"location"`       // default listing location
	Condition     string  `json:"condition"`      // default listing condition
	DefaultFormat string  `json:"default_format"` // "markdown" | "json" for non-interactive feed output
	Billing       Billing `json:"billing"`
}

// Defaults returns the profile used when none has been saved.
func Defaults() Profile {
	return Profile{
		Location:      "Ljubljana",
		Condition:     "NEW",
		DefaultFormat: "markdown",
	}
}

// ConfigDir returns the bazaar config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bazaar"), nil
}

func profilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. Missing fields keep their defaults.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("profile not found, run 'bazaar setup' to create one: %w", err)
		}
		return nil, err
	}
	prof := Defaults()
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile. The file is private to the user since it holds
// contact details.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// RunSetup runs the interactive setup wizard on in/out and returns the
// resulting profile. If existing is non-nil its values are the defaults for
// each prompt.
func RunSetup(in io.Reader, out io.Writer, existing *Profile) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	prof := Defaults()
	if existing != nil {
		prof = *existing
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │     bazaar — profile setup      │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"  Default listing location", &prof.Location},
		{"  Default listing condition (NEW/USED)", &prof.Condition},
		{"  Feed output format (markdown/json)", &prof.DefaultFormat},
		{"  Billing email", &prof.Billing.Email},
		{"  Billing postal code", &prof.Billing.PostalCode},
		{"  Billing city", &prof.Billing.City},
		{"  Billing country", &prof.Billing.Country},
		{"  Telephone (optional)", &prof.Billing.Telephone},
	}
	for _, f := range fields {
		v, err := ask(f.prompt, *f.dst)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	prof.Condition = strings.ToUpper(prof.Condition)
	if prof.DefaultFormat != "json" {
		prof.DefaultFormat = "markdown"
	}

	fmt.Fprintln(out)
	return &prof, nil
}
