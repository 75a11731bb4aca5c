// Package capture produces local media for a new listing: camera snapshots,
// camera recordings and files picked from disk.
package capture

import (
	"path/filepath"
	"strings"
)

// Kind identifies what a Media value holds.
type Kind string

const (
	KindPhoto   Kind = "photo"
	KindVideo   Kind = "video"
	KindGallery Kind = "gallery"
)

// Media is one capture outcome. Photo and video carry Path; gallery carries
// Paths in selection order.
type Media struct {
	Kind  Kind
	Path  string
	Paths []string
}

// Files returns the local files that make up m, in order.
func (m Media) Files() []string {
	if m.Kind == KindGallery {
		out := make([]string, len(m.Paths))
		copy(out, m.Paths)
		return out
	}
	if m.Path == "" {
		return nil
	}
	return []string{m.Path}
}

// Result is a capture outcome plus anything the user should be told about
// how it was produced.
type Result struct {
	Media    Media
	Warnings []string
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
}

// IsVideoFile reports whether path names a video by its extension.
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}
