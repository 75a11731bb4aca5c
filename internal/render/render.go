// Package render prints feed pages for non-interactive use.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/feed"
)

// Page is what a non-interactive command prints: a list of items and,
// for a profile, its owner.
type Page struct {
	Title   string
	Profile *api.UserProfile
	Items   []feed.Item
}

// Renderer serializes a Page.
type Renderer interface {
	Render(p *Page) ([]byte, error)
}

// For returns the renderer for format, "json" or "markdown".
func For(format string) (Renderer, error) {
	switch format {
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md", "":
		return &MarkdownRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want markdown or json)", format)
}

type jsonItem struct {
	ID            string          `json:"id"`
	Kind          feed.Kind       `json:"kind"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Price         string          `json:"price"`
	Location      string          `json:"location,omitempty"`
	Condition     string          `json:"condition,omitempty"`
	OwnerID       string          `json:"owner_id,omitempty"`
	OwnerUsername string          `json:"owner_username,omitempty"`
	VideoURL      string          `json:"video_url,omitempty"`
	Images        []string        `json:"images,omitempty"`
	Engagement    feed.Engagement `json:"engagement"`
}

type jsonPage struct {
	Title   string           `json:"title,omitempty"`
	Profile *api.UserProfile `json:"profile,omitempty"`
	Items   []jsonItem       `json:"items"`
}

// JSONRenderer renders a Page as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(p *Page) ([]byte, error) {
	out := jsonPage{Title: p.Title, Profile: p.Profile, Items: make([]jsonItem, 0, len(p.Items))}
	for _, it := range p.Items {
		out.Items = append(out.Items, jsonItem{
			ID:            it.Listing.ID.String(),
			Kind:          it.Kind,
			Title:         it.Listing.Name,
			Description:   it.Listing.Description,
			Price:         it.Listing.PriceString(),
			Location:      it.Listing.Location,
			Condition:     it.Listing.Condition,
			OwnerID:       it.Listing.OwnerID.String(),
			OwnerUsername: it.Listing.OwnerUsername,
			VideoURL:      it.VideoURL,
			Images:        it.Images,
			Engagement:    it.Engagement,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// MarkdownRenderer renders a Page as human-readable Markdown.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(p *Page) ([]byte, error) {
	var sb strings.Builder

	title := p.Title
	if title == "" {
		title = "Feed"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	if prof := p.Profile; prof != nil {
		name := strings.TrimSpace(prof.Name + " " + prof.Surname)
		if name == "" {
			name = prof.Username
		}
		fmt.Fprintf(&sb, "## %s (@%s)\n\n", name, prof.Username)
		if prof.Bio != "" {
			fmt.Fprintf(&sb, "%s\n\n", prof.Bio)
		}
		fmt.Fprintf(&sb, "- Sales: %d\n- Posts: %d\n\n", prof.Sales, prof.Posts)
	}

	if len(p.Items) == 0 {
		sb.WriteString("_No listings._\n")
		return []byte(sb.String()), nil
	}

	for i, it := range p.Items {
		l := it.Listing
		fmt.Fprintf(&sb, "## %d. %s — €%s\n\n", i+1, l.Name, l.PriceString())
		if l.OwnerUsername != "" {
			fmt.Fprintf(&sb, "- Seller: @%s\n", l.OwnerUsername)
		}
		if l.Location != "" {
			fmt.Fprintf(&sb, "- Location: %s\n", l.Location)
		}
		fmt.Fprintf(&sb, "- ID: %s\n", l.ID)
		fmt.Fprintf(&sb, "- ♥ %d  💬 %d  ↗ %d\n", it.Engagement.Likes, it.Engagement.Comments, it.Engagement.Shares)
		if l.Description != "" {
			fmt.Fprintf(&sb, "\n%s\n", l.Description)
		}
		sb.WriteString("\n")
		switch it.Kind {
		case feed.KindVideo:
			fmt.Fprintf(&sb, "Video: %s\n", it.VideoURL)
		default:
			if len(it.Images) == 0 {
				sb.WriteString("_No media._\n")
			}
			for j, img := range it.Images {
				fmt.Fprintf(&sb, "%d. ![](%s)\n", j+1, img)
			}
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}
