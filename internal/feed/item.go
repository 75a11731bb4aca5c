package feed

import (
	"hash/fnv"
	"math/rand/v2"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/bazarteer/bazaar/internal/api"
)

// Kind is how an item is presented.
type Kind string

const (
	KindVideo     Kind = "video"
	KindSlideshow Kind = "slideshow"
)

// Engagement holds display-only counters. They are not server data.
type Engagement struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// Item is a listing as the feed presents it. Exactly one of VideoURL and
// Images is meaningful, chosen by Kind.
type Item struct {
	Key        string
	Kind       Kind
	VideoURL   string
	Images     []string
	Listing    api.Listing
	Engagement Engagement
}

var videoExts = []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}

// IsVideoURL reports whether ref points at a video, judged by the extension
// of its path. Query and fragment are ignored and case does not matter.
func IsVideoURL(ref string) bool {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	for _, v := range videoExts {
		if ext == v {
			return true
		}
	}
	return false
}

// Classify picks the presentation for a listing's content: the first video
// if there is any, otherwise a slideshow of every ref in order.
func Classify(content []string) (Kind, string, []string) {
	for _, ref := range content {
		if IsVideoURL(ref) {
			return KindVideo, ref, nil
		}
	}
	images := make([]string, len(content))
	copy(images, content)
	return KindSlideshow, "", images
}

// FromListing builds the feed item for l. seq distinguishes repeated
// appearances of the same listing.
func FromListing(l api.Listing, seq int) Item {
	kind, video, images := Classify(l.Content)
	return Item{
		Key:        l.ID.String() + "-" + strconv.Itoa(seq),
		Kind:       kind,
		VideoURL:   video,
		Images:     images,
		Listing:    l,
		Engagement: EngagementFor(l.ID.String()),
	}
}

// EngagementFor derives placeholder counters from a listing id, so the same
// listing always shows the same numbers. Likes fall in [100, 10099],
// comments in [10, 1009] and shares in [5, 504].
func EngagementFor(id string) Engagement {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return Engagement{
		Likes:    100 + r.IntN(10000),
		Comments: 10 + r.IntN(1000),
		Shares:   5 + r.IntN(500),
	}
}
