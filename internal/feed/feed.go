// Package feed is the read path of the marketplace: an append-only list of
// recommended listings that grows as the viewer nears its end.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
)

// DefaultWindow is how close to the end the viewer must be before more
// items are fetched.
const DefaultWindow = 3

// ErrEmpty is reported when the first page has no listings.
var ErrEmpty = errors.New("No products available")

// Source supplies batches of listings.
type Source interface {
	Recommended(ctx context.Context) ([]api.Listing, error)
}

// State is the lifecycle of the feed.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// FetchError wraps a failed fetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "failed to fetch content: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Feed.
type Options struct {
	Window int
	Logger *zap.Logger
}

// Feed holds the fetched items. At most one fetch is in flight at a time;
// a trigger that arrives while one is running is dropped.
type Feed struct {
	src    Source
	window int
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	items    []Item
	err      error
	fetching bool
	seq      int
}

// New returns an idle Feed.
func New(src Source, opts Options) *Feed {
	w := opts.Window
	if w <= 0 {
		w = DefaultWindow
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{src: src, window: w, log: log}
}

// begin takes the in-flight latch. It reports false if a fetch is running.
func (f *Feed) begin(initial bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetching {
		return false
	}
	f.fetching = true
	if initial {
		f.state = StateLoading
		f.err = nil
	}
	return true
}

// Load fetches the first page, replacing any items. It is also the retry
// after an error. A call while a fetch is in flight does nothing.
func (f *Feed) Load(ctx context.Context) error {
	if !f.begin(true) {
		return nil
	}
	listings, err := f.src.Recommended(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = false
	if err == nil && len(listings) == 0 {
		err = ErrEmpty
	}
	if err != nil {
		f.state = StateErrored
		f.err = &FetchError{Err: err}
		f.log.Warn("feed load failed", zap.Error(err))
		return f.err
	}
	f.items = f.items[:0]
	f.appendLocked(listings)
	f.state = StateLoaded
	f.log.Debug("feed loaded", zap.Int("items", len(f.items)))
	return nil
}

// FetchMore appends the next batch. A call while a fetch is in flight, or
// before the first page has loaded, does nothing. A failure leaves the
// items and state untouched.
func (f *Feed) FetchMore(ctx context.Context) (int, error) {
	f.mu.Lock()
	loaded := f.state == StateLoaded
	f.mu.Unlock()
	if !loaded || !f.begin(false) {
		return 0, nil
	}
	listings, err := f.src.Recommended(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = false
	if err != nil {
		f.log.Debug("feed fetch-more failed", zap.Error(err))
		return 0, &FetchError{Err: err}
	}
	f.appendLocked(listings)
	return len(listings), nil
}

func (f *Feed) appendLocked(listings []api.Listing) {
	for _, l := range listings {
		f.items = append(f.items, FromListing(l, f.seq))
		f.seq++
	}
}

// ShouldFetchMore reports whether viewing index visible calls for another
// batch: the feed is loaded, idle, and visible is within the window of the
// end.
func (f *Feed) ShouldFetchMore(visible int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateLoaded && !f.fetching && len(f.items) > 0 && visible >= len(f.items)-f.window
}

// State returns the current lifecycle state and the last load error.
func (f *Feed) State() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

// Fetching reports whether a fetch is in flight.
func (f *Feed) Fetching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetching
}

// Items returns a copy of the items fetched so far.
func (f *Feed) Items() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

// Len returns the number of items.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
