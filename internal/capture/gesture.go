package capture

import (
	"sync"
	"time"
)

// DefaultHoldThreshold separates a tap from a hold.
const DefaultHoldThreshold = 500 * time.Millisecond

// Timer is the subset of *time.Timer the gesture needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// GestureHandlers receive the classified gesture. For every press that is
// followed by a release exactly one of them runs.
type GestureHandlers struct {
	// Tap runs when the shutter is released before the threshold.
	Tap func()
	// Hold runs when the threshold elapses while pressed. stop is closed
	// on release.
	Hold func(stop <-chan struct{})
}

type gestureState int

const (
	gestureIdle gestureState = iota
	gesturePending
	gestureHolding
)

// Gesture classifies a shutter press as a tap (photo) or a hold (video).
// It is safe for concurrent use.
type Gesture struct {
	threshold time.Duration
	after     AfterFunc
	handlers  GestureHandlers

	mu    sync.Mutex
	state gestureState
	gen   uint64
	timer Timer
	stop  chan struct{}
}

// NewGesture returns a Gesture. A nil after uses the wall clock.
func NewGesture(threshold time.Duration, h GestureHandlers, after AfterFunc) *Gesture {
	if threshold <= 0 {
		threshold = DefaultHoldThreshold
	}
	if after == nil {
		after = realAfterFunc
	}
	return &Gesture{threshold: threshold, after: after, handlers: h}
}

// Press starts a gesture. A press while one is in progress is ignored.
func (g *Gesture) Press() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != gestureIdle {
		return
	}
	g.state = gesturePending
	g.gen++
	gen := g.gen
	g.timer = g.after(g.threshold, func() { g.elapsed(gen) })
}

// Release ends the current gesture.
func (g *Gesture) Release() {
	g.mu.Lock()
	switch g.state {
	case gesturePending:
		if g.timer != nil {
			g.timer.Stop()
		}
		g.state = gestureIdle
		g.gen++
		g.mu.Unlock()
		if g.handlers.Tap != nil {
			g.handlers.Tap()
		}
	case gestureHolding:
		close(g.stop)
		g.stop = nil
		g.state = gestureIdle
		g.mu.Unlock()
	default:
		g.mu.Unlock()
	}
}

// Holding reports whether a hold is in progress.
func (g *Gesture) Holding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gestureHolding
}

// elapsed fires when the threshold passes. A stale timer from an earlier
// press is ignored.
func (g *Gesture) elapsed(gen uint64) {
	g.mu.Lock()
	if g.state != gesturePending || g.gen != gen {
		g.mu.Unlock()
		return
	}
	g.state = gestureHolding
	stop := make(chan struct{})
	g.stop = stop
	g.mu.Unlock()
	if g.handlers.Hold != nil {
		g.handlers.Hold(stop)
	}
}
