package debounce

import (
	"sync"
	"time"

	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/georect"
)

const (
	MarkerDelay = 800 * time.Millisecond
	CardDelay   = 300 * time.Millisecond
)

// Gate turns a stream of viewport updates into trailing commits. Every update
// cancels the pending commit; updates accepted by the filter schedule a new
// one after the delay, so only the last accepted viewport of a burst commits.
type Gate struct {
	clock  clock.Clock
	delay  time.Duration
	accept func(georect.Rect) bool
	commit func(georect.Rect)

	mu      sync.Mutex
	cancel  func() bool
	seq     uint64
	pending *georect.Rect
	stopped bool
}

// New creates a gate. A nil accept commits every update.
func New(c clock.Clock, delay time.Duration, accept func(georect.Rect) bool, commit func(georect.Rect)) *Gate {
	if c == nil {
		c = clock.Real()
	}
	if accept == nil {
		accept = func(georect.Rect) bool { return true }
	}
	return &Gate{
		clock:  c,
		delay:  delay,
		accept: accept,
		commit: commit,
	}
}

// Observe reports whether r scheduled a commit.
func (g *Gate) Observe(r georect.Rect) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return false
	}
	g.cancelLocked()

	if !g.accept(r) {
		return false
	}

	g.seq++
	seq := g.seq
	g.pending = &r
	g.cancel = g.clock.AfterFunc(g.delay, func() {
		g.mu.Lock()
		// a timer that lost the race with a newer update or Stop
		if g.stopped || g.pending == nil || seq != g.seq {
			g.mu.Unlock()
			return
		}
		view := *g.pending
		g.pending = nil
		g.cancel = nil
		g.mu.Unlock()

		g.commit(view)
	})
	return true
}

// Pending returns the viewport waiting to be committed.
func (g *Gate) Pending() (georect.Rect, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return georect.Rect{}, false
	}
	return *g.pending, true
}

// Flush commits the pending viewport immediately.
func (g *Gate) Flush() bool {
	g.mu.Lock()
	if g.stopped || g.pending == nil {
		g.mu.Unlock()
		return false
	}
	view := *g.pending
	g.cancelLocked()
	g.mu.Unlock()

	g.commit(view)
	return true
}

// Stop drops the pending commit. Later updates are ignored.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
	g.stopped = true
}

func (g *Gate) cancelLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.pending = nil
}
