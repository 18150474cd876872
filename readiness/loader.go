package readiness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/royalcat/listingmap/observe"
	"golang.org/x/sync/singleflight"
)

type Status struct {
	Ready bool
	Err   error
}

// LoadFunc prepares whatever a session needs before its first fetch.
type LoadFunc func(ctx context.Context) error

// Loader runs its load function at most once successfully. Concurrent Start
// calls share one attempt; a failed attempt may be retried by calling Start
// again.
type Loader struct {
	load LoadFunc
	log  *slog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	status Status
	done   chan struct{}
	topic  observe.Topic[Status]
}

func New(load LoadFunc, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		load: load,
		log:  log.With("component", "readiness"),
		done: make(chan struct{}),
	}
}

// Ready returns a loader that is already loaded.
func Ready() *Loader {
	l := New(nil, nil)
	l.status.Ready = true
	close(l.done)
	return l
}

func (l *Loader) Start(ctx context.Context) Status {
	if s := l.Status(); s.Ready {
		return s
	}

	v, _, _ := l.group.Do("load", func() (any, error) {
		if s := l.Status(); s.Ready {
			return s, nil
		}

		var err error
		if l.load != nil {
			err = l.load(ctx)
		}

		l.mu.Lock()
		if err != nil {
			l.status = Status{Err: err}
		} else {
			l.status = Status{Ready: true}
			close(l.done)
		}
		s := l.status
		l.mu.Unlock()

		if err != nil {
			l.log.Error("loading failed", "error", err)
		} else {
			l.log.Info("loaded")
		}
		l.topic.Publish(s)
		return s, nil
	})
	return v.(Status)
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Subscribe is called with every status change.
func (l *Loader) Subscribe(fn func(Status)) func() {
	return l.topic.Subscribe(fn)
}

// Wait blocks until the loader is ready or ctx is done.
func (l *Loader) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
