package session

import (
	"log/slog"
	"time"

	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/debounce"
	"github.com/royalcat/listingmap/readiness"
	"github.com/royalcat/listingmap/viewport"
)

type options struct {
	clock       clock.Clock
	markerDelay time.Duration
	cardDelay   time.Duration
	markerGate  viewport.Classifier
	cardGate    viewport.Classifier
	loader      *readiness.Loader
	logger      *slog.Logger
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) { o.clock = c })
}

// WithMarkerDelay sets the quiet period before a marker viewport commits. Default: 800ms
func WithMarkerDelay(d time.Duration) Option {
	return optionFunc(func(o *options) { o.markerDelay = d })
}

// WithCardDelay sets the quiet period before a card viewport commits. Default: 300ms
func WithCardDelay(d time.Duration) Option {
	return optionFunc(func(o *options) { o.cardDelay = d })
}

// WithMarkerClassifier sets the thresholds deciding which marker viewport
// updates are worth scheduling at all.
func WithMarkerClassifier(c viewport.Classifier) Option {
	return optionFunc(func(o *options) { o.markerGate = c })
}

func WithCardClassifier(c viewport.Classifier) Option {
	return optionFunc(func(o *options) { o.cardGate = c })
}

// WithLoader defers fetches until the loader reports ready.
func WithLoader(l *readiness.Loader) Option {
	return optionFunc(func(o *options) { o.loader = l })
}

func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

func loadOptions(opts ...Option) options {
	o := options{
		clock:       clock.Real(),
		markerDelay: debounce.MarkerDelay,
		cardDelay:   debounce.CardDelay,
		markerGate:  viewport.Markers(),
		cardGate:    viewport.Cards(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.loader == nil {
		o.loader = readiness.Ready()
	}
	return o
}
