package spatialcache

import (
	"log/slog"
	"time"

	"github.com/royalcat/listingmap/clock"
)

const (
	DefaultSize   = 10
	DefaultExpiry = 5 * time.Minute
)

type options struct {
	size   int
	expiry time.Duration
	clock  clock.Clock
	logger *slog.Logger
	name   string
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithSize bounds the number of entries. Default: 10
func WithSize(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.size = n
		}
	})
}

// WithExpiry sets how long an entry stays valid. Default: 5m
func WithExpiry(d time.Duration) Option {
	return optionFunc(func(o *options) {
		if d > 0 {
			o.expiry = d
		}
	})
}

func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) { o.clock = c })
}

func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithName labels the cache in logs and metrics.
func WithName(name string) Option {
	return optionFunc(func(o *options) { o.name = name })
}

func loadOptions(opts ...Option) options {
	o := options{
		size:   DefaultSize,
		expiry: DefaultExpiry,
		clock:  clock.Real(),
		logger: slog.Default(),
		name:   "default",
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
