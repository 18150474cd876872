package fetcher

import (
	"log/slog"

	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/viewport"
)

const (
	DefaultMarkerPageSize = 500
	DefaultCardPageSize   = 6
)

type options struct {
	pageSize   int
	maxPages   int
	extension  float64
	kind       listing.Kind
	category   string
	classifier *viewport.Classifier
	staleGuard bool
	logger     *slog.Logger
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func WithPageSize(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	})
}

// WithMaxPages stops an exhaustive pagination with ErrPageLimit after n pages.
// Default: unlimited
func WithMaxPages(n int) Option {
	return optionFunc(func(o *options) { o.maxPages = n })
}

// WithExtension sets the buffer margin of marker fetches. Default: 0.2
func WithExtension(factor float64) Option {
	return optionFunc(func(o *options) {
		if factor >= 0 {
			o.extension = factor
		}
	})
}

// WithKind selects the category rule of marker labels. Default: residential
func WithKind(kind listing.Kind) Option {
	return optionFunc(func(o *options) { o.kind = kind })
}

// WithDefaultCategory replaces the kind's label for listings the category
// rule finds nothing for.
func WithDefaultCategory(category string) Option {
	return optionFunc(func(o *options) { o.category = category })
}

// WithClassifier overrides the significance thresholds of the card fetcher.
func WithClassifier(c viewport.Classifier) Option {
	return optionFunc(func(o *options) { o.classifier = &c })
}

// WithStaleGuard tags every fetch with a generation; results of a fetch that
// is no longer the newest are kept out of the live set.
func WithStaleGuard(enabled bool) Option {
	return optionFunc(func(o *options) { o.staleGuard = enabled })
}

func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

func loadOptions(defaultPageSize int, opts ...Option) options {
	o := options{
		pageSize:  defaultPageSize,
		extension: georect.DefaultExtension,
		kind:      listing.KindResidential,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
