package fetcher

import (
	"context"
	"errors"

	"github.com/royalcat/listingmap/internal/meters"
	"github.com/royalcat/listingmap/listing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Source is one paginated remote resource.
type Source interface {
	FetchPage(ctx context.Context, q listing.Query) (listing.Page, error)
}

type SourceFunc func(ctx context.Context, q listing.Query) (listing.Page, error)

func (f SourceFunc) FetchPage(ctx context.Context, q listing.Query) (listing.Page, error) {
	return f(ctx, q)
}

var ErrPageLimit = errors.New("page limit reached")

type Outcome int

const (
	// OutcomeSkipped means the last committed rectangle already covers the viewport.
	OutcomeSkipped Outcome = iota
	OutcomeCacheHit
	OutcomeFetched
	// OutcomeSuperseded means a newer fetch started while this one ran and the
	// stale guard discarded its results.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeFetched:
		return "fetched"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

var (
	meter         = meters.Meter("fetcher")
	metricPages   = meters.Counter(meter, "fetcher_pages_total", "pages requested from the listings API")
	metricDropped = meters.Counter(meter, "fetcher_items_dropped_total", "listings dropped for unusable coordinates")
	metricSkipped = meters.Counter(meter, "fetcher_skipped_total", "viewport commits answered without a request")
	attrMarkers   = metric.WithAttributes(attribute.String("fetcher", "markers"))
	attrCards     = metric.WithAttributes(attribute.String("fetcher", "cards"))
)
