package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/liveset"
	"github.com/royalcat/listingmap/spatialcache"
	"github.com/royalcat/listingmap/viewport"
)

type MarkerResult struct {
	Outcome Outcome
	// Target is the buffered rectangle the fetch was made for.
	Target  georect.Rect
	Pages   int
	Items   int
	Dropped int
	Total   int
}

// MarkerFetcher keeps the map pins for a browsing session. Pins are fetched
// for the viewport extended by a buffer margin, exhaustively paginated, cached
// by rectangle and merged into the live set by id.
type MarkerFetcher struct {
	source     Source
	cache      *spatialcache.Cache[listing.Marker]
	pageSize   int
	maxPages   int
	extension  float64
	kind       listing.Kind
	category   string
	staleGuard bool
	log        *slog.Logger

	mu         sync.Mutex
	live       *liveset.Set[listing.Marker]
	ref        *georect.Rect
	refZoom    float64
	generation uint64
}

func NewMarkerFetcher(source Source, cache *spatialcache.Cache[listing.Marker], opts ...Option) *MarkerFetcher {
	o := loadOptions(DefaultMarkerPageSize, opts...)
	if cache == nil {
		cache = spatialcache.New[listing.Marker](spatialcache.WithName("markers"), spatialcache.WithLogger(o.logger))
	}
	return &MarkerFetcher{
		source:     source,
		cache:      cache,
		pageSize:   o.pageSize,
		maxPages:   o.maxPages,
		extension:  o.extension,
		kind:       o.kind,
		category:   o.category,
		staleGuard: o.staleGuard,
		log:        o.logger.With("component", "marker_fetcher"),
		live:       liveset.New[listing.Marker](),
	}
}

// Fetch brings the live set up to date for a committed viewport. On error the
// live set, the cache and the reference rectangle are left untouched.
func (f *MarkerFetcher) Fetch(ctx context.Context, view georect.Rect) (MarkerResult, error) {
	target := georect.Extend(view, f.extension)
	log := f.log.With("viewport", view, "target", target)

	f.mu.Lock()
	if f.ref != nil && georect.Contains(*f.ref, view) {
		f.mu.Unlock()
		metricSkipped.Add(ctx, 1, attrMarkers)
		log.Debug("viewport within previous extended bounds, skipping fetch")
		return MarkerResult{Outcome: OutcomeSkipped, Target: target}, nil
	}

	if entry, ok := f.cache.LookupEntry(target); ok {
		// merge rather than replace so revisited pins do not flicker
		f.live.Merge(entry.Items)
		f.mu.Unlock()
		metricSkipped.Add(ctx, 1, attrMarkers)
		log.Debug("using cached markers", "items", len(entry.Items))
		return MarkerResult{Outcome: OutcomeCacheHit, Target: target, Items: len(entry.Items), Total: entry.Total}, nil
	}

	f.generation++
	gen := f.generation
	f.mu.Unlock()

	log.Debug("fetching markers for extended viewport", "generation", gen)
	res, items, err := f.collect(ctx, target, log)
	if err != nil {
		log.Error("error fetching markers", "error", err)
		return MarkerResult{}, err
	}

	f.cache.Insert(target, items, res.Total, false)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.staleGuard && gen != f.generation {
		log.Info("discarding superseded marker fetch", "generation", gen, "latest", f.generation)
		res.Outcome = OutcomeSuperseded
		return res, nil
	}

	removed := f.live.Retain(target)
	f.live.Merge(items)
	f.ref = &target
	f.refZoom = viewport.ZoomLevel(target)

	log.Debug("finished fetching all pages",
		"pages", res.Pages,
		"markers", len(items),
		"dropped", res.Dropped,
		"removed", removed,
		"live", f.live.Len(),
	)
	return res, nil
}

// collect pages through the source strictly in order until it reports no more pages.
func (f *MarkerFetcher) collect(ctx context.Context, target georect.Rect, log *slog.Logger) (MarkerResult, []listing.Marker, error) {
	res := MarkerResult{Outcome: OutcomeFetched, Target: target}
	var markers []listing.Marker

	for page, hasMore := 1, true; hasMore; page++ {
		if f.maxPages > 0 && page > f.maxPages {
			return MarkerResult{}, nil, fmt.Errorf("fetch map markers: %w after %d pages", ErrPageLimit, f.maxPages)
		}

		data, err := f.source.FetchPage(ctx, listing.Query{Page: page, Limit: f.pageSize, Bounds: &target})
		if err != nil {
			return MarkerResult{}, nil, fmt.Errorf("fetch map markers: %w", err)
		}
		metricPages.Add(ctx, 1, attrMarkers)
		res.Pages++

		for _, r := range data.Rejected {
			res.Dropped++
			log.Warn("malformed project", "id", r.ID, "index", r.Index, "error", r.Err)
		}
		for _, p := range data.Projects {
			m, err := listing.NewMarker(p, f.kind, f.category)
			if err != nil {
				res.Dropped++
				msg := "invalid coordinates for project"
				if errors.Is(err, listing.ErrMissingCoordinates) {
					msg = "missing coordinates for project"
				}
				log.Warn(msg, "id", p.Rera, "name", p.Name)
				continue
			}
			markers = append(markers, m)
		}

		log.Debug("received marker page", "page", page, "projects", len(data.Projects), "total_valid", len(markers))
		res.Total = data.Total
		hasMore = data.HasMore
	}

	if res.Dropped > 0 {
		metricDropped.Add(ctx, int64(res.Dropped), attrMarkers)
	}
	res.Items = len(markers)
	return res, markers, nil
}

// Markers returns the live pins ordered by id.
func (f *MarkerFetcher) Markers() []listing.Marker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live.Items()
}

// Reference returns the last committed rectangle and its zoom proxy.
func (f *MarkerFetcher) Reference() (georect.Rect, float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ref == nil {
		return georect.Rect{}, 0, false
	}
	return *f.ref, f.refZoom, true
}

// ReferenceRect is Reference as a pointer, nil before the first committed fetch.
func (f *MarkerFetcher) ReferenceRect() *georect.Rect {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ref == nil {
		return nil
	}
	r := *f.ref
	return &r
}

func (f *MarkerFetcher) Cache() *spatialcache.Cache[listing.Marker] {
	return f.cache
}
