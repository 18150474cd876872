package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/viewport"
)

type CardState struct {
	Items   []listing.Summary
	Page    int
	HasMore bool
	Total   int
	Loading bool
}

// CardFetcher pages listing cards for the exact viewport one page at a time.
// A significant viewport change fetches page 1 and replaces the list; LoadMore
// appends the next page.
type CardFetcher struct {
	source     Source
	classifier viewport.Classifier
	pageSize   int
	staleGuard bool
	log        *slog.Logger

	mu         sync.Mutex
	ref        *georect.Rect
	refZoom    float64
	page       int
	items      []listing.Summary
	seen       map[string]struct{}
	hasMore    bool
	total      int
	inflight   int
	generation uint64
}

func NewCardFetcher(source Source, opts ...Option) *CardFetcher {
	o := loadOptions(DefaultCardPageSize, opts...)
	classifier := viewport.Cards()
	if o.classifier != nil {
		classifier = *o.classifier
	}
	return &CardFetcher{
		source:     source,
		classifier: classifier,
		pageSize:   o.pageSize,
		staleGuard: o.staleGuard,
		log:        o.logger.With("component", "card_fetcher"),
		seen:       map[string]struct{}{},
		hasMore:    true,
	}
}

// SetViewport commits a viewport. It reports whether a request was issued;
// viewports too close to the last fetched one are ignored.
func (c *CardFetcher) SetViewport(ctx context.Context, view georect.Rect) (bool, error) {
	c.mu.Lock()
	decision := c.classifier.Classify(c.ref, view)
	if !decision.Significant {
		c.mu.Unlock()
		metricSkipped.Add(ctx, 1, attrCards)
		c.log.Debug("viewport change does not require new data fetch", "viewport", view)
		return false, nil
	}
	c.generation++
	gen := c.generation
	c.inflight++
	c.mu.Unlock()

	c.log.Debug("significant viewport change", "viewport", view, "reason", decision.Reason.String())
	data, err := c.fetch(ctx, view, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if err != nil {
		c.log.Error("error fetching projects", "error", err)
		return true, err
	}
	if c.staleGuard && gen != c.generation {
		c.log.Info("discarding superseded card page", "generation", gen, "latest", c.generation)
		return true, nil
	}

	c.items = c.items[:0]
	clear(c.seen)
	c.appendPage(data)
	c.page = 1
	c.ref = &view
	c.refZoom = viewport.ZoomLevel(view)

	c.log.Debug("received projects", "count", len(data.Projects), "total", data.Total)
	return true, nil
}

// LoadMore fetches the next page. It is a no-op while a request is running,
// when the source reported no further pages or before any viewport was set.
func (c *CardFetcher) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.ref == nil || c.inflight > 0 || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	// next page of the viewport the current list was built for
	view := *c.ref
	next := c.page + 1
	gen := c.generation
	c.inflight++
	c.mu.Unlock()

	data, err := c.fetch(ctx, view, next)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if err != nil {
		c.log.Error("error fetching projects", "page", next, "error", err)
		return err
	}
	if gen != c.generation {
		// the viewport moved while this page was in flight
		return nil
	}

	c.appendPage(data)
	c.page = next
	return nil
}

func (c *CardFetcher) fetch(ctx context.Context, view georect.Rect, page int) (listing.Page, error) {
	data, err := c.source.FetchPage(ctx, listing.Query{Page: page, Limit: c.pageSize, Bounds: &view})
	if err != nil {
		return listing.Page{}, fmt.Errorf("fetch projects: %w", err)
	}
	metricPages.Add(ctx, 1, attrCards)
	if len(data.Rejected) > 0 {
		metricDropped.Add(ctx, int64(len(data.Rejected)), attrCards)
		for _, r := range data.Rejected {
			c.log.Warn("malformed project", "page", page, "id", r.ID, "index", r.Index, "error", r.Err)
		}
	}
	return data, nil
}

func (c *CardFetcher) appendPage(data listing.Page) {
	for _, p := range data.Projects {
		s := listing.NewSummary(p)
		if s.ID != "" {
			if _, dup := c.seen[s.ID]; dup {
				continue
			}
			c.seen[s.ID] = struct{}{}
		}
		c.items = append(c.items, s)
	}
	c.hasMore = data.HasMore
	c.total = data.Total
}

func (c *CardFetcher) State() CardState {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]listing.Summary, len(c.items))
	copy(items, c.items)
	return CardState{
		Items:   items,
		Page:    c.page,
		HasMore: c.hasMore,
		Total:   c.total,
		Loading: c.inflight > 0,
	}
}

func (c *CardFetcher) Reference() (georect.Rect, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ref == nil {
		return georect.Rect{}, 0, false
	}
	return *c.ref, c.refZoom, true
}
