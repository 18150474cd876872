package spatialcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/internal/meters"
	"github.com/royalcat/listingmap/listing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter         = meters.Meter("spatialcache")
	metricHits    = meters.Counter(meter, "spatialcache_hits_total", "containment lookups answered from cache")
	metricMisses  = meters.Counter(meter, "spatialcache_misses_total", "containment lookups with no covering entry")
	metricEvicted = meters.Counter(meter, "spatialcache_evictions_total", "entries dropped by size or expiry")
)

type Entry[T listing.Item] struct {
	Rect      georect.Rect
	Items     []T
	Total     int
	HasMore   bool
	Timestamp time.Time
}

// Cache holds the results of exhaustive fetches keyed by the rectangle they
// cover. It is append only: entries leave by expiry or by FIFO eviction once
// the size bound is exceeded, never by access recency. Overlapping entries
// coexist.
type Cache[T listing.Item] struct {
	mu      sync.Mutex
	entries []Entry[T]

	size   int
	expiry time.Duration
	clock  clock.Clock
	log    *slog.Logger
	attrs  metric.MeasurementOption
}

func New[T listing.Item](opts ...Option) *Cache[T] {
	o := loadOptions(opts...)
	return &Cache[T]{
		entries: make([]Entry[T], 0, o.size+1),
		size:    o.size,
		expiry:  o.expiry,
		clock:   o.clock,
		log:     o.logger.With("component", "spatialcache", "cache", o.name),
		attrs:   metric.WithAttributes(attribute.String("cache", o.name)),
	}
}

// Lookup returns the items of the first entry, in insertion order, whose
// rectangle contains q, filtered down to the items positioned inside q.
func (c *Cache[T]) Lookup(q georect.Rect) ([]T, bool) {
	e, ok := c.LookupEntry(q)
	if !ok {
		return nil, false
	}
	return e.Items, true
}

// LookupEntry is Lookup keeping the metadata of the matching entry. The
// returned entry's Rect is q and its Items are a fresh slice.
func (c *Cache[T]) LookupEntry(q georect.Rect) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	for _, e := range c.entries {
		if !georect.Contains(e.Rect, q) {
			continue
		}

		items := make([]T, 0, len(e.Items))
		for _, item := range e.Items {
			pos := item.Location()
			if georect.ContainsPoint(q, pos.Lat, pos.Lng) {
				items = append(items, item)
			}
		}

		metricHits.Add(context.Background(), 1, c.attrs)
		c.log.Debug("cache hit", "query", q, "entry", e.Rect, "items", len(items), "cached", len(e.Items))
		return Entry[T]{
			Rect:      q,
			Items:     items,
			Total:     e.Total,
			HasMore:   e.HasMore,
			Timestamp: e.Timestamp,
		}, true
	}

	metricMisses.Add(context.Background(), 1, c.attrs)
	return Entry[T]{}, false
}

func (c *Cache[T]) Insert(rect georect.Rect, items []T, total int, hasMore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, Entry[T]{
		Rect:      rect,
		Items:     items,
		Total:     total,
		HasMore:   hasMore,
		Timestamp: c.clock.Now(),
	})

	if over := len(c.entries) - c.size; over > 0 {
		// oldest first
		clear(c.entries[:over])
		c.entries = append(c.entries[:0], c.entries[over:]...)
		metricEvicted.Add(context.Background(), int64(over), c.attrs)
		c.log.Debug("evicted oldest entries", "count", over)
	}
}

// Len counts entries including expired ones not purged yet.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot of the live entries, oldest first.
func (c *Cache[T]) Entries() []Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()
	out := make([]Entry[T], len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cache[T]) purgeExpired() {
	now := c.clock.Now()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.Timestamp) < c.expiry {
			kept = append(kept, e)
		}
	}
	if dropped := len(c.entries) - len(kept); dropped > 0 {
		clear(c.entries[len(kept):])
		metricEvicted.Add(context.Background(), int64(dropped), c.attrs)
		c.log.Debug("purged expired entries", "count", dropped)
	}
	c.entries = kept
}
