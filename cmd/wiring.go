package main

import (
	"log/slog"

	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/config"
	"github.com/royalcat/listingmap/fetcher"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/readiness"
	"github.com/royalcat/listingmap/session"
	"github.com/royalcat/listingmap/spatialcache"
	"github.com/royalcat/listingmap/viewport"
)

type sources struct {
	markers fetcher.Source
	cards   fetcher.Source
}

// sessionFactory builds sessions that each own their fetchers and cache.
// Sessions of a kind read from that kind's resources.
func sessionFactory(cfg *config.Config, src map[listing.Kind]sources, c clock.Clock, loader *readiness.Loader, log *slog.Logger) func(listing.Kind) *session.Session {
	markerClassifier := viewport.Classifier{ZoomThreshold: cfg.ZoomThreshold, PanThreshold: cfg.Markers.PanThreshold}
	cardClassifier := viewport.Classifier{ZoomThreshold: cfg.ZoomThreshold, PanThreshold: cfg.Cards.PanThreshold}

	return func(kind listing.Kind) *session.Session {
		log := log.With("kind", kind.String())
		cache := spatialcache.New[listing.Marker](
			spatialcache.WithName("markers"),
			spatialcache.WithSize(cfg.Cache.Size),
			spatialcache.WithExpiry(cfg.Cache.Expiry),
			spatialcache.WithClock(c),
			spatialcache.WithLogger(log),
		)
		markers := fetcher.NewMarkerFetcher(src[kind].markers, cache,
			fetcher.WithKind(kind),
			fetcher.WithPageSize(cfg.Markers.PageSize),
			fetcher.WithMaxPages(cfg.Markers.MaxPages),
			fetcher.WithExtension(cfg.Markers.Extension),
			fetcher.WithDefaultCategory(cfg.Markers.Category),
			fetcher.WithStaleGuard(cfg.Session.StaleGuard),
			fetcher.WithLogger(log),
		)
		cards := fetcher.NewCardFetcher(src[kind].cards,
			fetcher.WithPageSize(cfg.Cards.PageSize),
			fetcher.WithClassifier(cardClassifier),
			fetcher.WithStaleGuard(cfg.Session.StaleGuard),
			fetcher.WithLogger(log),
		)
		return session.New(markers, cards,
			session.WithClock(c),
			session.WithMarkerDelay(cfg.Markers.Debounce),
			session.WithCardDelay(cfg.Cards.Debounce),
			session.WithMarkerClassifier(markerClassifier),
			session.WithCardClassifier(cardClassifier),
			session.WithLoader(loader),
			session.WithLogger(log),
		)
	}
}
