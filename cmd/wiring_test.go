package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/config"
	"github.com/royalcat/listingmap/fetcher"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/readiness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFactoryKinds(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	var residential, commercial atomic.Int64
	one := func(counter *atomic.Int64) fetcher.Source {
		return fetcher.SourceFunc(func(ctx context.Context, q listing.Query) (listing.Page, error) {
			counter.Add(1)
			c := q.Bounds.Center()
			return listing.Page{
				Projects: []listing.Project{{
					Rera:         "C1",
					Coordinates:  fmt.Sprintf("%g,%g", c.Lat, c.Lng),
					ProjectType:  []string{"Office"},
					AboutProject: "Grade A offices",
				}},
				Total: 1,
			}, nil
		})
	}
	src := map[listing.Kind]sources{
		listing.KindResidential: {markers: one(&residential), cards: one(&residential)},
		listing.KindCommercial:  {markers: one(&commercial), cards: one(&commercial)},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	newSession := sessionFactory(cfg, src, clock.NewFake(time.Unix(0, 0)), readiness.Ready(), log)

	sess := newSession(listing.KindCommercial)
	defer sess.Close()
	require.NoError(t, sess.SetViewport(georect.Rect{MinLat: 2, MaxLat: 8, MinLng: 2, MaxLng: 8}))
	sess.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	assert.Zero(t, residential.Load())
	assert.Positive(t, commercial.Load())

	markers := sess.Markers().Items
	require.Len(t, markers, 1)
	assert.Equal(t, "Grade A offices", markers[0].Category)
}
