package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/royalcat/listingmap/debounce"
	"github.com/royalcat/listingmap/fetcher"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/observe"
	"github.com/royalcat/listingmap/readiness"
)

var ErrClosed = errors.New("session closed")

// State is what the rendering layer sees for one kind of data.
type State[T any] struct {
	Items      []T    `json:"items"`
	Loading    bool   `json:"loading"`
	Error      string `json:"error,omitempty"`
	HasMore    bool   `json:"hasMore"`
	TotalCount int    `json:"totalCount"`
}

type Stats struct {
	MarkerCommits   int `json:"markerCommits"`
	MarkerFetches   int `json:"markerFetches"`
	MarkerPages     int `json:"markerPages"`
	MarkerCacheHits int `json:"markerCacheHits"`
	MarkerSkipped   int `json:"markerSkipped"`
	CardRequests    int `json:"cardRequests"`
	Errors          int `json:"errors"`
}

// Session binds the viewport of one map view to its marker and card fetchers.
// Viewport updates are debounced per fetcher; committed viewports are fetched
// in the background and every state change is published to subscribers.
type Session struct {
	markers *fetcher.MarkerFetcher
	cards   *fetcher.CardFetcher
	loader  *readiness.Loader
	log     *slog.Logger

	markerGate *debounce.Gate
	cardGate   *debounce.Gate

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	inflight     int
	idle         chan struct{}
	deferMarkers *georect.Rect
	deferCards   *georect.Rect
	markerState  State[listing.Marker]
	cardState    State[listing.Summary]
	stats        Stats

	// states are stamped under mu so subscribers never see an older
	// snapshot after a newer one
	markerSeq   uint64
	cardSeq     uint64
	markerTopic observe.Sequenced[State[listing.Marker]]
	cardTopic   observe.Sequenced[State[listing.Summary]]

	unsubscribeLoader func()
}

func New(markers *fetcher.MarkerFetcher, cards *fetcher.CardFetcher, opts ...Option) *Session {
	o := loadOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		markers: markers,
		cards:   cards,
		loader:  o.loader,
		log:     o.logger.With("component", "session"),
		ctx:     ctx,
		cancel:  cancel,
		idle:    closedChan(),
	}
	s.cardState.HasMore = true

	markerClassifier, cardClassifier := o.markerGate, o.cardGate
	s.markerGate = debounce.New(o.clock, o.markerDelay, func(r georect.Rect) bool {
		return markerClassifier.IsSignificant(s.markers.ReferenceRect(), r)
	}, s.commitMarkers)
	s.cardGate = debounce.New(o.clock, o.cardDelay, func(r georect.Rect) bool {
		return cardClassifier.IsSignificant(cardReference(s.cards), r)
	}, s.commitCards)

	s.unsubscribeLoader = s.loader.Subscribe(func(st readiness.Status) {
		if st.Ready {
			s.flushDeferred()
		}
	})
	return s
}

func cardReference(c *fetcher.CardFetcher) *georect.Rect {
	r, _, ok := c.Reference()
	if !ok {
		return nil
	}
	return &r
}

// SetViewport feeds a raw viewport update, as emitted while the user pans or
// zooms, into both debounce gates.
func (s *Session) SetViewport(r georect.Rect) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	s.markerGate.Observe(r)
	s.cardGate.Observe(r)
	return nil
}

// Attach subscribes the session to a stream of viewport events.
func (s *Session) Attach(events *observe.Topic[georect.Rect]) (detach func()) {
	return events.Subscribe(func(r georect.Rect) {
		if err := s.SetViewport(r); err != nil && !errors.Is(err, ErrClosed) {
			s.log.Warn("ignoring viewport event", "viewport", r, "error", err)
		}
	})
}

// Flush commits pending viewports without waiting for the debounce delay.
func (s *Session) Flush() {
	s.markerGate.Flush()
	s.cardGate.Flush()
}

// LoadMore appends the next page of cards in the background.
func (s *Session) LoadMore() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cardState.Loading || !s.cardState.HasMore {
		s.mu.Unlock()
		return nil
	}
	s.stats.CardRequests++
	s.cardState.Loading = true
	s.cardState.Error = ""
	state, seq := s.cardState, s.nextCardSeq()
	s.begin()
	s.mu.Unlock()
	s.cardTopic.Publish(seq, state)

	go func() {
		defer s.end()
		err := s.cards.LoadMore(s.ctx)
		s.publishCards(err)
	}()
	return nil
}

func (s *Session) commitMarkers(r georect.Rect) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.loader.Status().Ready {
		s.deferMarkers = &r
		s.mu.Unlock()
		s.log.Debug("loader not ready, deferring marker viewport", "viewport", r)
		return
	}
	s.stats.MarkerCommits++
	s.markerState.Loading = true
	s.markerState.Error = ""
	state, seq := s.markerState, s.nextMarkerSeq()
	s.begin()
	s.mu.Unlock()
	s.markerTopic.Publish(seq, state)

	go func() {
		defer s.end()
		res, err := s.markers.Fetch(s.ctx, r)

		s.mu.Lock()
		switch {
		case err != nil:
			s.stats.Errors++
		case res.Outcome == fetcher.OutcomeFetched || res.Outcome == fetcher.OutcomeSuperseded:
			s.stats.MarkerFetches++
			s.stats.MarkerPages += res.Pages
		case res.Outcome == fetcher.OutcomeCacheHit:
			s.stats.MarkerCacheHits++
		case res.Outcome == fetcher.OutcomeSkipped:
			s.stats.MarkerSkipped++
		}
		s.markerState.Items = s.markers.Markers()
		s.markerState.Loading = false
		s.markerState.HasMore = false
		s.markerState.TotalCount = len(s.markerState.Items)
		if err != nil && !s.closed {
			s.markerState.Error = err.Error()
		}
		state, seq := s.markerState, s.nextMarkerSeq()
		s.mu.Unlock()

		s.markerTopic.Publish(seq, state)
	}()
}

func (s *Session) commitCards(r georect.Rect) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.loader.Status().Ready {
		s.deferCards = &r
		s.mu.Unlock()
		s.log.Debug("loader not ready, deferring card viewport", "viewport", r)
		return
	}
	s.cardState.Loading = true
	s.cardState.Error = ""
	state, seq := s.cardState, s.nextCardSeq()
	s.begin()
	s.mu.Unlock()
	s.cardTopic.Publish(seq, state)

	go func() {
		defer s.end()
		issued, err := s.cards.SetViewport(s.ctx, r)
		if issued {
			s.mu.Lock()
			s.stats.CardRequests++
			s.mu.Unlock()
		}
		s.publishCards(err)
	}()
}

func (s *Session) publishCards(err error) {
	s.mu.Lock()
	// read under s.mu so the last writer publishes the newest list
	cs := s.cards.State()
	if err != nil {
		s.stats.Errors++
	}
	s.cardState = State[listing.Summary]{
		Items:      cs.Items,
		Loading:    cs.Loading,
		HasMore:    cs.HasMore,
		TotalCount: cs.Total,
	}
	if err != nil && !s.closed {
		s.cardState.Error = err.Error()
	}
	state, seq := s.cardState, s.nextCardSeq()
	s.mu.Unlock()

	s.cardTopic.Publish(seq, state)
}

// s.mu must be held.
func (s *Session) nextMarkerSeq() uint64 {
	s.markerSeq++
	return s.markerSeq
}

// s.mu must be held.
func (s *Session) nextCardSeq() uint64 {
	s.cardSeq++
	return s.cardSeq
}

func (s *Session) flushDeferred() {
	s.mu.Lock()
	markers, cards := s.deferMarkers, s.deferCards
	s.deferMarkers, s.deferCards = nil, nil
	s.mu.Unlock()

	// only the latest committed viewport of each kind is kept while waiting
	if markers != nil {
		s.commitMarkers(*markers)
	}
	if cards != nil {
		s.commitCards(*cards)
	}
}

// begin and end track background fetches; s.mu must be held by begin's caller.
func (s *Session) begin() {
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Wait blocks until no fetch is running.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Markers() State[listing.Marker] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerState
}

func (s *Session) Cards() State[listing.Summary] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardState
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) SubscribeMarkers(fn func(State[listing.Marker])) func() {
	return s.markerTopic.Subscribe(fn)
}

func (s *Session) SubscribeCards(fn func(State[listing.Summary])) func() {
	return s.cardTopic.Subscribe(fn)
}

// MarkerReference is the last rectangle markers were fetched for.
func (s *Session) MarkerReference() (georect.Rect, float64, bool) {
	return s.markers.Reference()
}

// Close drops pending commits and cancels running fetches.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.deferMarkers, s.deferCards = nil, nil
	s.mu.Unlock()

	s.unsubscribeLoader()
	s.markerGate.Stop()
	s.cardGate.Stop()
	s.cancel()
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
