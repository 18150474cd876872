package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/internal/meters"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/locate"
	"github.com/royalcat/listingmap/session"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MaxBodySize = 64 * 1000 // 64KB

var (
	meter          = meters.Meter("server")
	metricRequests = meters.Counter(meter, "server_requests_total", "handled http requests")
)

// SessionFactory builds the fetchers and gates of a new browsing session
// over the listings of one kind.
type SessionFactory func(kind listing.Kind) *session.Session

type Server struct {
	newSession SessionFactory
	locator    locate.Fallback
	span       float64
	log        *slog.Logger

	sessions *xsync.MapOf[string, *session.Session]
}

func New(newSession SessionFactory, locator locate.Fallback, span float64, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		newSession: newSession,
		locator:    locator,
		span:       span,
		log:        log.With("component", "server"),
		sessions:   xsync.NewMapOf[string, *session.Session](),
	}
}

func (s *Server) Router() *router.Router {
	r := router.New()
	r.GET("/locate", s.instrument("locate", s.LocateHandler))
	r.POST("/sessions", s.instrument("create_session", s.CreateSessionHandler))
	r.DELETE("/sessions/{id}", s.instrument("delete_session", s.DeleteSessionHandler))
	r.POST("/sessions/{id}/viewport", s.instrument("viewport", s.ViewportHandler))
	r.GET("/sessions/{id}/markers", s.instrument("markers", s.MarkersHandler))
	r.GET("/sessions/{id}/cards", s.instrument("cards", s.CardsHandler))
	r.POST("/sessions/{id}/cards/more", s.instrument("load_more", s.LoadMoreHandler))
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

func Run(ctx context.Context, address string, s *Server) error {
	server := &fasthttp.Server{
		ReadTimeout:        time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            s.Router().Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", "address", address)
		errCh <- server.ListenAndServe(address)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := server.ShutdownWithContext(shutdownCtx)
	s.Close()
	return err
}

// Close ends every open session.
func (s *Server) Close() {
	s.sessions.Range(func(id string, sess *session.Session) bool {
		sess.Close()
		s.sessions.Delete(id)
		return true
	})
}

func (s *Server) instrument(route string, h fasthttp.RequestHandler) fasthttp.RequestHandler {
	attrs := metric.WithAttributes(attribute.String("route", route))
	return func(ctx *fasthttp.RequestCtx) {
		metricRequests.Add(ctx, 1, attrs)
		h(ctx)
	}
}

type locateResponse struct {
	Lat   float64      `json:"lat"`
	Lng   float64      `json:"lng"`
	Error string       `json:"error,omitempty"`
	View  georect.Rect `json:"viewport"`
}

func (s *Server) LocateHandler(ctx *fasthttp.RequestCtx) {
	res := s.locator.Locate(ctx, clientIP(ctx))
	writeJSON(ctx, http.StatusOK, locateResponse{
		Lat:   res.Center.Lat,
		Lng:   res.Center.Lng,
		Error: res.Error,
		View:  locate.ViewportAround(res.Center, s.span),
	})
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	if fwd := ctx.Request.Header.Peek("X-Forwarded-For"); len(fwd) > 0 {
		first, _, _ := strings.Cut(string(fwd), ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return ctx.RemoteIP().String()
}

type createSessionResponse struct {
	ID   string       `json:"id"`
	Kind listing.Kind `json:"kind"`
}

// CreateSessionHandler opens a session; ?kind=commercial selects the
// commercial listings, residential is the default.
func (s *Server) CreateSessionHandler(ctx *fasthttp.RequestCtx) {
	kind, err := listing.ParseKind(string(ctx.QueryArgs().Peek("kind")))
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString(err.Error())
		return
	}

	id := uuid.NewString()
	s.sessions.Store(id, s.newSession(kind))
	s.log.Debug("session created", "session", id, "kind", kind.String())
	writeJSON(ctx, http.StatusCreated, createSessionResponse{ID: id, Kind: kind})
}

func (s *Server) DeleteSessionHandler(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	sess, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		ctx.Response.SetStatusCode(http.StatusNotFound)
		return
	}
	sess.Close()
	s.log.Debug("session closed", "session", id)
	ctx.Response.SetStatusCode(http.StatusNoContent)
}

func (s *Server) ViewportHandler(ctx *fasthttp.RequestCtx) {
	sess, ok := s.lookup(ctx)
	if !ok {
		return
	}

	var view georect.Rect
	if err := json.Unmarshal(ctx.Request.Body(), &view); err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}

	if err := sess.SetViewport(view); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(http.StatusAccepted)
}

func (s *Server) MarkersHandler(ctx *fasthttp.RequestCtx) {
	sess, ok := s.lookup(ctx)
	if !ok {
		return
	}
	writeJSON(ctx, http.StatusOK, sess.Markers())
}

func (s *Server) CardsHandler(ctx *fasthttp.RequestCtx) {
	sess, ok := s.lookup(ctx)
	if !ok {
		return
	}
	writeJSON(ctx, http.StatusOK, sess.Cards())
}

func (s *Server) LoadMoreHandler(ctx *fasthttp.RequestCtx) {
	sess, ok := s.lookup(ctx)
	if !ok {
		return
	}
	if err := sess.LoadMore(); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(http.StatusAccepted)
}

func (s *Server) lookup(ctx *fasthttp.RequestCtx) (*session.Session, bool) {
	id, _ := ctx.UserValue("id").(string)
	sess, ok := s.sessions.Load(id)
	if !ok {
		ctx.Response.SetStatusCode(http.StatusNotFound)
		ctx.Response.SetBodyString("unknown session")
		return nil, false
	}
	return sess, true
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, georect.ErrInvalidRect):
		ctx.Response.SetStatusCode(http.StatusBadRequest)
	case errors.Is(err, session.ErrClosed):
		ctx.Response.SetStatusCode(http.StatusGone)
	default:
		s.log.Error("request failed", "path", string(ctx.Path()), "error", err)
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
	}
	ctx.Response.SetBodyString(err.Error())
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	out, err := json.Marshal(v)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}

	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBody(out)
}
