package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/royalcat/listingmap/georect"
)

var (
	ErrInvalidIP   = errors.New("invalid ip address")
	ErrUnavailable = errors.New("location information is unavailable")
)

// Ahmedabad
var DefaultCenter = georect.LatLng{Lat: 23.0225, Lng: 72.5714}

// DefaultSpan is the side, in degrees, of the initial viewport around a centre.
const DefaultSpan = 0.2

type Locator interface {
	Locate(ctx context.Context, ip string) (georect.LatLng, error)
}

// GeoIP resolves client addresses against a MaxMind city database.
type GeoIP struct {
	db *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &GeoIP{db: db}, nil
}

func (g *GeoIP) Locate(ctx context.Context, ip string) (georect.LatLng, error) {
	if err := ctx.Err(); err != nil {
		return georect.LatLng{}, err
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		return georect.LatLng{}, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	city, err := g.db.City(addr)
	if err != nil {
		return georect.LatLng{}, fmt.Errorf("lookup %s: %w", ip, err)
	}
	// the database answers unknown networks with an empty record
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return georect.LatLng{}, ErrUnavailable
	}

	return georect.LatLng{Lat: city.Location.Latitude, Lng: city.Location.Longitude}, nil
}

func (g *GeoIP) Close() error {
	return g.db.Close()
}

type Result struct {
	Center georect.LatLng `json:"center"`
	// Error is a display message set when Center is the fallback.
	Error string `json:"error,omitempty"`
}

// Fallback never fails: when the locator is missing or errors it answers with
// the default centre and a message for the user.
type Fallback struct {
	Locator Locator
	Default georect.LatLng
	Log     *slog.Logger
}

func (f Fallback) Locate(ctx context.Context, ip string) Result {
	log := f.Log
	if log == nil {
		log = slog.Default()
	}

	if f.Locator == nil {
		return Result{Center: f.Default, Error: "Location is not supported on this server."}
	}

	center, err := f.Locator.Locate(ctx, ip)
	if err != nil {
		log.Warn("error getting location, using default location", "ip", ip, "error", err)
		return Result{Center: f.Default, Error: message(err)}
	}
	return Result{Center: center}
}

func message(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrInvalidIP):
		return "Location information is unavailable."
	case errors.Is(err, context.DeadlineExceeded):
		return "Location request timed out."
	default:
		return "An unknown error occurred while requesting location."
	}
}

// ViewportAround is the initial viewport of a map centred on c.
func ViewportAround(c georect.LatLng, span float64) georect.Rect {
	if span <= 0 {
		span = DefaultSpan
	}
	return georect.Around(c, span, span)
}
