package georect

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var ErrInvalidRect = errors.New("invalid rectangle")

// DefaultExtension is the margin, as a fraction of each span, added on every side by Extend.
const DefaultExtension = 0.2

// LatLng is a position in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the position in orb order (lng, lat).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Rect is an axis-aligned lat/lng rectangle. The zero value is the degenerate
// rectangle at (0, 0).
type Rect struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

func New(minLat, maxLat, minLng, maxLng float64) (Rect, error) {
	r := Rect{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}
	return r, nil
}

func FromBound(b orb.Bound) Rect {
	return Rect{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}
}

func (r Rect) Validate() error {
	for _, v := range [...]float64{r.MinLat, r.MaxLat, r.MinLng, r.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non finite bound in %s", ErrInvalidRect, r)
		}
	}
	if r.MinLat > r.MaxLat {
		return fmt.Errorf("%w: minLat %g > maxLat %g", ErrInvalidRect, r.MinLat, r.MaxLat)
	}
	if r.MinLng > r.MaxLng {
		return fmt.Errorf("%w: minLng %g > maxLng %g", ErrInvalidRect, r.MinLng, r.MaxLng)
	}
	return nil
}

func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.MinLng, r.MinLat},
		Max: orb.Point{r.MaxLng, r.MaxLat},
	}
}

func (r Rect) Height() float64 { return r.MaxLat - r.MinLat }
func (r Rect) Width() float64  { return r.MaxLng - r.MinLng }
func (r Rect) Area() float64   { return r.Height() * r.Width() }

func (r Rect) Center() LatLng {
	return LatLng{
		Lat: (r.MinLat + r.MaxLat) / 2,
		Lng: (r.MinLng + r.MaxLng) / 2,
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("{lat %g..%g, lng %g..%g}", r.MinLat, r.MaxLat, r.MinLng, r.MaxLng)
}

// Contains reports whether a fully encloses b. Shared edges count as inside.
func Contains(a, b Rect) bool {
	bound := a.Bound()
	inner := b.Bound()
	return bound.Contains(inner.Min) && bound.Contains(inner.Max)
}

func ContainsPoint(r Rect, lat, lng float64) bool {
	return r.Bound().Contains(orb.Point{lng, lat})
}

// Extend grows every span of r by factor on both sides.
func Extend(r Rect, factor float64) Rect {
	latExt := r.Height() * factor
	lngExt := r.Width() * factor
	return Rect{
		MinLat: r.MinLat - latExt,
		MaxLat: r.MaxLat + latExt,
		MinLng: r.MinLng - lngExt,
		MaxLng: r.MaxLng + lngExt,
	}
}

// Around returns the rectangle of the given spans centred on c.
func Around(c LatLng, latSpan, lngSpan float64) Rect {
	return Rect{
		MinLat: c.Lat - latSpan/2,
		MaxLat: c.Lat + latSpan/2,
		MinLng: c.Lng - lngSpan/2,
		MaxLng: c.Lng + lngSpan/2,
	}
}
