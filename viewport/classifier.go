package viewport

import (
	"math"

	"github.com/royalcat/listingmap/georect"
)

const (
	DefaultZoomThreshold = 0.10
	MarkerPanThreshold   = 0.05
	CardPanThreshold     = 0.25
)

type Reason int

const (
	ReasonNone Reason = iota
	ReasonFirstLoad
	ReasonZoom
	ReasonPan
)

func (r Reason) String() string {
	switch r {
	case ReasonFirstLoad:
		return "first_load"
	case ReasonZoom:
		return "zoom"
	case ReasonPan:
		return "pan"
	default:
		return "none"
	}
}

type Decision struct {
	Significant bool
	Reason      Reason
	// AreaChange is |1 - newArea/oldArea|.
	AreaChange float64
	// LatShift and LngShift are the centre displacement as a fraction of the
	// reference height and width.
	LatShift float64
	LngShift float64
	ZoomOld  float64
	ZoomNew  float64
}

// Classifier decides whether a viewport moved far enough from the reference
// to be worth a refetch. Thresholds are tuning knobs, not derived values.
type Classifier struct {
	ZoomThreshold float64
	PanThreshold  float64
}

func Markers() Classifier {
	return Classifier{ZoomThreshold: DefaultZoomThreshold, PanThreshold: MarkerPanThreshold}
}

func Cards() Classifier {
	return Classifier{ZoomThreshold: DefaultZoomThreshold, PanThreshold: CardPanThreshold}
}

// ZoomLevel is a logarithmic proxy for the map zoom derived from the angular
// size of r alone.
func ZoomLevel(r georect.Rect) float64 {
	return math.Log2(360 / math.Max(r.Height(), r.Width()))
}

func (c Classifier) IsSignificant(old *georect.Rect, next georect.Rect) bool {
	return c.Classify(old, next).Significant
}

func (c Classifier) Classify(old *georect.Rect, next georect.Rect) Decision {
	if old == nil {
		return Decision{Significant: true, Reason: ReasonFirstLoad, ZoomNew: ZoomLevel(next)}
	}

	d := Decision{
		ZoomOld: ZoomLevel(*old),
		ZoomNew: ZoomLevel(next),
	}

	oldArea := old.Area()
	if oldArea == 0 {
		// nothing meaningful to compare a degenerate reference against
		d.Significant = next.Area() != 0 || old.Center() != next.Center()
		if d.Significant {
			d.Reason = ReasonZoom
		}
		return d
	}

	d.AreaChange = math.Abs(1 - next.Area()/oldArea)
	if d.AreaChange > c.ZoomThreshold {
		d.Significant = true
		d.Reason = ReasonZoom
		return d
	}

	oldCenter := old.Center()
	newCenter := next.Center()
	d.LatShift = math.Abs(newCenter.Lat-oldCenter.Lat) / old.Height()
	d.LngShift = math.Abs(newCenter.Lng-oldCenter.Lng) / old.Width()
	if d.LatShift > c.PanThreshold || d.LngShift > c.PanThreshold {
		d.Significant = true
		d.Reason = ReasonPan
	}

	return d
}
