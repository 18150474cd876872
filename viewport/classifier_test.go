package viewport_test

import (
	"math"
	"testing"

	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/viewport"
)

// shrink scales the area of r by (1 - fraction) around its centre.
func shrink(r georect.Rect, fraction float64) georect.Rect {
	k := math.Sqrt(1 - fraction)
	return georect.Around(r.Center(), r.Height()*k, r.Width()*k)
}

func shift(r georect.Rect, latFrac, lngFrac float64) georect.Rect {
	return georect.Rect{
		MinLat: r.MinLat + r.Height()*latFrac,
		MaxLat: r.MaxLat + r.Height()*latFrac,
		MinLng: r.MinLng + r.Width()*lngFrac,
		MaxLng: r.MaxLng + r.Width()*lngFrac,
	}
}

func TestFirstLoadIsSignificant(t *testing.T) {
	d := viewport.Markers().Classify(nil, georect.Rect{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1})
	if !d.Significant || d.Reason != viewport.ReasonFirstLoad {
		t.Fatalf("expected first load, got %+v", d)
	}
}

func TestZoomThreshold(t *testing.T) {
	ref := georect.Rect{MinLat: 10, MaxLat: 20, MinLng: 30, MaxLng: 50}

	for _, c := range []viewport.Classifier{viewport.Markers(), viewport.Cards()} {
		if d := c.Classify(&ref, shrink(ref, 0.15)); !d.Significant || d.Reason != viewport.ReasonZoom {
			t.Fatalf("15%% shrink should be a significant zoom, got %+v", d)
		}
		if d := c.Classify(&ref, shrink(ref, 0.05)); d.Significant {
			t.Fatalf("5%% shrink should not be significant, got %+v", d)
		}
	}
}

func TestPanThresholds(t *testing.T) {
	ref := georect.Rect{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}

	tests := []struct {
		name       string
		latFrac    float64
		lngFrac    float64
		markerWant bool
		cardWant   bool
	}{
		{"still", 0, 0, false, false},
		{"tiny lat", 0.03, 0, false, false},
		{"small lng", 0, 0.1, true, false},
		{"medium lat", 0.2, 0, true, false},
		{"large lng", 0, 0.3, true, true},
		{"large diagonal", -0.3, -0.3, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := shift(ref, tt.latFrac, tt.lngFrac)
			if got := viewport.Markers().IsSignificant(&ref, next); got != tt.markerWant {
				t.Errorf("marker classifier = %v, want %v", got, tt.markerWant)
			}
			if got := viewport.Cards().IsSignificant(&ref, next); got != tt.cardWant {
				t.Errorf("card classifier = %v, want %v", got, tt.cardWant)
			}
		})
	}
}

func TestZoomLevel(t *testing.T) {
	world := georect.Rect{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
	if z := viewport.ZoomLevel(world); z != 0 {
		t.Fatalf("world zoom should be 0, got %v", z)
	}
	r := georect.Rect{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 45}
	if z := viewport.ZoomLevel(r); math.Abs(z-3) > 1e-9 {
		t.Fatalf("expected zoom 3, got %v", z)
	}
}

func TestDegenerateReference(t *testing.T) {
	ref := georect.Rect{MinLat: 1, MaxLat: 1, MinLng: 2, MaxLng: 2}
	if !viewport.Markers().IsSignificant(&ref, georect.Rect{MinLat: 0, MaxLat: 2, MinLng: 1, MaxLng: 3}) {
		t.Fatal("growing out of a point reference should be significant")
	}
	if viewport.Markers().IsSignificant(&ref, ref) {
		t.Fatal("identical degenerate rectangles should not be significant")
	}
}

func BenchmarkClassify(b *testing.B) {
	ref := georect.Rect{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}
	next := shift(ref, 0.01, 0.02)
	c := viewport.Markers()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(&ref, next)
	}
}
