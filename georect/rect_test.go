package georect_test

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/listingmap/georect"
)

func TestContains(t *testing.T) {
	outer := georect.Rect{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}

	tests := []struct {
		name  string
		inner georect.Rect
		want  bool
	}{
		{"strictly inside", georect.Rect{MinLat: 2, MaxLat: 8, MinLng: 2, MaxLng: 8}, true},
		{"equal", outer, true},
		{"shared edge", georect.Rect{MinLat: 0, MaxLat: 5, MinLng: 5, MaxLng: 10}, true},
		{"north beyond", georect.Rect{MinLat: 0, MaxLat: 11, MinLng: 0, MaxLng: 10}, false},
		{"south beyond", georect.Rect{MinLat: -1, MaxLat: 10, MinLng: 0, MaxLng: 10}, false},
		{"east beyond", georect.Rect{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 11}, false},
		{"west beyond", georect.Rect{MinLat: 0, MaxLat: 10, MinLng: -1, MaxLng: 10}, false},
		{"disjoint", georect.Rect{MinLat: 20, MaxLat: 30, MinLng: 20, MaxLng: 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := georect.Contains(outer, tt.inner); got != tt.want {
				t.Fatalf("Contains(%s, %s) = %v, want %v", outer, tt.inner, got, tt.want)
			}
		})
	}
}

func TestContainsByConstruction(t *testing.T) {
	for i := 0; i < 100; i++ {
		f := float64(i)
		b := georect.Rect{MinLat: f - 3, MaxLat: f + 2, MinLng: -f, MaxLng: f/2 + 1}
		a := georect.Rect{MinLat: b.MinLat - f/10, MaxLat: b.MaxLat + 0.5, MinLng: b.MinLng, MaxLng: b.MaxLng + f}
		if !georect.Contains(a, b) {
			t.Fatalf("%s should contain %s", a, b)
		}

		grown := []georect.Rect{
			{MinLat: a.MinLat - 1, MaxLat: a.MaxLat, MinLng: a.MinLng, MaxLng: a.MaxLng},
			{MinLat: a.MinLat, MaxLat: a.MaxLat + 1, MinLng: a.MinLng, MaxLng: a.MaxLng},
			{MinLat: a.MinLat, MaxLat: a.MaxLat, MinLng: a.MinLng - 1, MaxLng: a.MaxLng},
			{MinLat: a.MinLat, MaxLat: a.MaxLat, MinLng: a.MinLng, MaxLng: a.MaxLng + 1},
		}
		for _, g := range grown {
			if georect.Contains(a, g) {
				t.Fatalf("%s should not contain %s", a, g)
			}
		}
	}
}

func TestContainsPoint(t *testing.T) {
	r := georect.Rect{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4}
	if !georect.ContainsPoint(r, 1.5, 3.5) {
		t.Fatal("centre should be inside")
	}
	if !georect.ContainsPoint(r, 1, 4) {
		t.Fatal("corner should be inside")
	}
	// lat and lng must not be swapped
	if georect.ContainsPoint(r, 3.5, 1.5) {
		t.Fatal("swapped point should be outside")
	}
}

func TestExtend(t *testing.T) {
	r := georect.Rect{MinLat: 2, MaxLat: 8, MinLng: 2, MaxLng: 8}
	got := georect.Extend(r, georect.DefaultExtension)
	want := georect.Rect{MinLat: 0.8, MaxLat: 9.2, MinLng: 0.8, MaxLng: 9.2}

	const eps = 1e-9
	if math.Abs(got.MinLat-want.MinLat) > eps || math.Abs(got.MaxLat-want.MaxLat) > eps ||
		math.Abs(got.MinLng-want.MinLng) > eps || math.Abs(got.MaxLng-want.MaxLng) > eps {
		t.Fatalf("Extend = %s, want %s", got, want)
	}
	if r.MinLat != 2 {
		t.Fatal("Extend must not modify its input")
	}
	if !georect.Contains(got, r) {
		t.Fatal("extended rectangle should contain the input rectangle")
	}
}

func TestExtendAsymmetric(t *testing.T) {
	r := georect.Rect{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 10}
	got := georect.Extend(r, 0.5)
	if got.MinLat != -0.5 || got.MaxLat != 1.5 || got.MinLng != -5 || got.MaxLng != 15 {
		t.Fatalf("unexpected extension %s", got)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := georect.New(1, 0, 0, 1); !errors.Is(err, georect.ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect for inverted lat, got %v", err)
	}
	if _, err := georect.New(0, 1, 1, 0); !errors.Is(err, georect.ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect for inverted lng, got %v", err)
	}
	if _, err := georect.New(math.NaN(), 1, 0, 1); !errors.Is(err, georect.ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect for NaN, got %v", err)
	}
	r, err := georect.New(0, 1, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if r.Height() != 1 || r.Width() != 2 || r.Center() != (georect.LatLng{Lat: 0.5, Lng: 3}) {
		t.Fatalf("unexpected derived values for %s", r)
	}
}

func TestBoundRoundTrip(t *testing.T) {
	r := georect.Rect{MinLat: -33.9, MaxLat: -33.8, MinLng: 151.1, MaxLng: 151.3}
	b := r.Bound()
	if b.Min != (orb.Point{151.1, -33.9}) || b.Max != (orb.Point{151.3, -33.8}) {
		t.Fatalf("unexpected bound %v", b)
	}
	if georect.FromBound(b) != r {
		t.Fatalf("round trip mismatch: %s", georect.FromBound(b))
	}
}

func TestAround(t *testing.T) {
	r := georect.Around(georect.LatLng{Lat: 18.5, Lng: 73.8}, 0.2, 0.4)
	if c := r.Center(); math.Abs(c.Lat-18.5) > 1e-9 || math.Abs(c.Lng-73.8) > 1e-9 {
		t.Fatalf("unexpected centre %v", c)
	}
	if math.Abs(r.Height()-0.2) > 1e-9 || math.Abs(r.Width()-0.4) > 1e-9 {
		t.Fatalf("unexpected spans %s", r)
	}
}
