package listing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/royalcat/listingmap/georect"
)

var (
	ErrMissingCoordinates = errors.New("missing coordinates")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

const DefaultMarkerCategory = "Residential Project"

// Item is anything with a stable id and a position; the id is the listing's
// registration number.
type Item interface {
	Key() string
	Location() georect.LatLng
}

// Marker is a map pin.
type Marker struct {
	ID         string         `json:"id"`
	Position   georect.LatLng `json:"position"`
	Title      string         `json:"title"`
	CoverImage string         `json:"coverImage"`
	Category   string         `json:"projectType"`
}

func (m Marker) Key() string              { return m.ID }
func (m Marker) Location() georect.LatLng { return m.Position }

// ParseCoordinates parses a "<lat>,<lng>" string.
func ParseCoordinates(s string) (georect.LatLng, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return georect.LatLng{}, ErrMissingCoordinates
	}

	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return georect.LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return georect.LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return georect.LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return georect.LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}

	return georect.LatLng{Lat: lat, Lng: lng}, nil
}

// NewMarker converts a project into a map pin labelled by the kind's
// category rule. Projects without usable coordinates are rejected with
// ErrMissingCoordinates or ErrInvalidCoordinates.
func NewMarker(p Project, kind Kind, fallback string) (Marker, error) {
	pos, err := ParseCoordinates(p.Coordinates)
	if err != nil {
		return Marker{}, err
	}

	category := kind.Category(p, fallback)

	return Marker{
		ID:         p.Rera,
		Position:   pos,
		Title:      p.Name,
		CoverImage: p.CoverPhotoLink,
		Category:   category,
	}, nil
}
