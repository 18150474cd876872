package listing

import (
	"strconv"

	"github.com/royalcat/listingmap/georect"
)

// Query addresses one page of a remote resource. Bounds is nil for
// non-spatial resources.
type Query struct {
	Page   int
	Limit  int
	Bounds *georect.Rect
}

func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Params returns the query string parameters in a stable order.
func (q Query) Params() [][2]string {
	params := make([][2]string, 0, 7)
	if q.Bounds != nil {
		params = append(params,
			[2]string{"minLat", formatFloat(q.Bounds.MinLat)},
			[2]string{"maxLat", formatFloat(q.Bounds.MaxLat)},
			[2]string{"minLng", formatFloat(q.Bounds.MinLng)},
			[2]string{"maxLng", formatFloat(q.Bounds.MaxLng)},
		)
	}
	params = append(params,
		[2]string{"page", strconv.Itoa(q.Page)},
		[2]string{"limit", strconv.Itoa(q.Limit)},
		[2]string{"offset", strconv.Itoa(q.Offset())},
	)
	return params
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
