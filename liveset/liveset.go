package liveset

import (
	"github.com/google/btree"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
)

const degree = 16

type entry[T listing.Item] struct {
	key  string
	item T
}

func less[T listing.Item](a, b entry[T]) bool {
	return a.key < b.key
}

// Set is the id-keyed collection of items currently shown. Merging the same
// id twice keeps one entry holding the latest fields. Not safe for concurrent
// use; owners serialise access.
type Set[T listing.Item] struct {
	tree *btree.BTreeG[entry[T]]
}

func New[T listing.Item]() *Set[T] {
	return &Set[T]{tree: btree.NewG[entry[T]](degree, less[T])}
}

func (s *Set[T]) Len() int {
	return s.tree.Len()
}

func (s *Set[T]) Get(id string) (T, bool) {
	e, ok := s.tree.Get(entry[T]{key: id})
	return e.item, ok
}

// Merge overlays items onto the set (id-keyed union).
func (s *Set[T]) Merge(items []T) {
	for _, item := range items {
		s.tree.ReplaceOrInsert(entry[T]{key: item.Key(), item: item})
	}
}

// Replace drops everything and keeps only items.
func (s *Set[T]) Replace(items []T) {
	s.tree.Clear(false)
	s.Merge(items)
}

// Retain drops every item positioned outside r and reports how many were removed.
func (s *Set[T]) Retain(r georect.Rect) int {
	var outside []entry[T]
	s.tree.Ascend(func(e entry[T]) bool {
		pos := e.item.Location()
		if !georect.ContainsPoint(r, pos.Lat, pos.Lng) {
			outside = append(outside, e)
		}
		return true
	})
	for _, e := range outside {
		s.tree.Delete(e)
	}
	return len(outside)
}

// Items returns the items ordered by id.
func (s *Set[T]) Items() []T {
	out := make([]T, 0, s.tree.Len())
	s.tree.Ascend(func(e entry[T]) bool {
		out = append(out, e.item)
		return true
	})
	return out
}

func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{tree: s.tree.Clone()}
}
