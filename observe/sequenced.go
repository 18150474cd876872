package observe

import "sync"

// Sequenced is a Topic whose values carry a sequence number. Subscribers see
// values in increasing sequence order; a value older than one already
// published is dropped. Values published while another goroutine, or a
// subscriber, is delivering are queued and delivered by that goroutine.
type Sequenced[T any] struct {
	Topic[T]

	mu       sync.Mutex
	last     uint64
	queue    []T
	draining bool
}

// Publish delivers v unless a value with a sequence number of at least seq
// was already published.
func (s *Sequenced[T]) Publish(seq uint64, v T) {
	s.mu.Lock()
	if seq <= s.last {
		s.mu.Unlock()
		return
	}
	s.last = seq
	s.queue = append(s.queue, v)
	if s.draining {
		s.mu.Unlock()
		return
	}

	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.Topic.Publish(next)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
