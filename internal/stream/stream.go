// Package stream provides a replay-latest broadcast used to observe store changes.
package stream

import "sync"

// Stream fans the latest value out to subscribers. Slow subscribers never
// block publishers: an unread value is replaced by the newer one.
type Stream[T any] struct {
	mu      sync.Mutex
	latest  T
	hasLast bool
	nextID  int
	subs    map[int]chan T
	closed  bool
}

// New returns an empty stream.
func New[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Publish records v as the latest value and offers it to every subscriber.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = v
	s.hasLast = true
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that first yields the latest value, if any,
// and a cancel func that must be called to release it.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.hasLast {
		ch <- s.latest
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Latest returns the most recent value and whether one was published.
func (s *Stream[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLast
}

// Close terminates every subscription.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// offer replaces any pending value with v. Called with s.mu held, so ch has
// no concurrent producers.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
