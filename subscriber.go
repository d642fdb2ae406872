package main

import "sync"

// subscriber hands the next relayed value to every pending subscription and
// then forgets them. Once stopped, every subscription, pending or future,
// receives the stop value.
type subscriber[T any] struct {
	mtx     sync.Mutex
	pending []chan T
	stopped bool
	final   T
}

func (s *subscriber[T]) subscribe() <-chan T {
	ch := make(chan T, 1)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.stopped {
		ch <- s.final
		return ch
	}

	s.pending = append(s.pending, ch)
	return ch
}

func (s *subscriber[T]) relay(v T) {
	s.mtx.Lock()
	pending := s.pending
	s.pending = nil
	s.mtx.Unlock()

	for _, ch := range pending {
		ch <- v
	}
}

// stop relays v to the current subscriptions and to all later ones
func (s *subscriber[T]) stop(v T) {
	s.mtx.Lock()
	if s.stopped {
		s.mtx.Unlock()
		return
	}
	s.stopped = true
	s.final = v
	pending := s.pending
	s.pending = nil
	s.mtx.Unlock()

	for _, ch := range pending {
		ch <- v
	}
}
