package main

import (
	"sync"
	"time"
)

// crawlerState is shared by every completion of a connection attempt. The
// counter only grows. Callers compare the value returned by
// recordAttemptCompleted with the cap outside the lock, so a burst of
// completions may start slightly more harvesting rounds than the cap.
type crawlerState struct {
	mtx      sync.RWMutex
	feed     peer
	attempts int
	nodes    map[string]*node
	found    uint64 // transaction announcements logged
}

func newCrawlerState() *crawlerState {
	return &crawlerState{nodes: make(map[string]*node)}
}

// recordAttemptCompleted counts one finished connection attempt, success or
// failure, and returns the new total
func (s *crawlerState) recordAttemptCompleted() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.attempts++
	return s.attempts
}

func (s *crawlerState) setFeeder(p peer) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.feed = p
}

func (s *crawlerState) feeder() peer {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.feed
}

func (s *crawlerState) attemptsCompleted() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.attempts
}

// trackNode records a new connection target. The same address may be
// attempted more than once, the latest attempt wins.
func (s *crawlerState) trackNode(addr string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.nodes[addr] = &node{addr: addr, status: statusConnecting, lastTry: time.Now()}
}

func (s *crawlerState) setStatus(addr string, status int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	nd, ok := s.nodes[addr]
	if !ok {
		return
	}

	nd.status = status
	if status == statusMonitoring || status == statusHarvesting {
		nd.connected = time.Now()
	}
}

func (s *crawlerState) addFound(n int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.found += uint64(n)
}

// stats is a point in time view used for status reporting
type stats struct {
	attempts int
	totals   []int
	found    uint64
}

func (s *crawlerState) stats() stats {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	st := stats{
		attempts: s.attempts,
		totals:   make([]int, maxStatusTypes),
		found:    s.found,
	}

	for _, nd := range s.nodes {
		st.totals[nd.status]++
	}

	return st
}
