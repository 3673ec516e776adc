package inbound

import "sync"

// DefaultProcessedCapacity is how many event ids a ProcessedSet remembers.
const DefaultProcessedCapacity = 100

// ProcessedSet remembers the most recent inbound event ids. When full, adding
// an id evicts the oldest one. It is safe for concurrent use and does not
// survive a restart.
type ProcessedSet struct {
	mu    sync.Mutex
	ring  []string
	next  int
	full  bool
	index map[string]struct{}
}

// NewProcessedSet returns a set holding up to capacity ids. A non-positive
// capacity means DefaultProcessedCapacity.
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity <= 0 {
		capacity = DefaultProcessedCapacity
	}
	return &ProcessedSet{
		ring:  make([]string, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

// Add records id and reports whether it was new.
func (s *ProcessedSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return false
	}
	if s.full {
		delete(s.index, s.ring[s.next])
	}
	s.ring[s.next] = id
	s.index[id] = struct{}{}
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.full = true
	}
	return true
}

// Contains reports whether id is currently remembered.
func (s *ProcessedSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of remembered ids.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *ProcessedSet) Capacity() int {
	return len(s.ring)
}
