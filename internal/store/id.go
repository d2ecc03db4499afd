package store

import (
	"sync"
	"time"
)

// IDSource hands out record ids. Ids look like millisecond timestamps so
// they stay compatible with existing CSV exports, but they are strictly
// increasing within a process and never collide with a live id.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDSource returns a source driven by now; nil means time.Now.
func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Next returns a fresh id for which taken reports false.
func (s *IDSource) Next(taken func(int64) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	for taken != nil && taken(id) {
		id++
	}
	s.last = id
	return id
}
