package realtime

import (
	"sync"
	"time"
)

// Scheduler keeps a monotonic playback cursor so incoming chunks play back to
// back: each chunk starts at max(now, end of the previous chunk).
type Scheduler struct {
	mu   sync.Mutex
	next time.Time
}

// Schedule reserves d of playback and returns when it starts.
func (s *Scheduler) Schedule(now time.Time, d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := now
	if s.next.After(now) {
		start = s.next
	}
	s.next = start.Add(d)
	return start
}

// Next returns the end of the last scheduled chunk.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Backlog returns how much scheduled audio remains after now.
func (s *Scheduler) Backlog(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next.After(now) {
		return s.next.Sub(now)
	}
	return 0
}

// Reset drops the cursor.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.next = time.Time{}
	s.mu.Unlock()
}
