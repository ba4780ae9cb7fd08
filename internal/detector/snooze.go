package detector

import (
	"sync"
	"time"
)

// Snooze tracks bundle identifiers the user declined to record, suppressing
// re-detection for a fixed TTL. Entries expire lazily on lookup; there is no
// background sweep.
type Snooze struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewSnooze creates a registry with the given TTL.
func NewSnooze(ttl time.Duration) *Snooze {
	return &Snooze{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add snoozes a bundle id starting now.
func (s *Snooze) Add(bundleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[bundleID] = s.now()
}

// IsSnoozed reports whether a bundle id is currently snoozed. An entry past
// its TTL is removed and reported as not snoozed.
func (s *Snooze) IsSnoozed(bundleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.entries[bundleID]
	if !ok {
		return false
	}
	if s.now().Sub(at) > s.ttl {
		delete(s.entries, bundleID)
		return false
	}
	return true
}

// Clear removes a bundle id regardless of expiry.
func (s *Snooze) Clear(bundleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, bundleID)
}
