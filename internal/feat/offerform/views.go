package offerform

import (
	"sync"
	"time"
)

type viewEntry struct {
	view     *View
	lastSeen time.Time
}

// views keeps one View per visitor id. Entries idle for longer than ttl are
// dropped by sweep unless a submission is still in flight.
type views struct {
	mu      sync.Mutex
	entries map[string]*viewEntry
	ttl     time.Duration
	create  func(visitorID string) *View
	now     func() time.Time
}

func newViews(ttl time.Duration, create func(visitorID string) *View) *views {
	return &views{
		entries: make(map[string]*viewEntry),
		ttl:     ttl,
		create:  create,
		now:     time.Now,
	}
}

// get returns the visitor's view, creating it on first use.
func (s *views) get(visitorID string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[visitorID]
	if !ok {
		e = &viewEntry{view: s.create(visitorID)}
		s.entries[visitorID] = e
	}
	e.lastSeen = s.now()
	return e.view
}

func (s *views) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep removes expired views and returns how many were dropped.
func (s *views) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	dropped := 0
	for id, e := range s.entries {
		if e.lastSeen.After(cutoff) || e.view.isInFlight() {
			continue
		}
		delete(s.entries, id)
		dropped++
	}
	return dropped
}

// run sweeps every interval until stop is closed.
func (s *views) run(interval time.Duration, stop <-chan struct{}, swept func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.sweep(); n > 0 && swept != nil {
				swept(n)
			}
		case <-stop:
			return
		}
	}
}
