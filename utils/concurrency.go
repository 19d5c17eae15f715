package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum wall-clock interval between successive calls
// to Wait. The first call returns immediately.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle allowing one event per interval. A
// non-positive interval disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next event is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// URLSet is a set for tracking visited URLs. The run is single-threaded;
// the lock only keeps the type safe to share.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
