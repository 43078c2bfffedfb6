package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/telekom/contact-relay/pkg/metrics"
	"github.com/telekom/contact-relay/pkg/system"
)

// window holds the counter for one client identifier
type window struct {
	count int64
	start time.Time
	size  time.Duration
}

func (w *window) expired(now time.Time) bool {
	return now.Sub(w.start) >= w.size
}

// MemoryStore keeps fixed windows in process memory with periodic cleanup of expired windows.
// It is suitable for a single replica; use RedisStore to share a budget between replicas.
type MemoryStore struct {
	mu       sync.Mutex
	windows  map[string]*window
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		windows:  make(map[string]*window),
		interval: cleanupInterval,
		done:     make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// Hit records one request for key. The lookup, reset and increment happen under one lock
// so two concurrent requests from the same client can never both slip past the limit.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, size time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || w.expired(now) {
		w = &window{start: now, size: size}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.start, nil
}

// Name identifies the store in logs and metrics.
func (s *MemoryStore) Name() string {
	return "memory"
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Close implements io.Closer.
func (s *MemoryStore) Close() error {
	s.Stop()
	return nil
}

// cleanup periodically removes expired windows
func (s *MemoryStore) cleanup() {
	defer system.Recover("ratelimit memory store cleanup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanupExpired(now)
		}
	}
}

// cleanupExpired removes windows that ended before now
func (s *MemoryStore) cleanupExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.windows {
		if w.expired(now) {
			delete(s.windows, key)
		}
	}
	metrics.RateLimitTrackedClients.Set(float64(len(s.windows)))
}

// Len returns the current number of tracked clients (for testing/metrics)
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
