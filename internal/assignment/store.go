// Package assignment holds the worker-side view of which crawl queues the
// coordinator assigned to this process. Assignments are revoked automatically
// when the coordinator stops refreshing the keep-alive within the TTL.
package assignment

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
)

// DefaultKeepAliveTTL is how long assignments survive without a keep-alive.
const DefaultKeepAliveTTL = 10 * time.Second

// Store is the set of assigned queue names plus the last keep-alive instant.
type Store struct {
	clock  crawler.MonotonicClock
	ttl    time.Duration
	logger *zap.Logger

	mu            sync.Mutex
	queues        map[string]struct{}
	lastKeepAlive time.Duration
}

// NewStore constructs an empty Store. The keep-alive starts at construction.
func NewStore(clock crawler.MonotonicClock, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultKeepAliveTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		clock:         clock,
		ttl:           ttl,
		logger:        logger,
		queues:        make(map[string]struct{}),
		lastKeepAlive: clock.Elapsed(),
	}
}

// Assign adds queues to the assigned set. Existing assignments are kept.
func (s *Store) Assign(queues []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range queues {
		if q != "" {
			s.queues[q] = struct{}{}
		}
	}
	metrics.SetAssignedQueues(len(s.queues))
}

// Assignments returns the assigned queues in lexical order.
func (s *Store) Assignments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.queues))
	for q := range s.queues {
		out = append(out, q)
	}
	slices.Sort(out)
	return out
}

// Clear drops every assignment.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.queues)
	metrics.SetAssignedQueues(0)
}

// UpdateKeepAlive records now as the last confirmation from the coordinator.
func (s *Store) UpdateKeepAlive() {
	now := s.clock.Elapsed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKeepAlive = now
}

// KeepAliveAge returns the time since the last keep-alive.
func (s *Store) KeepAliveAge() time.Duration {
	now := s.clock.Elapsed()
	s.mu.Lock()
	defer s.mu.Unlock()
	return now - s.lastKeepAlive
}

// MonitorKeepAlive clears the assignments once the keep-alive is older than
// the TTL. It reports whether anything was revoked.
func (s *Store) MonitorKeepAlive() bool {
	now := s.clock.Elapsed()
	s.mu.Lock()
	defer s.mu.Unlock()
	age := now - s.lastKeepAlive
	if age <= s.ttl || len(s.queues) == 0 {
		return false
	}
	revoked := len(s.queues)
	clear(s.queues)
	metrics.SetAssignedQueues(0)
	metrics.IncKeepAliveExpirations()
	s.logger.Warn("keep-alive expired, assignments revoked",
		zap.Duration("age", age), zap.Duration("ttl", s.ttl), zap.Int("queues", revoked))
	return true
}
