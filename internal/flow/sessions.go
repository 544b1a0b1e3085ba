package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"template_shop_server/internal/metrics"
)

// ErrSessionLimit is returned by Get when the registry is full and every
// session has a call in flight.
var ErrSessionLimit = errors.New("too many active sessions")

// Factory builds the controller for a new session.
type Factory func(ctx context.Context, sessionID string) (*Controller, error)

// SessionOption configures a Sessions registry.
type SessionOption func(*Sessions)

// WithMaxSessions caps the number of live controllers. Zero means no cap.
func WithMaxSessions(n int) SessionOption {
	return func(s *Sessions) { s.max = n }
}

// WithEvictHook registers fn to run for every evicted session id, e.g. to
// drop its in-memory cart.
func WithEvictHook(fn func(sessionID string)) SessionOption {
	return func(s *Sessions) { s.onEvict = fn }
}

// Sessions keeps one Controller per browser session and evicts idle ones.
// A persisted cart outlives eviction; the rebuilt controller reloads it.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	factory  Factory
	ttl      time.Duration
	max      int
	onEvict  func(string)
	logger   *zap.Logger
}

func NewSessions(factory Factory, ttl time.Duration, logger *zap.Logger, opts ...SessionOption) *Sessions {
	s := &Sessions{
		sessions: make(map[string]*Controller),
		factory:  factory,
		ttl:      ttl,
		logger:   logger.Named("Sessions"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session's controller, creating it on first use. When the
// registry is full the least recently used idle session makes room.
func (s *Sessions) Get(ctx context.Context, id string) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.sessions[id]; ok {
		return c, nil
	}
	if s.max > 0 && len(s.sessions) >= s.max && !s.evictOldestLocked() {
		s.logger.Warn("Session limit reached", zap.Int("max", s.max))
		return nil, ErrSessionLimit
	}
	c, err := s.factory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = c
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Debug("Session created", zap.String("session_id", id))
	return c, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL. A session with a call
// in flight is never dropped. It returns the number evicted.
func (s *Sessions) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, c := range s.sessions {
		if c.busy() || now.Sub(c.idleSince()) < s.ttl {
			continue
		}
		s.evictLocked(id)
		evicted++
	}
	if evicted > 0 {
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Info("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", len(s.sessions)))
	}
	return evicted
}

// evictOldestLocked drops the idle session with the oldest activity.
func (s *Sessions) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, c := range s.sessions {
		if c.busy() {
			continue
		}
		if t := c.idleSince(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	if oldestID == "" {
		return false
	}
	s.evictLocked(oldestID)
	s.logger.Debug("Evicted least recently used session", zap.String("session_id", oldestID))
	return true
}

func (s *Sessions) evictLocked(id string) {
	delete(s.sessions, id)
	if s.onEvict != nil {
		s.onEvict(id)
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
