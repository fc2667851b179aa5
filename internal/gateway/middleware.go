package gateway

import (
	"sync"
	"time"

	"github.com/eleven-am/voice-bridge/internal/shared"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds how often a single client IP may open downstream
// connections.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterStore struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	config   RateLimiterConfig
	now      func() time.Time
}

func newRateLimiterStore(cfg RateLimiterConfig) *rateLimiterStore {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	return &rateLimiterStore{
		limiters: make(map[string]*limiterEntry),
		config:   cfg,
		now:      time.Now,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst),
		}
		s.limiters[key] = entry
	}
	entry.lastSeen = s.now()
	return entry.limiter
}

// evictIdle drops limiters not used within the cleanup interval.
func (s *rateLimiterStore) evictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.config.CleanupInterval)
	evicted := 0
	for key, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			evicted++
		}
	}
	return evicted
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *rateLimiterStore) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

// RateLimiter limits requests per client IP. The cleanup goroutine exits when
// done is closed; a nil done keeps it running for the life of the process.
func RateLimiter(cfg RateLimiterConfig, done <-chan struct{}) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)
	go store.cleanupLoop(done)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !store.getLimiter(c.RealIP()).Allow() {
				return shared.TooManyRequests("rate_limit_exceeded", "too many connection attempts")
			}
			return next(c)
		}
	}
}
