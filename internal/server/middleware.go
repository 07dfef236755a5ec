package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// ClientLimiterStore keeps a token-bucket limiter per client key with
// idle-entry cleanup, so limiter state does not grow unbounded.
type ClientLimiterStore struct {
	mu           sync.Mutex
	entries      map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// StoreOption tunes a ClientLimiterStore.
type StoreOption func(*ClientLimiterStore)

// WithIdleTTL overrides how long an unused client entry is kept.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *ClientLimiterStore) { s.idleTTL = d }
}

// WithCleanupEvery overrides the janitor interval. Zero disables the
// janitor; Cleanup can still be called directly.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *ClientLimiterStore) { s.cleanupEvery = d }
}

// NewClientLimiterStore creates a store allowing rps requests per
// second with the given burst per client.
func NewClientLimiterStore(rps float64, burst int, opts ...StoreOption) *ClientLimiterStore {
	s := &ClientLimiterStore{
		entries:      make(map[string]*limiterEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the limiter for the key, creating it on first use.
func (s *ClientLimiterStore) Get(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops entries idle longer than the TTL.
func (s *ClientLimiterStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len returns the number of tracked client entries.
func (s *ClientLimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor runs Cleanup every cleanupEvery until the context is
// cancelled, so idle client entries are evicted for the life of the
// store.
func (s *ClientLimiterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// RateLimitMiddleware rejects requests from clients that exhausted
// their token bucket. Keyed by client IP.
func RateLimitMiddleware(store *ClientLimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !store.Get(key).Allow() {
			utils.Warn("API rate limit exceeded", map[string]any{"client": key, "path": c.Request.URL.Path})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
