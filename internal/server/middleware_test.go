package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Tests ClientLimiterStore
func TestClientLimiterStore(t *testing.T) {
	t.Run("same_key_returns_same_limiter", func(t *testing.T) {
		store := NewClientLimiterStore(10, 1)

		first := store.Get("client1")
		second := store.Get("client1")
		require.Same(t, first, second)
		require.Equal(t, 1, store.Len())
	})

	t.Run("low_burst_rejects_second_immediate_request", func(t *testing.T) {
		store := NewClientLimiterStore(0.02, 1)

		lim := store.Get("client1")
		require.True(t, lim.Allow())
		require.False(t, lim.Allow())
	})

	t.Run("cleanup_removes_idle_entries", func(t *testing.T) {
		store := NewClientLimiterStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

		before := store.Get("client1")
		time.Sleep(4 * time.Millisecond)

		store.Cleanup()
		require.Equal(t, 0, store.Len())

		after := store.Get("client1")
		require.NotSame(t, before, after)
	})

	t.Run("cleanup_keeps_active_entries", func(t *testing.T) {
		store := NewClientLimiterStore(10, 1, WithIdleTTL(time.Hour), WithCleanupEvery(0))

		store.Get("client1")
		store.Get("client2")

		store.Cleanup()
		require.Equal(t, 2, store.Len())
	})

	t.Run("janitor_evicts_periodically", func(t *testing.T) {
		store := NewClientLimiterStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(5*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store.StartJanitor(ctx)

		store.Get("client1")
		require.Equal(t, 1, store.Len())

		require.Eventually(t, func() bool {
			return store.Len() == 0
		}, time.Second, 5*time.Millisecond, "janitor should evict the idle entry")
	})
}

// Tests RateLimitMiddleware
func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newEngine := func(store *ClientLimiterStore) *gin.Engine {
		engine := gin.New()
		engine.Use(RateLimitMiddleware(store))
		engine.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})
		return engine
	}

	t.Run("within_limit_passes", func(t *testing.T) {
		engine := newEngine(NewClientLimiterStore(100, 10))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("over_limit_rejected_with_429", func(t *testing.T) {
		// burst of one: the second immediate request from the same
		// client exceeds the bucket
		engine := newEngine(NewClientLimiterStore(0.02, 1))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		require.Contains(t, w.Body.String(), "too many requests")
	})

	t.Run("clients_are_limited_independently", func(t *testing.T) {
		engine := newEngine(NewClientLimiterStore(0.02, 1))

		first := httptest.NewRequest(http.MethodGet, "/ping", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, first)
		require.Equal(t, http.StatusOK, w.Code)

		second := httptest.NewRequest(http.MethodGet, "/ping", nil)
		second.RemoteAddr = "10.0.0.2:1234"
		w = httptest.NewRecorder()
		engine.ServeHTTP(w, second)
		require.Equal(t, http.StatusOK, w.Code, "a different client has its own bucket")
	})
}
