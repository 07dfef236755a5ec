package realtime

import (
	"sync"
	"time"
)

// DefaultMessageLimit is the per-connection message allowance per window.
const DefaultMessageLimit = 100

// DefaultWindow is the rate-limit window length.
const DefaultWindow = time.Minute

// RateLimiter is a fixed-window per-connection message counter. Window
// state is created on first use and reset lazily on access, so there
// are no per-connection background timers.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	states map[string]*windowState
}

type windowState struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter allowing limit messages per window
// per connection.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		states: make(map[string]*windowState),
	}
}

// Allow records one message against the connection's current window and
// reports whether it stayed within the limit. An expired window is
// replaced on access.
func (rl *RateLimiter) Allow(connID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	state, ok := rl.states[connID]
	if !ok || !now.Before(state.resetAt) {
		state = &windowState{resetAt: now.Add(rl.window)}
		rl.states[connID] = state
	}

	state.count++
	return state.count <= rl.limit
}

// Forget drops the connection's window state. Called on disconnect so
// state never outlives the connection.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.states, connID)
}
