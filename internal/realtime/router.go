package realtime

import (
	"encoding/json"

	"auction-engine/utils"
)

// rateLimitNotice is the single message a connection receives before it
// is forcibly disconnected for exceeding its window.
var rateLimitNotice = []byte(`{"error":"Rate limit exceeded"}`)

// Router fans an event out to every connection subscribed to a group,
// consulting each connection's rate limiter independently. Delivery is
// best-effort, at-most-once per connection per event: failures are
// logged and swallowed, never propagated to the publisher.
type Router struct {
	registry *Registry
	limiter  *RateLimiter
}

// NewRouter creates a router over the given registry and limiter.
func NewRouter(registry *Registry, limiter *RateLimiter) *Router {
	return &Router{registry: registry, limiter: limiter}
}

// Registry exposes the underlying registry for transport wiring.
func (rt *Router) Registry() *Registry {
	return rt.registry
}

// Limiter exposes the underlying rate limiter for transport wiring.
func (rt *Router) Limiter() *RateLimiter {
	return rt.limiter
}

// Publish marshals the event once and delivers it to every subscriber
// of the topic. Connections over their rate limit are skipped and
// dropped, not waited on.
func (rt *Router) Publish(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.Error("broadcast: marshal failed", map[string]any{"topic": topic, "error": err.Error()})
		return
	}

	delivered := 0
	for _, conn := range rt.registry.Members(topic) {
		if !rt.limiter.Allow(conn.ID()) {
			rt.Drop(conn)
			continue
		}
		if err := conn.Send(payload); err != nil {
			utils.Warn("broadcast: send failed, dropping connection", map[string]any{
				"topic":   topic,
				"conn_id": conn.ID(),
				"error":   err.Error(),
			})
			rt.forget(conn)
			continue
		}
		delivered++
	}

	utils.Info("broadcast delivered", map[string]any{"topic": topic, "delivered": delivered})
}

// Drop sends the single rate-limit notice and forcibly disconnects the
// connection. Fail-closed: an abusive connection is never silently
// throttled, it is told once and removed.
func (rt *Router) Drop(conn Conn) {
	_ = conn.Send(rateLimitNotice)
	rt.forget(conn)
	utils.Warn("rate limit exceeded, connection dropped", map[string]any{"conn_id": conn.ID()})
}

// forget removes a connection from all groups and releases its
// rate-limit state.
func (rt *Router) forget(conn Conn) {
	rt.registry.UnsubscribeAll(conn)
	rt.limiter.Forget(conn.ID())
	_ = conn.Close()
}
