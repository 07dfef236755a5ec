package realtime

// Conn is a live subscriber connection handle. The transport layer owns
// the connection's lifetime; the registry only tracks group membership.
// Send must not block on a slow peer: transports are expected to queue
// and fail fast, so one stalled connection never holds up fan-out.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}
