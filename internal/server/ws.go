package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"auction-engine/internal/realtime"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errClientGone = errors.New("websocket client closed")

// wsClient adapts a gorilla websocket connection to realtime.Conn.
// Sends enqueue onto a buffered channel and fail fast when the peer
// cannot keep up, so fan-out never blocks on one slow watcher.
type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

// Send enqueues a payload for the write pump. A full queue counts as a
// failure: the caller treats the connection as too slow and drops it.
func (c *wsClient) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientGone
	case c.send <- payload:
		return nil
	default:
		return errors.New("websocket send queue full")
	}
}

// Close signals shutdown; the write pump flushes queued payloads and
// closes the underlying connection.
func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump pumps queued payloads to the websocket connection and keeps
// it alive with periodic pings. On shutdown it drains the queue first,
// so a final notice enqueued just before Close still reaches the peer.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			for {
				select {
				case payload := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WatchHandler upgrades HTTP requests to websocket subscriptions on an
// auction's event group.
type WatchHandler struct {
	router *realtime.Router
}

// NewWatchHandler creates a websocket watch handler over the router.
func NewWatchHandler(router *realtime.Router) *WatchHandler {
	return &WatchHandler{router: router}
}

// HandleWatch handles GET /ws/auctions/:auction_id
func (h *WatchHandler) HandleWatch(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if auctionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auction ID is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	client := newWSClient(conn)
	topic := realtime.TopicForAuction(auctionID)
	h.router.Registry().Subscribe(client, topic)

	utils.Info("watcher connected", map[string]any{"conn_id": client.ID(), "topic": topic})

	go client.writePump()
	go h.readPump(client, topic)

	ack := `{"status":"connected","topic":"` + topic + `"}`
	_ = client.Send([]byte(ack))
}

// readPump consumes inbound frames. Every inbound message counts
// against the connection's window; the first message over the limit
// gets the rate-limit notice and the connection is closed before any
// further message is processed.
func (h *WatchHandler) readPump(client *wsClient, topic string) {
	defer func() {
		h.router.Registry().UnsubscribeAll(client)
		h.router.Limiter().Forget(client.ID())
		client.Close()
		utils.Info("watcher disconnected", map[string]any{"conn_id": client.ID(), "topic": topic})
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("websocket read error", map[string]any{"conn_id": client.ID(), "error": err.Error()})
			}
			return
		}
		if !h.router.Limiter().Allow(client.ID()) {
			h.router.Drop(client)
			return
		}
	}
}
