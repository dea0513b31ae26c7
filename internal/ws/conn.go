package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Frames queued for a peer before it is treated as stalled and dropped.
	maxQueuedFrames = 1024
)

// Conn is one client connection
type Conn struct {
	ID     string
	conn   *websocket.Conn
	out    *outbox
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newConn(id string, wsConn *websocket.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		ID:     id,
		conn:   wsConn,
		out:    newOutbox(maxQueuedFrames),
		done:   make(chan struct{}),
		logger: logger.With("conn_id", id),
	}
}

// Send queues a frame for delivery. A peer that stops draining its queue is
// disconnected.
func (c *Conn) Send(frame []byte) bool {
	if c.out.push(frame) {
		return true
	}
	select {
	case <-c.done:
	default:
		c.logger.Warn("outbound queue full, closing connection", "queued", c.out.len())
		c.Close()
	}
	return false
}

// Close stops both pumps; safe to call more than once
func (c *Conn) Close() {
	c.once.Do(func() {
		c.out.close()
		close(c.done)
		_ = c.conn.Close()
	})
}

// Done is closed once the connection is shut down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// ReadPump delivers inbound frames to onMessage, one at a time, until the
// peer goes away
func (c *Conn) ReadPump(onMessage func(frame []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		onMessage(frame)
	}
}

// WritePump flushes queued frames to the peer and keeps it alive with pings
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.out.notify:
			for _, frame := range c.out.drain() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.logger.Debug("websocket write failed", "error", err)
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
