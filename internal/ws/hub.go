package ws

import (
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub tracks live connections and the room groups they joined
type Hub struct {
	conns    map[string]*Conn
	rooms    map[string]map[string]*Conn // roomID -> connID -> Conn
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *slog.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With("component", "ws"),
	}
}

// Upgrade turns an HTTP request into a registered connection
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := newConn(uuid.New().String(), wsConn, h.logger)
	h.register(c)
	return c, nil
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
	h.logger.Debug("client registered", "conn_id", c.ID, "clients", len(h.conns))
}

// Unregister removes a connection from the hub and from every room
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.logger.Debug("client unregistered", "conn_id", connID, "clients", len(h.conns))
}

// Connected reports whether the connection is still registered and open
func (h *Hub) Connected(connID string) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case <-c.Done():
		return false
	default:
		return true
	}
}

// Join adds a connection to a room's multicast group
func (h *Hub) Join(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[connID] = c
}

// Leave removes a connection from a room's multicast group
func (h *Hub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of connections in a room
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Send queues a frame for a single connection
func (h *Hub) Send(connID string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(frame)
}

// Broadcast queues a frame for every connection in a room and returns how
// many accepted it
func (h *Hub) Broadcast(room string, frame []byte) int {
	h.mu.RLock()
	// Collect all members while holding the lock
	members := maps.Clone(h.rooms[room])
	h.mu.RUnlock()

	// Send WITHOUT holding the lock; a full queue closes its connection
	sent := 0
	for _, c := range members {
		if c.Send(frame) {
			sent++
		}
	}
	return sent
}

// CloseAll shuts down every registered connection
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := slices.Collect(maps.Values(h.conns))
	h.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
