package events

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is the slice of *websocket.Conn the hub needs. Tests substitute fakes
// to exercise eviction without network sockets.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub holds the set of live observer connections. The mutex is held across a
// whole broadcast so concurrent broadcasts never interleave writes on one
// connection and eviction stays atomic with delivery.
type Hub struct {
	mu     sync.Mutex
	conns  map[Conn]struct{}
	mirror *RedisMirror
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns: make(map[Conn]struct{}),
		log:   log,
	}
}

// SetMirror attaches an optional Redis publisher that receives a copy of
// every broadcast.
func (h *Hub) SetMirror(m *RedisMirror) {
	h.mu.Lock()
	h.mirror = m
	h.mu.Unlock()
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes the connection; removing an absent one is a no-op.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast serializes the event once and delivers it to every registered
// connection. A failed send closes and evicts that connection without
// affecting the rest; errors never surface to the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []Conn
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		delete(h.conns, c)
		_ = c.Close()
		h.log.Debug("evicted observer after failed send", zap.String("event", ev.Type))
	}

	if h.mirror != nil {
		if err := h.mirror.Publish(data); err != nil {
			h.log.Warn("failed to mirror event to redis", zap.Error(err))
		}
	}
}

// Send delivers one event to a single connection, evicting it on failure.
// Used for the connected acknowledgement on handshake.
func (h *Hub) Send(c Conn, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		delete(h.conns, c)
		_ = c.Close()
	}
}
