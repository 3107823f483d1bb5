package serve

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/csso/fngraph/internal/run"
)

// wireEvent is the JSON shape of a run event on the WebSocket stream.
type wireEvent struct {
	Type       string `json:"type"`
	Node       string `json:"node,omitempty"`
	NodeID     string `json:"node_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans run events out to WebSocket subscribers. Broadcast never blocks:
// the runtime calls it from inside a run, so a stalled client just loses
// events instead of stalling the graph.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Broadcast sends one run event to every connected client.
func (h *Hub) Broadcast(e run.Event) {
	we := wireEvent{
		Type:       e.Type,
		Node:       e.Node,
		Reason:     e.Reason,
		Error:      e.Error,
		DurationMS: e.Duration.Milliseconds(),
	}
	if e.NodeID != uuid.Nil {
		we.NodeID = e.NodeID.String()
	}
	data, err := json.Marshal(we)
	if err != nil {
		slog.Error("Failed to encode run event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("Dropping run event for slow WebSocket client.")
		}
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll disconnects every client, for server shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

// writePump drains the client's send channel onto the connection. It exits
// when the channel closes or a write fails.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client messages until the connection drops, which is how
// a close from the editor side is noticed.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
