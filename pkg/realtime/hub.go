package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames and pings
	maxMessageSize = 4096

	sendBuffer = 64
)

// GlobalRoom receives broadcasts that are not scoped to a board, project or user
const GlobalRoom = "global"

// Message is the frame pushed to clients
type Message struct {
	Room    string      `json:"room"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub fans events out to websocket clients grouped by room
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   *observability.Logger
	closed   bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(metrics *observability.Metrics, logger *observability.Logger) *Hub {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	if logger == nil {
		logger = observability.Default()
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		metrics: metrics,
		logger:  logger.WithField("component", "realtime"),
	}
}

// Emit sends event to every client in room. Slow clients drop the frame
// instead of blocking the caller.
func (h *Hub) Emit(room, event string, payload interface{}) {
	data, err := json.Marshal(Message{Room: room, Event: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Warn("failed to encode realtime message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			h.logger.WithFields(map[string]interface{}{
				"room":  room,
				"event": event,
			}).Warn("client send buffer full, dropping message")
		}
	}
}

// RoomSize returns the number of clients joined to room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomAuthorizer decides whether the caller of r may join room
type RoomAuthorizer func(r *http.Request, room string) error

// Handler is ServeWS behind authorize. Every requested room is checked
// before the upgrade; one refusal rejects the connection with the
// authorizer's error.
func (h *Hub) Handler(authorize RoomAuthorizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authorize != nil {
			for _, room := range requestedRooms(r) {
				if err := authorize(r, room); err != nil {
					h.logger.WithError(err).WithField("room", room).Debug("websocket join refused")
					httputil.WriteAppError(w, r, err)
					return
				}
			}
		}
		h.ServeWS(w, r)
	})
}

// ServeWS upgrades the request and joins the client to the rooms named by
// the "room" query parameter, or the global room when none is given
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	rooms := requestedRooms(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), rooms: rooms}
	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func requestedRooms(r *http.Request) []string {
	rooms := r.URL.Query()["room"]
	if len(rooms) == 0 {
		return []string{GlobalRoom}
	}
	return rooms
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	seen := make(map[*client]struct{})
	for room, clients := range h.rooms {
		for c := range clients {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				close(c.send)
				h.metrics.RealtimeClients.Dec()
			}
		}
		delete(h.rooms, room)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
	h.metrics.RealtimeClients.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := false
	for _, room := range c.rooms {
		clients, ok := h.rooms[room]
		if !ok {
			continue
		}
		if _, ok := clients[c]; ok {
			delete(clients, c)
			removed = true
		}
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	if removed {
		close(c.send)
		h.metrics.RealtimeClients.Dec()
	}
}
