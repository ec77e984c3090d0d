// Package chat implements chat threads, their messages and the real-time
// room hub that pushes new messages and read receipts to connected clients.
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"medlink-server/internal/logger"
)

// Outbound actions.
const (
	ActionReceive  = "receive"
	ActionMarkRead = "mark_read"
	ActionError    = "error"
)

// Inbound actions.
const (
	ActionSend = "send"
)

// Event is pushed to every client in a thread's room.
type Event struct {
	Action    string      `json:"action"`
	ThreadID  string      `json:"thread_id"`
	MessageID string      `json:"message_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Message   interface{} `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected clients per thread room. All methods are safe for
// concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log,
	}
}

// Register adds a client to its room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.Room] == nil {
		h.rooms[client.Room] = make(map[*Client]struct{})
	}
	h.rooms[client.Room][client] = struct{}{}
}

// Unregister removes a client from its room and closes its Send channel.
// Unregistering twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, ok := members[client]; !ok {
		return
	}

	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, client.Room)
	}
	close(client.Send)
}

// Broadcast sends the event to every client in the room. Clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(room string, event Event) {
	if event.ThreadID == "" {
		event.ThreadID = room
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithComponent("chat").WithError(err).Error("Failed to marshal chat event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
			h.log.WithComponent("chat").WithField("client_id", client.ID).Warn("Chat client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of clients in a room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of rooms with at least one client.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
