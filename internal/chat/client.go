package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SendBuffer is the number of events queued per client before drops.
const SendBuffer = 256

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// InboundMessage is a frame received from a client.
type InboundMessage struct {
	Action    string `json:"action"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Client is one WebSocket connection joined to a thread room.
type Client struct {
	ID     string
	UserID string
	Room   string
	Send   chan []byte
	conn   Conn
}

// NewClient creates a client for userID in room over conn.
func NewClient(conn Conn, userID, room string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Room:   room,
		Send:   make(chan []byte, SendBuffer),
		conn:   conn,
	}
}

// Reply queues an event for this client only.
func (c *Client) Reply(event Event) {
	if event.ThreadID == "" {
		event.ThreadID = c.Room
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// ReadPump reads frames until the connection fails, handing each decoded
// message to handle. It unregisters the client when it returns.
func (c *Client) ReadPump(hub *Hub, handle func(*Client, InboundMessage)) {
	defer func() {
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Reply(Event{Action: ActionError, Error: "malformed message"})
			continue
		}
		handle(c, msg)
	}
}

// WritePump writes queued events until Send is closed.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for data := range c.Send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
