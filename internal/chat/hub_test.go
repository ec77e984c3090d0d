package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn replays queued frames and records written ones.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{inbound: make(chan []byte, len(frames))}
	for _, f := range frames {
		c.inbound <- []byte(f)
	}
	close(c.inbound)
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, data, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func decode(t *testing.T, data []byte) Event {
	t.Helper()
	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	a := NewClient(nil, "u1", "room-1")
	b := NewClient(nil, "u2", "room-1")
	c := NewClient(nil, "u3", "room-2")

	hub.Register(a)
	hub.Register(b)
	hub.Register(c)
	assert.Equal(t, 2, hub.ClientCount("room-1"))
	assert.Equal(t, 2, hub.RoomCount())

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount("room-1"))

	_, open := <-a.Send
	assert.False(t, open, "send channel is closed on unregister")

	hub.Unregister(c)
	assert.Equal(t, 1, hub.RoomCount())
}

func TestHub_BroadcastOnlyToRoom(t *testing.T) {
	hub := NewHub(nil)
	member := NewClient(nil, "u1", "room-1")
	outsider := NewClient(nil, "u2", "room-2")
	hub.Register(member)
	hub.Register(outsider)

	hub.Broadcast("room-1", Event{Action: ActionReceive, MessageID: "m1"})

	select {
	case data := <-member.Send:
		event := decode(t, data)
		assert.Equal(t, ActionReceive, event.Action)
		assert.Equal(t, "room-1", event.ThreadID)
		assert.Equal(t, "m1", event.MessageID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("member did not receive the event")
	}
	assert.Empty(t, outsider.Send)
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "slow", Room: "room-1", Send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Broadcast("room-1", Event{Action: ActionReceive})
	hub.Broadcast("room-1", Event{Action: ActionReceive})

	assert.Len(t, client.Send, 1)
}

func TestClient_PumpsDeliverAndUnregister(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn(`{"action":"send","text":"hello"}`, `not json`)
	client := NewClient(conn, "u1", "room-1")
	hub.Register(client)

	var handled []InboundMessage
	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	client.ReadPump(hub, func(c *Client, msg InboundMessage) {
		handled = append(handled, msg)
		hub.Broadcast(c.Room, Event{Action: ActionReceive, UserID: c.UserID})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop after unregister")
	}

	require.Len(t, handled, 1)
	assert.Equal(t, "hello", handled[0].Text)
	assert.Equal(t, 0, hub.ClientCount("room-1"))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
	// receive event, error reply for the malformed frame, close frame
	require.Len(t, conn.written, 3)
	assert.Equal(t, ActionReceive, decode(t, conn.written[0]).Action)
	assert.Equal(t, ActionError, decode(t, conn.written[1]).Action)
}
