package ws

import (
	"context"
	"testing"

	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

// newQueuedConnection builds a Connection whose outbound frames land in the
// send queue without a websocket behind it, for dispatch-level tests.
func newQueuedConnection(hub *session.Hub) *Connection {
	return &Connection{
		hub:       hub,
		connID:    "conn-test",
		sessionID: "sess-test",
		user:      &models.User{ID: 1, Username: "alice"},
		send:      make(chan outboundMessage, sendQueueSize),
		done:      make(chan struct{}),
	}
}

func (c *Connection) nextFrame() (outboundMessage, bool) {
	select {
	case msg := <-c.send:
		return msg, true
	default:
		return outboundMessage{}, false
	}
}

func TestCheckLocked_RepliesWithLockEditor(t *testing.T) {
	locks := session.NewLockTable()
	hub := session.NewHub(session.NewRegistry(nil, nil), locks, nil, nil, nil)
	conn := newQueuedConnection(hub)
	ctx := context.Background()

	const fileID = int64(7)

	// Unlocked: the client hears nothing.
	conn.dispatch(ctx, inboundMessage{Op: OpCheckLocked, FileID: fileID})
	if msg, ok := conn.nextFrame(); ok {
		t.Fatalf("unlocked check produced a frame: %+v", msg)
	}

	locks.Lock(fileID, "Alice")
	conn.dispatch(ctx, inboundMessage{Op: OpCheckLocked, FileID: fileID})

	msg, ok := conn.nextFrame()
	if !ok {
		t.Fatal("locked check produced no frame")
	}
	if msg.Op != CallbackLockEditor {
		t.Errorf("reply op = %q, want %q", msg.Op, CallbackLockEditor)
	}
	if msg.FileID != fileID || msg.Name != "Alice" {
		t.Errorf("reply = %+v, want fileId %d locked by Alice", msg, fileID)
	}
}
