package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames. Update fragments are small
	// incremental diffs; full-state pushes stay well under this.
	maxMessageSize = 4 << 20

	// sendQueueSize bounds the per-connection outbound queue. A client that
	// cannot drain it is dropped rather than allowed to stall relay fan-out.
	sendQueueSize = 256
)

// Connection binds one websocket to the hub. It implements session.Conn: the
// read loop delivers inbound operations in order (giving per-sender FIFO),
// and the hub's callbacks enqueue frames for the write loop.
type Connection struct {
	ws  *websocket.Conn
	hub *session.Hub

	connID    string
	sessionID string
	user      *models.User

	send      chan outboundMessage
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection wraps an upgraded websocket for an authenticated user.
// sessionID identifies the logical editing session; clients reuse it across
// tabs and reconnects, and an empty value gets a fresh one.
func NewConnection(ws *websocket.Conn, hub *session.Hub, user *models.User, sessionID string) *Connection {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Connection{
		ws:        ws,
		hub:       hub,
		connID:    uuid.NewString(),
		sessionID: sessionID,
		user:      user,
		send:      make(chan outboundMessage, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// ID returns the unique connection identifier.
func (c *Connection) ID() string { return c.connID }

// SessionID returns the logical editing session identifier.
func (c *Connection) SessionID() string { return c.sessionID }

// UserID returns the authenticated user's ID.
func (c *Connection) UserID() int64 { return c.user.ID }

// Serve runs the read and write loops until the connection drops or ctx is
// cancelled, then detaches the connection from every file.
func (c *Connection) Serve(ctx context.Context) {
	go c.writeLoop()
	c.readLoop(ctx)

	c.hub.Disconnect(c)
	c.close()
}

func (c *Connection) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket read failed",
					logger.KeyConnID, c.connID,
					logger.KeyError, err)
			}
			return
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// dispatch routes one inbound operation to the hub. Expected failures are
// reported back through the Error callback, never as a dropped connection.
func (c *Connection) dispatch(ctx context.Context, msg inboundMessage) {
	switch msg.Op {
	case OpEnterFile:
		if err := c.hub.EnterFile(ctx, c, msg.FileID, msg.Color, msg.IsMobile); err != nil {
			c.Error(err.Error())
		}

	case OpLeaveFile:
		c.hub.LeaveFile(c, msg.FileID)

	case OpLoad:
		if updates := c.hub.Load(c, msg.FileID); updates != nil {
			c.enqueue(outboundMessage{Op: CallbackLoadResult, FileID: msg.FileID, Fragments: updates})
		}

	case OpPushUpdate:
		c.hub.PushUpdate(c, msg.FileID, msg.Fragment, msg.Line)

	case OpPushState:
		c.hub.PushState(c, msg.FileID, msg.Fragment)

	case OpBroadcastAwareness:
		c.hub.BroadcastAwareness(c, msg.FileID, msg.Awareness, msg.Line)

	case OpBroadcastAwarenessRequest:
		c.hub.BroadcastAwarenessRequest(c, msg.FileID, msg.Name)

	case OpUpdateSelection:
		if err := c.hub.UpdateSelections(ctx, c, msg.FileID, msg.OldOrigin, msg.OldSeq, msg.NewOrigin, msg.NewSeq, msg.Length, msg.EndOnly); err != nil {
			c.Error(err.Error())
		}

	case OpCheckLocked:
		if locked, name := c.hub.CheckLocked(msg.FileID); locked {
			c.LockEditor(msg.FileID, name)
		}

	case OpCreateVersion:
		version, err := c.hub.CreateVersion(ctx, c, msg.FileID, msg.Label, msg.Comment, msg.Fragment)
		if err != nil {
			c.Error(err.Error())
			return
		}
		if version != nil {
			c.enqueue(outboundMessage{Op: CallbackVersionCreated, FileID: msg.FileID, VersionID: version.ID})
		}

	case OpSetVersion:
		if _, err := c.hub.RestoreVersion(ctx, c, msg.FileID, msg.VersionID); err != nil {
			c.Error(err.Error())
		}

	case OpGetFile:
		updates, err := c.hub.GetFile(ctx, c, msg.FileID)
		if err != nil {
			c.Error(err.Error())
			return
		}
		c.enqueue(outboundMessage{Op: CallbackFileResult, FileID: msg.FileID, Fragments: updates})

	default:
		c.Error("unknown operation: " + msg.Op)
	}
}

// enqueue hands a frame to the write loop. A full queue means the client
// stopped draining; the connection is closed and the read loop's exit path
// detaches it from the hub.
func (c *Connection) enqueue(msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("Websocket send queue full, dropping connection",
			logger.KeyConnID, c.connID,
			logger.KeyUserID, c.user.ID)
		c.close()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// The session.Client callbacks below run on hub goroutines and only enqueue.

func (c *Connection) ApplyUpdate(fileID int64, fragment []byte) {
	c.enqueue(outboundMessage{Op: CallbackApplyUpdate, FileID: fileID, Fragment: fragment})
}

func (c *Connection) ReceiveAwareness(fileID int64, state []byte, sessionID string, line *int) {
	c.enqueue(outboundMessage{Op: CallbackReceiveAwareness, FileID: fileID, Awareness: state, SessionID: sessionID, Line: line})
}

func (c *Connection) BroadcastAwarenessRequest(fileID int64, sessionID, displayName string) {
	c.enqueue(outboundMessage{Op: CallbackBroadcastAwarenessRequest, FileID: fileID, SessionID: sessionID, Name: displayName})
}

func (c *Connection) FileDeleted(fileID int64) {
	c.enqueue(outboundMessage{Op: CallbackFileDeleted, FileID: fileID})
}

func (c *Connection) LockEditor(fileID int64, byDisplayName string) {
	c.enqueue(outboundMessage{Op: CallbackLockEditor, FileID: fileID, Name: byDisplayName})
}

func (c *Connection) UnlockEditor(fileID int64, changed time.Time, byDisplayName string, aborted bool) {
	c.enqueue(outboundMessage{Op: CallbackUnlockEditor, FileID: fileID, Changed: changed, Name: byDisplayName, Aborted: aborted})
}

func (c *Connection) Error(message string) {
	c.enqueue(outboundMessage{Op: CallbackError, Message: message})
}
