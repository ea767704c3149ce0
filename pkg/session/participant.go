package session

import "time"

// Client is the callback surface of one editor connection. The method names
// form the wire contract with the browser client and must not be renamed.
//
// Implementations are owned by the transport layer (pkg/ws); calls may block
// on slow connections, so the hub never invokes them while holding a session
// lock.
type Client interface {
	// ApplyUpdate delivers an update fragment relayed from another participant.
	ApplyUpdate(fileID int64, fragment []byte)

	// ReceiveAwareness delivers another participant's presence state.
	ReceiveAwareness(fileID int64, state []byte, sessionID string, line *int)

	// BroadcastAwarenessRequest asks the client to re-announce its presence.
	BroadcastAwarenessRequest(fileID int64, sessionID, displayName string)

	// FileDeleted tells the client the file it is attached to no longer exists.
	FileDeleted(fileID int64)

	// LockEditor tells the client to block input while a restore is in progress.
	LockEditor(fileID int64, byDisplayName string)

	// UnlockEditor tells the client the restore finished and it should reload.
	UnlockEditor(fileID int64, changed time.Time, byDisplayName string, aborted bool)

	// Error reports an expected failure of an operation the client requested.
	Error(message string)
}

// Participant is one logical editing session attached to a file. A single
// participant may be backed by several connections (browser tabs of the same
// editing session), so presence is counted per session ID, not per connection.
type Participant struct {
	SessionID string
	UserID    int64
	Color     string
	IsMobile  bool

	LineNumber     *int
	LastActivityAt time.Time

	conns map[string]Client // connection ID -> callback surface
}

func newParticipant(sessionID string, userID int64, color string, isMobile bool) *Participant {
	return &Participant{
		SessionID:      sessionID,
		UserID:         userID,
		Color:          color,
		IsMobile:       isMobile,
		LastActivityAt: time.Now().UTC(),
		conns:          make(map[string]Client),
	}
}

// attachConn registers a connection as a carrier of this participant.
func (p *Participant) attachConn(connID string, c Client) {
	p.conns[connID] = c
}

// detachConn removes a connection and reports how many remain. The caller
// removes the participant entirely when the count reaches zero.
func (p *Participant) detachConn(connID string) int {
	delete(p.conns, connID)
	return len(p.conns)
}

// touch records activity. A nil line means "no cursor information", which
// leaves the previous line number in place.
func (p *Participant) touch(line *int) {
	if line != nil {
		p.LineNumber = line
	}
	p.LastActivityAt = time.Now().UTC()
}
