// Package ws adapts gorilla/websocket connections to the session hub: it
// frames the relay protocol as JSON messages, runs one ordered read loop and
// one write loop per connection, and reports dropped connections to the hub.
package ws

import "time"

// Operation names accepted from clients. These, together with the callback
// names below, are the wire contract with the editor frontend.
const (
	OpEnterFile                 = "EnterFile"
	OpLeaveFile                 = "LeaveFile"
	OpLoad                      = "Load"
	OpPushUpdate                = "PushUpdate"
	OpPushState                 = "PushState"
	OpBroadcastAwareness        = "BroadcastAwareness"
	OpBroadcastAwarenessRequest = "BroadcastAwarenessRequest"
	OpCheckLocked               = "CheckLocked"
	OpUpdateSelection           = "UpdateSelection"
	OpCreateVersion             = "CreateVersion"
	OpSetVersion                = "SetVersion"
	OpGetFile                   = "GetFile"
)

// Callback names sent to clients.
const (
	CallbackApplyUpdate               = "ApplyUpdate"
	CallbackReceiveAwareness          = "ReceiveAwareness"
	CallbackBroadcastAwarenessRequest = "BroadcastAwarenessRequest"
	CallbackFileDeleted               = "FileDeleted"
	CallbackLockEditor                = "LockEditor"
	CallbackUnlockEditor              = "UnlockEditor"
	CallbackError                     = "Error"
	CallbackLoadResult                = "LoadResult"
	CallbackFileResult                = "FileResult"
	CallbackVersionCreated            = "VersionCreated"
)

// inboundMessage is one request from the client. Byte fields round-trip as
// base64 strings through encoding/json.
type inboundMessage struct {
	Op        string `json:"op"`
	FileID    int64  `json:"fileId,omitempty"`
	VersionID int64  `json:"versionId,omitempty"`
	Fragment  []byte `json:"fragment,omitempty"`
	Awareness []byte `json:"awareness,omitempty"`
	Line      *int   `json:"line,omitempty"`
	Color     string `json:"color,omitempty"`
	IsMobile  bool   `json:"isMobile,omitempty"`
	Name      string `json:"name,omitempty"`
	Label     string `json:"label,omitempty"`
	Comment   string `json:"comment,omitempty"`

	// Selection rebase coordinates (UpdateSelection).
	OldOrigin float64 `json:"oldOrigin,omitempty"`
	OldSeq    float64 `json:"oldSeq,omitempty"`
	NewOrigin float64 `json:"newOrigin,omitempty"`
	NewSeq    float64 `json:"newSeq,omitempty"`
	Length    int     `json:"length,omitempty"`
	EndOnly   bool    `json:"endOnly,omitempty"`
}

// outboundMessage is one callback or reply to the client.
type outboundMessage struct {
	Op        string    `json:"op"`
	FileID    int64     `json:"fileId,omitempty"`
	VersionID int64     `json:"versionId,omitempty"`
	Fragment  []byte    `json:"fragment,omitempty"`
	Fragments [][]byte  `json:"fragments,omitempty"`
	Awareness []byte    `json:"awareness,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Line      *int      `json:"line,omitempty"`
	Name      string    `json:"name,omitempty"`
	Changed   time.Time `json:"changed,omitempty"`
	Aborted   bool      `json:"aborted,omitempty"`
	Message   string    `json:"message,omitempty"`
}
