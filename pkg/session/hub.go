package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/store"
	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// Conn is one inbound editor connection as the hub sees it: a stable
// connection ID, the logical editing session it belongs to, the
// authenticated user, and the client callback surface.
//
// The transport layer guarantees ordered delivery of inbound calls per
// connection, which is what gives relayed fragments their per-sender FIFO
// ordering. No ordering exists across different senders.
type Conn interface {
	ID() string
	SessionID() string
	UserID() int64
	Client
}

// Hub implements the relay protocol: it routes operations from editor
// connections to file sessions and fans results out to the other attached
// participants. Fan-out recipient lists are computed under the session lock
// and sends happen after it is released, so a slow recipient never stalls the
// file.
type Hub struct {
	registry *Registry
	locks    *LockTable
	rel      store.Store
	states   state.Store
	metrics  Metrics

	observers observerList

	mu          sync.Mutex
	attachments map[string]map[int64]struct{} // connection ID -> attached file IDs
}

// NewHub creates a hub over the given registry and stores. metrics may be
// nil to disable instrumentation.
func NewHub(registry *Registry, locks *LockTable, rel store.Store, states state.Store, metrics Metrics) *Hub {
	return &Hub{
		registry:    registry,
		locks:       locks,
		rel:         rel,
		states:      states,
		metrics:     metrics,
		attachments: make(map[string]map[int64]struct{}),
	}
}

// Subscribe registers an observer for membership-change notifications.
func (h *Hub) Subscribe(o Observer) {
	h.observers.subscribe(o)
}

// Registry exposes the underlying session registry (used by the worker).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// EnterFile attaches a connection to a file's session, creating the session
// on first attach. The caller must hold at least the participant role in the
// file's project. If the file is mid-restore the client receives a LockEditor
// notification synchronously, before any load it may issue.
func (h *Hub) EnterFile(ctx context.Context, c Conn, fileID int64, color string, isMobile bool) error {
	file, err := h.rel.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	role, err := h.rel.GetRole(ctx, file.ProjectID, c.UserID())
	if err != nil {
		return err
	}
	if role < models.RoleParticipant {
		return storeerrors.NewAccessDenied(fmt.Sprintf("user %d has no access to project %d", c.UserID(), file.ProjectID))
	}

	s, err := h.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		return err
	}

	isNew := s.AddParticipant(c.SessionID(), c.UserID(), color, isMobile, c.ID(), c)

	h.mu.Lock()
	files, ok := h.attachments[c.ID()]
	if !ok {
		files = make(map[int64]struct{})
		h.attachments[c.ID()] = files
	}
	files[fileID] = struct{}{}
	h.mu.Unlock()

	if locked, name := h.locks.Check(fileID); locked {
		c.LockEditor(fileID, name)
	}

	if isNew {
		h.observers.notifyUserListChanged(fileID, s.ListActiveUserIDs())
	}
	h.updateGauges()

	logger.Debug("Participant entered file",
		logger.KeyFileID, fileID,
		logger.KeyUserID, c.UserID(),
		logger.KeySessionID, c.SessionID())
	return nil
}

// LeaveFile detaches one connection from a file. The participant disappears
// from the active-user list only when its last connection leaves.
func (h *Hub) LeaveFile(c Conn, fileID int64) {
	h.mu.Lock()
	if files, ok := h.attachments[c.ID()]; ok {
		delete(files, fileID)
		if len(files) == 0 {
			delete(h.attachments, c.ID())
		}
	}
	h.mu.Unlock()

	s := h.registry.Get(fileID)
	if s == nil {
		return
	}
	if s.RemoveConn(c.SessionID(), c.ID()) {
		h.observers.notifyUserListChanged(fileID, s.ListActiveUserIDs())
	}
	h.updateGauges()
}

// Disconnect detaches a dropped connection from every file it was attached
// to. Called by the transport layer when a connection closes for any reason.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	files := h.attachments[c.ID()]
	delete(h.attachments, c.ID())
	h.mu.Unlock()

	for fileID := range files {
		s := h.registry.Get(fileID)
		if s == nil {
			continue
		}
		if s.RemoveConn(c.SessionID(), c.ID()) {
			h.observers.notifyUserListChanged(fileID, s.ListActiveUserIDs())
		}
	}
	h.updateGauges()
}

// attachedSession resolves the file's session for a relay operation. Every
// operation except EnterFile funnels through here: the caller must be
// attached to the file (which is where the role check happened), and the
// session must still be resident. An unattached caller gets the same
// FileDeleted signal as one whose file disappeared under it.
func (h *Hub) attachedSession(c Conn, fileID int64) *FileSession {
	h.mu.Lock()
	_, attached := h.attachments[c.ID()][fileID]
	h.mu.Unlock()
	if !attached {
		c.FileDeleted(fileID)
		return nil
	}

	s := h.registry.Get(fileID)
	if s == nil {
		c.FileDeleted(fileID)
		return nil
	}
	return s
}

// Load returns a snapshot of the file's update log to the caller only. If
// the file was deleted since the caller attached, it receives a FileDeleted
// signal and a nil log instead of an error.
func (h *Hub) Load(c Conn, fileID int64) [][]byte {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return nil
	}
	updates, _, _ := s.Snapshot()
	return updates
}

// PushUpdate appends an update fragment and relays it verbatim to every
// other connection attached to the file.
func (h *Hub) PushUpdate(c Conn, fileID int64, fragment []byte, line *int) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return
	}

	recipients := s.AppendUpdate(fragment, c.SessionID(), c.UserID(), line, c.ID())
	for _, recipient := range recipients {
		recipient.ApplyUpdate(fileID, fragment)
	}
	if h.metrics != nil {
		h.metrics.RecordUpdateRelayed(len(recipients))
	}
}

// PushState replaces the file's update log with a compacted full-document
// fragment. No fan-out: compaction carries no information the other
// participants don't already have.
func (h *Hub) PushState(c Conn, fileID int64, fragment []byte) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return
	}
	s.ReplaceState(fragment, c.UserID())
	if h.metrics != nil {
		h.metrics.RecordStateReplaced()
	}
}

// BroadcastAwareness relays a presence state blob to the other participants
// and records the sender's activity.
func (h *Hub) BroadcastAwareness(c Conn, fileID int64, awareness []byte, line *int) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return
	}
	recipients := s.TouchParticipant(c.SessionID(), line, c.ID())
	for _, recipient := range recipients {
		recipient.ReceiveAwareness(fileID, awareness, c.SessionID(), line)
	}
}

// BroadcastAwarenessRequest asks every other participant to re-announce its
// presence. Pure signal; no session state changes.
func (h *Hub) BroadcastAwarenessRequest(c Conn, fileID int64, displayName string) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return
	}
	recipients := s.Recipients(c.ID())
	for _, recipient := range recipients {
		recipient.BroadcastAwarenessRequest(fileID, c.SessionID(), displayName)
	}
}

// CheckLocked reports whether a file is mid-restore, and by whom. New clients
// call this before their first load so they can show the blocking overlay
// immediately; the transport replies with a LockEditor callback when locked
// and stays silent otherwise.
func (h *Hub) CheckLocked(fileID int64) (bool, string) {
	return h.locks.Check(fileID)
}

// GetCurrentState returns a file's update log: the live session's snapshot
// when one is resident, the durable state otherwise. Exposed for UI features
// outside the relay (file download, cross-file fetch).
func (h *Hub) GetCurrentState(ctx context.Context, fileID int64) ([][]byte, error) {
	if s := h.registry.Get(fileID); s != nil {
		updates, _, _ := s.Snapshot()
		return updates, nil
	}
	return h.states.GetState(ctx, fileID)
}

// GetFile is the relay-facing cross-file fetch: the caller may read another
// file's state only when it shares a project with a file the caller is
// attached to. Denials report not-found so the op reveals nothing about
// files outside the caller's projects.
func (h *Hub) GetFile(ctx context.Context, c Conn, fileID int64) ([][]byte, error) {
	target, err := h.rel.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	attached := make([]int64, 0, len(h.attachments[c.ID()]))
	for id := range h.attachments[c.ID()] {
		attached = append(attached, id)
	}
	h.mu.Unlock()

	allowed := false
	for _, id := range attached {
		if id == fileID {
			allowed = true
			break
		}
		joined, err := h.rel.GetFile(ctx, id)
		if err != nil {
			continue
		}
		if joined.ProjectID == target.ProjectID {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("file %d state not found", fileID))
	}

	return h.GetCurrentState(ctx, fileID)
}

// ListActiveUsers returns the distinct users attached to any of the given
// files. Files without a resident session contribute nothing.
func (h *Hub) ListActiveUsers(fileIDs []int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, fileID := range fileIDs {
		s := h.registry.Get(fileID)
		if s == nil {
			continue
		}
		for _, userID := range s.ListActiveUserIDs() {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			out = append(out, userID)
		}
	}
	return out
}

// UpdateSelections rebases persisted selection anchors after the editor
// re-origined a range of text. For offsets 0..length-1 the first anchor whose
// start or end sits at (oldOrigin, oldSeq+i) is moved to (newOrigin,
// newSeq+i); endOnly skips the start scan. A deleted file is a signal, like
// the other relay ops.
func (h *Hub) UpdateSelections(ctx context.Context, c Conn, fileID int64, oldOrigin, oldSeq, newOrigin, newSeq float64, length int, endOnly bool) error {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return nil
	}
	return s.RebaseAnchors(ctx, oldOrigin, oldSeq, newOrigin, newSeq, length, endOnly)
}

// AddSelection persists a new selection row and mirrors it into the live
// session's anchor set when one is resident.
func (h *Hub) AddSelection(ctx context.Context, sel *models.Selection) (*models.Selection, error) {
	created, err := h.rel.CreateSelection(ctx, sel)
	if err != nil {
		return nil, err
	}
	if s := h.registry.Get(created.FileID); s != nil {
		s.AddAnchor(Anchor{
			SelectionID: created.ID,
			StartOrigin: created.StartOrigin,
			StartSeq:    created.StartSeq,
			EndOrigin:   created.EndOrigin,
			EndSeq:      created.EndSeq,
		})
	}
	return created, nil
}

// RemoveSelection deletes a selection row and drops its live anchor when the
// file's session is resident.
func (h *Hub) RemoveSelection(ctx context.Context, fileID, selectionID int64) error {
	if err := h.rel.DeleteSelection(ctx, selectionID); err != nil {
		return err
	}
	if s := h.registry.Get(fileID); s != nil {
		s.RemoveAnchor(selectionID)
	}
	return nil
}

// CreateVersion snapshots the file's current document into a named version.
// A non-nil fragment is appended (and relayed) first so the version includes
// the caller's latest local edits.
func (h *Hub) CreateVersion(ctx context.Context, c Conn, fileID int64, label, comment string, fragment []byte) (*models.Version, error) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return nil, nil
	}

	if fragment != nil {
		recipients := s.AppendUpdate(fragment, c.SessionID(), c.UserID(), nil, c.ID())
		for _, recipient := range recipients {
			recipient.ApplyUpdate(fileID, fragment)
		}
	}

	file, err := h.rel.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	updates, changedAt, _ := s.Snapshot()

	version, err := h.rel.CreateVersion(ctx, &models.Version{
		FileID:  fileID,
		Name:    file.Name,
		Changed: changedAt,
		UserID:  c.UserID(),
		Label:   label,
		Comment: comment,
	})
	if err != nil {
		return nil, err
	}
	if err := h.states.SetVersionState(ctx, version.ID, updates); err != nil {
		return nil, err
	}

	logger.Info("Version created",
		logger.KeyFileID, fileID,
		logger.KeyVersionID, version.ID,
		logger.KeyUserID, c.UserID())
	return version, nil
}

// RemoveFile evicts a deleted file's session, notifies every attached
// connection with a FileDeleted signal and drops the durable state blob.
// The relational rows are the caller's responsibility.
func (h *Hub) RemoveFile(ctx context.Context, fileID int64) error {
	s := h.registry.Remove(fileID)
	if s != nil {
		for _, recipient := range s.Recipients("") {
			recipient.FileDeleted(fileID)
		}
	}

	h.mu.Lock()
	for _, files := range h.attachments {
		delete(files, fileID)
	}
	h.mu.Unlock()

	h.updateGauges()
	return h.states.DeleteState(ctx, fileID)
}

func (h *Hub) updateGauges() {
	if h.metrics == nil {
		return
	}
	h.metrics.SetLiveSessions(h.registry.Len())

	total := 0
	h.registry.ForEach(func(s *FileSession) {
		total += s.ParticipantCount()
	})
	h.metrics.SetParticipants(total)
}
