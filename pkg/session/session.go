// Package session implements the collaborative file session coordinator: the
// in-memory live state of each open file, the relay of update and presence
// messages between attached participants, the advisory version-restore lock,
// the selection-anchor rebaser and the background persistence worker.
//
// Update fragments are opaque byte blobs produced by the client-side CRDT;
// the coordinator appends, stores and relays them verbatim and never inspects
// their contents.
package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pmpwsk/cocoding/pkg/store"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// FileSession is the in-memory authoritative state of one live file: the
// update log, last-change metadata, the attached participants and the
// selection anchors.
//
// Every mutating operation runs under the session's own mutex. Different
// files never contend with each other; the lock is never held while sending
// to participants or while another file's lock is held.
type FileSession struct {
	fileID int64

	mu           sync.Mutex
	updates      [][]byte
	changedAt    time.Time
	lastEditorID int64
	dirty        bool
	participants map[string]*Participant // keyed by logical session ID
	anchors      map[int64]*Anchor       // keyed by selection ID

	rel    store.Store
	states state.Store
}

func newFileSession(fileID int64, updates [][]byte, changedAt time.Time, lastEditorID int64, rel store.Store, states state.Store) *FileSession {
	return &FileSession{
		fileID:       fileID,
		updates:      updates,
		changedAt:    changedAt,
		lastEditorID: lastEditorID,
		participants: make(map[string]*Participant),
		anchors:      make(map[int64]*Anchor),
		rel:          rel,
		states:       states,
	}
}

// FileID returns the identifier of the file this session coordinates.
func (s *FileSession) FileID() int64 {
	return s.fileID
}

// AppendUpdate appends a fragment to the update log, marks the session dirty,
// records the sender as last editor and touches the sending participant. It
// returns the recipients the fragment must be relayed to (every connection of
// every participant except the sending connection), computed under the same
// lock so the caller can fan out after releasing it.
func (s *FileSession) AppendUpdate(fragment []byte, sessionID string, userID int64, line *int, excludeConnID string) []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, fragment)
	s.dirty = true
	s.changedAt = time.Now().UTC()
	s.lastEditorID = userID

	if p := s.participants[sessionID]; p != nil {
		p.touch(line)
	}

	return s.recipientsLocked(excludeConnID)
}

// ReplaceState replaces the update log with a single compacted fragment.
// When the log already consists of exactly that fragment the call is a no-op,
// so repeated compactions do not churn the dirty flag.
func (s *FileSession) ReplaceState(fragment []byte, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.updates) == 1 && bytes.Equal(s.updates[0], fragment) {
		return
	}

	s.updates = [][]byte{fragment}
	s.dirty = true
	s.changedAt = time.Now().UTC()
	s.lastEditorID = userID
}

// restoreLog replaces the whole update log with a version's state. Unlike
// ReplaceState this is unconditional; the restore flow has already decided
// the swap happens.
func (s *FileSession) restoreLog(updates [][]byte, changedAt time.Time, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append([][]byte(nil), updates...)
	s.dirty = true
	s.changedAt = changedAt
	s.lastEditorID = userID
}

// Snapshot returns a point-in-time copy of the update log and the change
// metadata. Fragments are shared, not copied; they are immutable once
// appended.
func (s *FileSession) Snapshot() (updates [][]byte, changedAt time.Time, lastEditorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates = append([][]byte(nil), s.updates...)
	return updates, s.changedAt, s.lastEditorID
}

// Dirty reports whether in-memory state is ahead of durable storage.
func (s *FileSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Persist writes the update log to the state store and the change metadata to
// the relational store, then clears the dirty flag. It is a no-op while the
// session is clean. On failure the dirty flag stays set so the next sweep
// retries.
func (s *FileSession) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.states.SetState(ctx, s.fileID, s.updates); err != nil {
		return err
	}
	if err := s.rel.SetFileChangeData(ctx, s.fileID, s.changedAt, s.lastEditorID); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// AddParticipant attaches a connection, creating the participant for its
// logical session ID if this is its first connection. It reports whether a
// new participant appeared (the active-user list changed).
func (s *FileSession) AddParticipant(sessionID string, userID int64, color string, isMobile bool, connID string, c Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[sessionID]
	if !ok {
		p = newParticipant(sessionID, userID, color, isMobile)
		s.participants[sessionID] = p
	}
	p.attachConn(connID, c)
	return !ok
}

// RemoveConn detaches one connection from a participant and reports whether
// the participant itself is gone (its last connection was removed).
func (s *FileSession) RemoveConn(sessionID, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[sessionID]
	if !ok {
		return false
	}
	if p.detachConn(connID) == 0 {
		delete(s.participants, sessionID)
		return true
	}
	return false
}

// TouchParticipant records presence activity for a participant and returns
// the relay recipients, computed under the same lock.
func (s *FileSession) TouchParticipant(sessionID string, line *int, excludeConnID string) []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.participants[sessionID]; p != nil {
		p.touch(line)
	}
	return s.recipientsLocked(excludeConnID)
}

// Recipients returns every attached connection except excludeConnID. Pass an
// empty string to address all connections.
func (s *FileSession) Recipients(excludeConnID string) []Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipientsLocked(excludeConnID)
}

func (s *FileSession) recipientsLocked(excludeConnID string) []Client {
	var out []Client
	for _, p := range s.participants {
		for connID, c := range p.conns {
			if connID == excludeConnID {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// ListActiveUserIDs returns the distinct user IDs of the attached
// participants.
func (s *FileSession) ListActiveUserIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(s.participants))
	var out []int64
	for _, p := range s.participants {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p.UserID)
	}
	return out
}

// ParticipantCount returns the number of attached logical sessions.
func (s *FileSession) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}
