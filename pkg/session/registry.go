package session

import (
	"context"
	"sync"

	"github.com/pmpwsk/cocoding/pkg/store"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// Registry owns the process-wide map from file ID to FileSession. Sessions
// are created lazily on first attach, loading the update log and selection
// anchors from durable storage, and removed only when the file itself is
// deleted. The registry's own lock guards map access only; session use never
// holds it.
type Registry struct {
	rel    store.Store
	states state.Store

	mu       sync.Mutex
	sessions map[int64]*FileSession
	loading  map[int64]*pendingLoad
}

// pendingLoad lets concurrent GetOrCreate calls for the same unseen file wait
// for the single in-flight load instead of loading twice. session and err are
// written before done is closed.
type pendingLoad struct {
	done    chan struct{}
	session *FileSession
	err     error
}

// NewRegistry creates an empty registry backed by the given stores.
func NewRegistry(rel store.Store, states state.Store) *Registry {
	return &Registry{
		rel:      rel,
		states:   states,
		sessions: make(map[int64]*FileSession),
		loading:  make(map[int64]*pendingLoad),
	}
}

// GetOrCreate returns the live session for a file, loading it from durable
// storage if it is not yet resident. Concurrent calls for the same file
// perform exactly one load and all receive the same instance. Returns a
// not-found error when no durable record exists; callers treat that as "file
// does not exist" and reject the attach.
func (r *Registry) GetOrCreate(ctx context.Context, fileID int64) (*FileSession, error) {
	r.mu.Lock()
	if s, ok := r.sessions[fileID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	if p, ok := r.loading[fileID]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.session, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p := &pendingLoad{done: make(chan struct{})}
	r.loading[fileID] = p
	r.mu.Unlock()

	s, err := r.load(ctx, fileID)

	r.mu.Lock()
	if err == nil {
		r.sessions[fileID] = s
	}
	delete(r.loading, fileID)
	r.mu.Unlock()

	p.session, p.err = s, err
	close(p.done)
	return s, err
}

// load reads the file row, its update log and its selection rows. Not
// exported; callers go through GetOrCreate.
func (r *Registry) load(ctx context.Context, fileID int64) (*FileSession, error) {
	file, err := r.rel.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	updates, err := r.states.GetState(ctx, fileID)
	if err != nil {
		return nil, err
	}
	selections, err := r.rel.ListSelectionsByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	s := newFileSession(fileID, updates, file.Changed, file.UserID, r.rel, r.states)
	for _, sel := range selections {
		s.anchors[sel.ID] = &Anchor{
			SelectionID: sel.ID,
			StartOrigin: sel.StartOrigin,
			StartSeq:    sel.StartSeq,
			EndOrigin:   sel.EndOrigin,
			EndSeq:      sel.EndSeq,
		}
	}
	return s, nil
}

// Get returns the resident session for a file, or nil if none is loaded.
func (r *Registry) Get(fileID int64) *FileSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[fileID]
}

// Remove evicts a session, used when its file is deleted. It returns the
// evicted session (nil if none was resident) so the caller can notify its
// participants. An in-flight Persist finishes normally; the session simply
// stops being reachable for new attaches.
func (r *Registry) Remove(fileID int64) *FileSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[fileID]
	delete(r.sessions, fileID)
	return s
}

// ForEach visits every resident session. The snapshot is taken under a short
// registry lock and the visitor runs outside it, so a slow visitor does not
// block new attaches.
func (r *Registry) ForEach(visit func(*FileSession)) {
	r.mu.Lock()
	snapshot := make([]*FileSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		visit(s)
	}
}

// Len returns the number of resident sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ResidentIDs returns the file IDs of all resident sessions.
func (r *Registry) ResidentIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
