package session

import "sync"

// Observer receives notifications about session membership changes. External
// collaborators (file tree UI, chat presence) subscribe through the hub
// instead of coupling to its internals.
type Observer interface {
	// UserListChanged fires when the set of users attached to a file changes.
	// userIDs is the complete new set, not a delta.
	UserListChanged(fileID int64, userIDs []int64)
}

// observerList is a concurrency-safe subscriber set.
type observerList struct {
	mu   sync.RWMutex
	subs []Observer
}

func (l *observerList) subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, o)
}

func (l *observerList) notifyUserListChanged(fileID int64, userIDs []int64) {
	l.mu.RLock()
	subs := make([]Observer, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	for _, o := range subs {
		o.UserListChanged(fileID, userIDs)
	}
}
