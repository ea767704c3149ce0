package session

import "sync"

// LockTable tracks the per-file advisory restore lock. The lock is UI
// coordination, not a correctness mechanism: while a file is locked, updates
// pushed by other participants are still accepted and are expected to be
// superseded by the restore. That race is accepted; convergence comes from
// the commutative merge on the client side, not from this flag.
type LockTable struct {
	mu     sync.Mutex
	locked map[int64]string // file ID -> display name of the restoring user
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locked: make(map[int64]string)}
}

// Lock marks a file as mid-restore. Returns false if the file is already
// locked, in which case the caller must not start a second restore.
func (t *LockTable) Lock(fileID int64, byDisplayName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.locked[fileID]; held {
		return false
	}
	t.locked[fileID] = byDisplayName
	return true
}

// Unlock clears a file's restore lock. Unlocking an unlocked file is a no-op.
func (t *LockTable) Unlock(fileID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locked, fileID)
}

// Check reports whether a file is mid-restore and by whom.
func (t *LockTable) Check(fileID int64) (locked bool, byDisplayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, held := t.locked[fileID]
	return held, name
}
