package state

import (
	"context"
	"fmt"
	"sync"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
)

// MemoryStore is an in-memory Store used by tests.
//
// FailWrites can be set to make every mutation fail, exercising the
// dirty-flag retry path of the persistence logic.
type MemoryStore struct {
	mu       sync.Mutex
	states   map[int64][][]byte
	versions map[int64][][]byte

	FailWrites bool
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[int64][][]byte),
		versions: make(map[int64][][]byte),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetState(_ context.Context, fileID int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates, ok := s.states[fileID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("state of file %d", fileID))
	}
	return cloneLog(updates), nil
}

func (s *MemoryStore) SetState(_ context.Context, fileID int64, updates [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return storeerrors.NewIO("write failed", nil)
	}
	s.states[fileID] = cloneLog(updates)
	return nil
}

func (s *MemoryStore) DeleteState(_ context.Context, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return storeerrors.NewIO("delete failed", nil)
	}
	delete(s.states, fileID)
	return nil
}

func (s *MemoryStore) GetVersionState(_ context.Context, versionID int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates, ok := s.versions[versionID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("state of version %d", versionID))
	}
	return cloneLog(updates), nil
}

func (s *MemoryStore) SetVersionState(_ context.Context, versionID int64, updates [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return storeerrors.NewIO("write failed", nil)
	}
	s.versions[versionID] = cloneLog(updates)
	return nil
}

func (s *MemoryStore) DeleteVersionState(_ context.Context, versionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return storeerrors.NewIO("delete failed", nil)
	}
	delete(s.versions, versionID)
	return nil
}

func (s *MemoryStore) ListStateIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) ListVersionStateIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.versions))
	for id := range s.versions {
		ids = append(ids, id)
	}
	return ids, nil
}

func cloneLog(updates [][]byte) [][]byte {
	out := make([][]byte, len(updates))
	for i, u := range updates {
		out[i] = append([]byte(nil), u...)
	}
	return out
}
