package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// countingStateStore counts GetState calls to prove single-load semantics.
type countingStateStore struct {
	*state.MemoryStore
	loads atomic.Int64
}

func (c *countingStateStore) GetState(ctx context.Context, fileID int64) ([][]byte, error) {
	c.loads.Add(1)
	return c.MemoryStore.GetState(ctx, fileID)
}

func TestGetOrCreate_NotFoundForMissingFile(t *testing.T) {
	env := newTestEnv()

	_, err := env.registry.GetOrCreate(context.Background(), 12345)
	if !storeerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetOrCreate_SingleLoadUnderConcurrency(t *testing.T) {
	rel := newFakeStore()
	counting := &countingStateStore{MemoryStore: state.NewMemoryStore()}
	registry := NewRegistry(rel, counting)

	ctx := context.Background()
	file, _ := rel.CreateFile(ctx, &models.File{ProjectID: 1, Name: "doc"})
	_ = counting.SetState(ctx, file.ID, state.EmptyDocument())

	const callers = 32
	sessions := make([]*FileSession, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := registry.GetOrCreate(ctx, file.ID)
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("caller %d received a different session instance", i)
		}
	}
	if got := counting.loads.Load(); got != 1 {
		t.Errorf("durable state was loaded %d times, want exactly 1", got)
	}
}

func TestGetOrCreate_LoadsSelectionAnchors(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	sel, _ := env.rel.CreateSelection(ctx, &models.Selection{
		FileID: fileID, StartOrigin: 1, StartSeq: 2, EndOrigin: 3, EndSeq: 4,
	})

	s, err := env.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	anchors := s.Anchors()
	if len(anchors) != 1 {
		t.Fatalf("anchor count = %d, want 1", len(anchors))
	}
	if anchors[0].SelectionID != sel.ID || anchors[0].EndSeq != 4 {
		t.Errorf("loaded anchor = %+v", anchors[0])
	}
}

func TestRemove_EvictsSession(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	s, err := env.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if evicted := env.registry.Remove(fileID); evicted != s {
		t.Error("Remove should return the evicted session")
	}
	if env.registry.Get(fileID) != nil {
		t.Error("session should not be resident after Remove")
	}
	if evicted := env.registry.Remove(fileID); evicted != nil {
		t.Error("removing a missing session should return nil")
	}
}

func TestForEach_VisitsAllSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	ids := map[int64]bool{}
	for _, name := range []string{"a", "b", "c"} {
		fileID := env.seedFile(name)
		ids[fileID] = false
		if _, err := env.registry.GetOrCreate(ctx, fileID); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	}

	env.registry.ForEach(func(s *FileSession) {
		ids[s.FileID()] = true
	})
	for id, visited := range ids {
		if !visited {
			t.Errorf("session %d was not visited", id)
		}
	}
	if env.registry.Len() != 3 {
		t.Errorf("Len = %d, want 3", env.registry.Len())
	}
}
