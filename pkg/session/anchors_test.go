package session

import (
	"context"
	"testing"

	"github.com/pmpwsk/cocoding/pkg/store/models"
)

func seedAnchor(env *testEnv, s *FileSession, fileID int64, startOrigin, startSeq, endOrigin, endSeq float64) int64 {
	sel, _ := env.rel.CreateSelection(context.Background(), &models.Selection{
		FileID:      fileID,
		StartOrigin: startOrigin,
		StartSeq:    startSeq,
		EndOrigin:   endOrigin,
		EndSeq:      endSeq,
	})
	s.AddAnchor(Anchor{
		SelectionID: sel.ID,
		StartOrigin: startOrigin,
		StartSeq:    startSeq,
		EndOrigin:   endOrigin,
		EndSeq:      endSeq,
	})
	return sel.ID
}

func TestRebaseAnchors_RewritesOnlyExactMatches(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	s, err := env.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Anchors inside the rebased range [seq 10, 10+3).
	inside := seedAnchor(env, s, fileID, 1, 10, 1, 12)
	// Anchor with unrelated coordinates.
	outside := seedAnchor(env, s, fileID, 2, 10, 2, 50)
	// Anchor just past the range end.
	pastEnd := seedAnchor(env, s, fileID, 1, 13, 1, 99)

	if err := s.RebaseAnchors(ctx, 1, 10, 7, 100, 3, false); err != nil {
		t.Fatalf("RebaseAnchors failed: %v", err)
	}

	anchors := s.Anchors()
	if len(anchors) != 3 {
		t.Fatalf("anchor count changed: got %d, want 3", len(anchors))
	}

	byID := make(map[int64]Anchor)
	for _, a := range anchors {
		byID[a.SelectionID] = a
	}

	got := byID[inside]
	if got.StartOrigin != 7 || got.StartSeq != 100 {
		t.Errorf("start not rebased: got (%v,%v), want (7,100)", got.StartOrigin, got.StartSeq)
	}
	if got.EndOrigin != 7 || got.EndSeq != 102 {
		t.Errorf("end not rebased: got (%v,%v), want (7,102)", got.EndOrigin, got.EndSeq)
	}

	if a := byID[outside]; a.StartOrigin != 2 || a.StartSeq != 10 || a.EndOrigin != 2 || a.EndSeq != 50 {
		t.Errorf("unrelated anchor was modified: %+v", a)
	}
	if a := byID[pastEnd]; a.StartOrigin != 1 || a.StartSeq != 13 {
		t.Errorf("anchor past the range end was modified: %+v", a)
	}

	// Rewrites must have been persisted.
	rows, _ := env.rel.ListSelectionsByFile(ctx, fileID)
	for _, row := range rows {
		if row.ID == inside && (row.StartSeq != 100 || row.EndSeq != 102) {
			t.Errorf("rebased anchor not persisted: %+v", row)
		}
	}
}

func TestRebaseAnchors_EndOnlySkipsStarts(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	s, err := env.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Start and end share the old coordinate; endOnly must move only the end.
	id := seedAnchor(env, s, fileID, 1, 10, 1, 10)

	if err := s.RebaseAnchors(ctx, 1, 10, 7, 100, 1, true); err != nil {
		t.Fatalf("RebaseAnchors failed: %v", err)
	}

	a := s.Anchors()[0]
	if a.SelectionID != id {
		t.Fatalf("unexpected anchor %d", a.SelectionID)
	}
	if a.StartOrigin != 1 || a.StartSeq != 10 {
		t.Errorf("start moved despite endOnly: (%v,%v)", a.StartOrigin, a.StartSeq)
	}
	if a.EndOrigin != 7 || a.EndSeq != 100 {
		t.Errorf("end not rebased: (%v,%v), want (7,100)", a.EndOrigin, a.EndSeq)
	}
}

func TestRebaseAnchors_FirstMatchPerOffset(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	s, err := env.registry.GetOrCreate(ctx, fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Two anchors whose starts collide on the same coordinate: only the
	// first (lowest selection ID) is rewritten per offset.
	first := seedAnchor(env, s, fileID, 1, 10, 9, 90)
	second := seedAnchor(env, s, fileID, 1, 10, 9, 91)

	if err := s.RebaseAnchors(ctx, 1, 10, 7, 100, 1, false); err != nil {
		t.Fatalf("RebaseAnchors failed: %v", err)
	}

	byID := make(map[int64]Anchor)
	for _, a := range s.Anchors() {
		byID[a.SelectionID] = a
	}

	if a := byID[first]; a.StartOrigin != 7 || a.StartSeq != 100 {
		t.Errorf("first anchor not rebased: (%v,%v)", a.StartOrigin, a.StartSeq)
	}
	if a := byID[second]; a.StartOrigin != 1 || a.StartSeq != 10 {
		t.Errorf("second anchor should keep its coordinate: (%v,%v)", a.StartOrigin, a.StartSeq)
	}
}

func TestAddRemoveAnchor(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")

	s, err := env.registry.GetOrCreate(context.Background(), fileID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	s.AddAnchor(Anchor{SelectionID: 42, StartOrigin: 1, StartSeq: 2, EndOrigin: 3, EndSeq: 4})
	if got := len(s.Anchors()); got != 1 {
		t.Fatalf("anchor count = %d, want 1", got)
	}

	s.RemoveAnchor(42)
	if got := len(s.Anchors()); got != 0 {
		t.Errorf("anchor count after remove = %d, want 0", got)
	}

	// Removing an unknown anchor is a no-op.
	s.RemoveAnchor(42)
}

func TestHubSelectionSurface(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	conn := newFakeConn("conn-1", "sess-1", env.userID)
	if err := env.hub.EnterFile(ctx, conn, fileID, "#000", false); err != nil {
		t.Fatalf("EnterFile failed: %v", err)
	}

	sel, err := env.hub.AddSelection(ctx, &models.Selection{
		FileID:      fileID,
		StartOrigin: 1,
		StartSeq:    5,
		EndOrigin:   1,
		EndSeq:      8,
	})
	if err != nil {
		t.Fatalf("AddSelection failed: %v", err)
	}

	s := env.registry.Get(fileID)
	if got := len(s.Anchors()); got != 1 {
		t.Fatalf("live anchor count = %d, want 1", got)
	}

	// Rebase through the relay surface and verify both the live anchor and
	// the persisted row moved.
	if err := env.hub.UpdateSelections(ctx, conn, fileID, 1, 5, 3, 50, 1, false); err != nil {
		t.Fatalf("UpdateSelections failed: %v", err)
	}
	a := s.Anchors()[0]
	if a.StartOrigin != 3 || a.StartSeq != 50 {
		t.Errorf("live start = (%v, %v), want (3, 50)", a.StartOrigin, a.StartSeq)
	}
	rows, err := env.rel.ListSelectionsByFile(ctx, fileID)
	if err != nil {
		t.Fatalf("ListSelectionsByFile failed: %v", err)
	}
	if rows[0].StartOrigin != 3 || rows[0].StartSeq != 50 {
		t.Errorf("persisted start = (%v, %v), want (3, 50)", rows[0].StartOrigin, rows[0].StartSeq)
	}

	if err := env.hub.RemoveSelection(ctx, fileID, sel.ID); err != nil {
		t.Fatalf("RemoveSelection failed: %v", err)
	}
	if got := len(s.Anchors()); got != 0 {
		t.Errorf("live anchor count after remove = %d, want 0", got)
	}

	// A deleted file is signalled, not an error.
	if err := env.hub.UpdateSelections(ctx, conn, 999, 1, 1, 2, 2, 1, false); err != nil {
		t.Fatalf("UpdateSelections on missing file: %v", err)
	}
	if conn.countKind("FileDeleted") == 0 {
		t.Error("expected FileDeleted signal for missing file")
	}
}
