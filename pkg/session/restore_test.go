package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pmpwsk/cocoding/pkg/store/models"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// seedVersion stores a version row and its state blob for a file.
func (e *testEnv) seedVersion(fileID int64, name string, updates [][]byte) int64 {
	ctx := context.Background()
	version, _ := e.rel.CreateVersion(ctx, &models.Version{
		FileID:  fileID,
		Name:    name,
		Changed: time.Now().UTC().Add(-time.Hour),
		UserID:  e.userID,
	})
	_ = e.states.SetVersionState(ctx, version.ID, updates)
	return version.ID
}

func TestRestoreVersion_Success(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	versionBytes := [][]byte{[]byte("version-state")}
	versionID := env.seedVersion(fileID, "doc", versionBytes)

	userB := env.addUser("bob")
	connA := newFakeConn("conn-a", "sess-a", env.userID)
	connB := newFakeConn("conn-b", "sess-b", userB)
	mustEnter(t, env, ctx, connA, fileID)
	mustEnter(t, env, ctx, connB, fileID)

	// Divergent live edits the restore must supersede.
	env.hub.PushUpdate(connA, fileID, []byte("divergent"), nil)

	aborted, err := env.hub.RestoreVersion(ctx, connA, fileID, versionID)
	if err != nil {
		t.Fatalf("RestoreVersion failed: %v", err)
	}
	if aborted {
		t.Fatal("restore should not abort")
	}

	// B sees LockEditor before any state change and UnlockEditor after.
	var lockIdx, unlockIdx = -1, -1
	for i, e := range connB.snapshot() {
		switch e.kind {
		case "LockEditor":
			lockIdx = i
		case "UnlockEditor":
			unlockIdx = i
			if e.aborted {
				t.Error("UnlockEditor reports aborted=true on success")
			}
			if e.name != "Alice" {
				t.Errorf("UnlockEditor carries name %q, want Alice", e.name)
			}
		}
	}
	if lockIdx == -1 || unlockIdx == -1 || lockIdx > unlockIdx {
		t.Fatalf("B events = %v, want LockEditor before UnlockEditor", connB.eventKinds())
	}

	// A subsequent load returns the version's bytes.
	updates := env.hub.Load(connB, fileID)
	if len(updates) != 1 || !bytes.Equal(updates[0], versionBytes[0]) {
		t.Errorf("log after restore = %v, want version state", updates)
	}

	// The restore persisted immediately.
	stored, err := env.states.GetState(ctx, fileID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if len(stored) != 1 || !bytes.Equal(stored[0], versionBytes[0]) {
		t.Errorf("durable log after restore = %v, want version state", stored)
	}

	if locked, _ := env.hub.CheckLocked(fileID); locked {
		t.Error("lock must be released after restore")
	}
}

func TestRestoreVersion_AbortsOnNameCollision(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	// The version remembers an old name now taken by a sibling.
	env.seedFile("old-name")
	versionID := env.seedVersion(fileID, "old-name", [][]byte{[]byte("version-state")})

	userB := env.addUser("bob")
	connA := newFakeConn("conn-a", "sess-a", env.userID)
	connB := newFakeConn("conn-b", "sess-b", userB)
	mustEnter(t, env, ctx, connA, fileID)
	mustEnter(t, env, ctx, connB, fileID)

	s := env.registry.Get(fileID)
	before, _, _ := s.Snapshot()

	aborted, err := env.hub.RestoreVersion(ctx, connA, fileID, versionID)
	if err != nil {
		t.Fatalf("RestoreVersion returned error: %v", err)
	}
	if !aborted {
		t.Fatal("restore should abort on name collision")
	}

	after, _, _ := s.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("log changed despite abort: %d -> %d fragments", len(before), len(after))
	}
	for i := range before {
		if !bytes.Equal(before[i], after[i]) {
			t.Fatalf("fragment %d changed despite abort", i)
		}
	}

	events := connB.snapshot()
	found := false
	for _, e := range events {
		if e.kind == "UnlockEditor" {
			found = true
			if !e.aborted {
				t.Error("UnlockEditor should report aborted=true")
			}
		}
	}
	if !found {
		t.Fatalf("B events = %v, want an UnlockEditor broadcast", connB.eventKinds())
	}

	file, _ := env.rel.GetFile(ctx, fileID)
	if file.Name != "doc" {
		t.Errorf("file renamed despite abort: %q", file.Name)
	}
	if locked, _ := env.hub.CheckLocked(fileID); locked {
		t.Error("lock must be released after an aborted restore")
	}
}

// hookedStates lets a test run code at the moment a restore loads the
// version's state, while the advisory lock is held.
type hookedStates struct {
	state.Store
	onGetVersionState func()
}

func (s *hookedStates) GetVersionState(ctx context.Context, versionID int64) ([][]byte, error) {
	if s.onGetVersionState != nil {
		s.onGetVersionState()
	}
	return s.Store.GetVersionState(ctx, versionID)
}

func TestRestoreVersion_UnlocksMidRestoreJoiner(t *testing.T) {
	rel := newFakeStore()
	states := &hookedStates{Store: state.NewMemoryStore()}
	registry := NewRegistry(rel, states)
	locks := NewLockTable()
	hub := NewHub(registry, locks, rel, states, nil)

	ctx := context.Background()
	project, _ := rel.CreateProject(ctx, &models.Project{Name: "demo"})
	alice, _ := rel.CreateUser(ctx, &models.User{Username: "alice", DisplayName: "Alice"})
	_ = rel.SetRole(ctx, project.ID, alice.ID, models.RoleOwner)
	bob, _ := rel.CreateUser(ctx, &models.User{Username: "bob"})
	_ = rel.SetRole(ctx, project.ID, bob.ID, models.RoleParticipant)

	file, _ := rel.CreateFile(ctx, &models.File{ProjectID: project.ID, Name: "doc", UserID: alice.ID})
	_ = states.SetState(ctx, file.ID, state.EmptyDocument())
	version, _ := rel.CreateVersion(ctx, &models.Version{FileID: file.ID, Name: "doc", UserID: alice.ID})
	_ = states.SetVersionState(ctx, version.ID, [][]byte{[]byte("v")})

	connA := newFakeConn("conn-a", "sess-a", alice.ID)
	if err := hub.EnterFile(ctx, connA, file.ID, "#f00", false); err != nil {
		t.Fatalf("A EnterFile failed: %v", err)
	}

	// B attaches while the restore holds the lock, after the initial
	// LockEditor broadcast already went out.
	connB := newFakeConn("conn-b", "sess-b", bob.ID)
	states.onGetVersionState = func() {
		states.onGetVersionState = nil
		if err := hub.EnterFile(ctx, connB, file.ID, "#00f", false); err != nil {
			t.Fatalf("B EnterFile failed: %v", err)
		}
	}

	aborted, err := hub.RestoreVersion(ctx, connA, file.ID, version.ID)
	if err != nil || aborted {
		t.Fatalf("RestoreVersion failed: aborted=%v err=%v", aborted, err)
	}

	kinds := connB.eventKinds()
	if len(kinds) == 0 || kinds[0] != "LockEditor" {
		t.Fatalf("B events = %v, want LockEditor on attach", kinds)
	}
	if got := connB.countKind("UnlockEditor"); got != 1 {
		t.Fatalf("B received %d UnlockEditor events, want 1; events = %v", got, kinds)
	}
}

func TestRestoreVersion_RenamesToVersionName(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("renamed-later")
	ctx := context.Background()

	versionID := env.seedVersion(fileID, "original", [][]byte{[]byte("v")})

	connA := newFakeConn("conn-a", "sess-a", env.userID)
	mustEnter(t, env, ctx, connA, fileID)

	aborted, err := env.hub.RestoreVersion(ctx, connA, fileID, versionID)
	if err != nil || aborted {
		t.Fatalf("RestoreVersion failed: aborted=%v err=%v", aborted, err)
	}

	file, _ := env.rel.GetFile(ctx, fileID)
	if file.Name != "original" {
		t.Errorf("file name = %q, want the version's stored name", file.Name)
	}
}

func TestRestoreVersion_RejectsConcurrentRestore(t *testing.T) {
	env := newTestEnv()
	fileID := env.seedFile("doc")
	ctx := context.Background()

	versionID := env.seedVersion(fileID, "doc", [][]byte{[]byte("v")})

	connA := newFakeConn("conn-a", "sess-a", env.userID)
	mustEnter(t, env, ctx, connA, fileID)

	env.locks.Lock(fileID, "Someone")
	if _, err := env.hub.RestoreVersion(ctx, connA, fileID, versionID); err == nil {
		t.Fatal("restore while already locked should fail")
	}
}
