package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

// fakeStore is an in-memory relational store for hub and worker tests.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	files      map[int64]*models.File
	folders    map[int64]*models.Folder
	projects   map[int64]*models.Project
	users      map[int64]*models.User
	roles      map[string]models.ProjectRole // "projectID/userID"
	selections map[int64]*models.Selection
	versions   map[int64]*models.Version
	logins     map[string]*models.Login

	orphanCleanups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:      make(map[int64]*models.File),
		folders:    make(map[int64]*models.Folder),
		projects:   make(map[int64]*models.Project),
		users:      make(map[int64]*models.User),
		roles:      make(map[string]models.ProjectRole),
		selections: make(map[int64]*models.Selection),
		versions:   make(map[int64]*models.Version),
		logins:     make(map[string]*models.Login),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func roleKey(projectID, userID int64) string {
	return fmt.Sprintf("%d/%d", projectID, userID)
}

func (f *fakeStore) GetFile(_ context.Context, fileID int64) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	copied := *file
	return &copied, nil
}

func (f *fakeStore) ListFiles(_ context.Context, projectID int64, parentID *int64) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, file := range f.files {
		if file.ProjectID == projectID && sameParent(file.ParentID, parentID) {
			copied := *file
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateFile(_ context.Context, file *models.File) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file.ID = f.id()
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeStore) RenameFile(_ context.Context, fileID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	file.Name = name
	return nil
}

func (f *fakeStore) SetFileChangeData(_ context.Context, fileID int64, changed time.Time, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	file.Changed = changed
	file.UserID = userID
	return nil
}

func (f *fakeStore) DeleteFile(_ context.Context, fileID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeStore) ListFileIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) DeleteFilesByIDs(_ context.Context, fileIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range fileIDs {
		delete(f.files, id)
	}
	return nil
}

func (f *fakeStore) CheckNameFree(_ context.Context, projectID int64, parentID *int64, name string, excludeFileID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, file := range f.files {
		if id != excludeFileID && file.ProjectID == projectID && sameParent(file.ParentID, parentID) && file.Name == name {
			return storeerrors.NewNameCollision(name)
		}
	}
	for _, folder := range f.folders {
		if folder.ProjectID == projectID && sameParent(folder.ParentID, parentID) && folder.Name == name {
			return storeerrors.NewNameCollision(name)
		}
	}
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, projectID int64) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("project %d", projectID))
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) CreateProject(_ context.Context, project *models.Project) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project.ID = f.id()
	f.projects[project.ID] = project
	return project, nil
}

func (f *fakeStore) ListFolders(_ context.Context, projectID int64, parentID *int64) ([]*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Folder
	for _, folder := range f.folders {
		if folder.ProjectID == projectID && sameParent(folder.ParentID, parentID) {
			copied := *folder
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateFolder(_ context.Context, folder *models.Folder) (*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder.ID = f.id()
	f.folders[folder.ID] = folder
	return folder, nil
}

func (f *fakeStore) GetRole(_ context.Context, projectID, userID int64) (models.ProjectRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[roleKey(projectID, userID)], nil
}

func (f *fakeStore) SetRole(_ context.Context, projectID, userID int64, role models.ProjectRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[roleKey(projectID, userID)] = role
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("user %d", userID))
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storeerrors.NewNotFound(fmt.Sprintf("user %q", username))
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.id()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) CreateLogin(_ context.Context, login *models.Login) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins[login.Token] = login
	return nil
}

func (f *fakeStore) GetLogin(_ context.Context, token string) (*models.Login, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.logins[token]
	if !ok {
		return nil, storeerrors.NewNotFound("login token")
	}
	copied := *l
	return &copied, nil
}

func (f *fakeStore) DeleteExpiredLogins(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for token, l := range f.logins {
		if l.Expiration.Before(now) {
			delete(f.logins, token)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) TrimLogins(_ context.Context, _ int64, _ int) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ListSelectionsByFile(_ context.Context, fileID int64) ([]*models.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Selection
	for _, sel := range f.selections {
		if sel.FileID == fileID {
			copied := *sel
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSelection(_ context.Context, selection *models.Selection) (*models.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	selection.ID = f.id()
	f.selections[selection.ID] = selection
	return selection, nil
}

func (f *fakeStore) UpdateSelection(_ context.Context, selectionID int64, startOrigin, startSeq, endOrigin, endSeq float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel, ok := f.selections[selectionID]
	if !ok {
		return storeerrors.NewNotFound(fmt.Sprintf("selection %d", selectionID))
	}
	sel.StartOrigin, sel.StartSeq = startOrigin, startSeq
	sel.EndOrigin, sel.EndSeq = endOrigin, endSeq
	return nil
}

func (f *fakeStore) DeleteSelection(_ context.Context, selectionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.selections, selectionID)
	return nil
}

func (f *fakeStore) GetVersion(_ context.Context, versionID int64) (*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[versionID]
	if !ok {
		return nil, storeerrors.NewNotFound(fmt.Sprintf("version %d", versionID))
	}
	copied := *v
	return &copied, nil
}

func (f *fakeStore) ListVersionsByFile(_ context.Context, fileID int64) ([]*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Version
	for _, v := range f.versions {
		if v.FileID == fileID {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateVersion(_ context.Context, version *models.Version) (*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	version.ID = f.id()
	f.versions[version.ID] = version
	return version, nil
}

func (f *fakeStore) ListVersionIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.versions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) CleanupOrphans(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orphanCleanups++
	return map[string]int64{}, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// clientEvent records one callback delivered to a fake client.
type clientEvent struct {
	kind      string
	fileID    int64
	payload   []byte
	sessionID string
	name      string
	changed   time.Time
	aborted   bool
	message   string
}

// fakeClient records every callback in arrival order.
type fakeClient struct {
	mu     sync.Mutex
	events []clientEvent
}

func (c *fakeClient) record(e clientEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *fakeClient) ApplyUpdate(fileID int64, fragment []byte) {
	c.record(clientEvent{kind: "ApplyUpdate", fileID: fileID, payload: fragment})
}

func (c *fakeClient) ReceiveAwareness(fileID int64, state []byte, sessionID string, _ *int) {
	c.record(clientEvent{kind: "ReceiveAwareness", fileID: fileID, payload: state, sessionID: sessionID})
}

func (c *fakeClient) BroadcastAwarenessRequest(fileID int64, sessionID, displayName string) {
	c.record(clientEvent{kind: "BroadcastAwarenessRequest", fileID: fileID, sessionID: sessionID, name: displayName})
}

func (c *fakeClient) FileDeleted(fileID int64) {
	c.record(clientEvent{kind: "FileDeleted", fileID: fileID})
}

func (c *fakeClient) LockEditor(fileID int64, byDisplayName string) {
	c.record(clientEvent{kind: "LockEditor", fileID: fileID, name: byDisplayName})
}

func (c *fakeClient) UnlockEditor(fileID int64, changed time.Time, byDisplayName string, aborted bool) {
	c.record(clientEvent{kind: "UnlockEditor", fileID: fileID, changed: changed, name: byDisplayName, aborted: aborted})
}

func (c *fakeClient) Error(message string) {
	c.record(clientEvent{kind: "Error", message: message})
}

func (c *fakeClient) eventKinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, len(c.events))
	for i, e := range c.events {
		kinds[i] = e.kind
	}
	return kinds
}

func (c *fakeClient) countKind(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (c *fakeClient) snapshot() []clientEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]clientEvent(nil), c.events...)
}

// fakeConn is a fake editor connection: identity plus a recording client.
type fakeConn struct {
	*fakeClient
	connID    string
	sessionID string
	userID    int64
}

func newFakeConn(connID, sessionID string, userID int64) *fakeConn {
	return &fakeConn{fakeClient: &fakeClient{}, connID: connID, sessionID: sessionID, userID: userID}
}

func (c *fakeConn) ID() string        { return c.connID }
func (c *fakeConn) SessionID() string { return c.sessionID }
func (c *fakeConn) UserID() int64     { return c.userID }

// testEnv bundles a hub with its backing fakes and a seeded project/user.
type testEnv struct {
	hub       *Hub
	registry  *Registry
	locks     *LockTable
	rel       *fakeStore
	states    *state.MemoryStore
	projectID int64
	userID    int64
}

func newTestEnv() *testEnv {
	rel := newFakeStore()
	states := state.NewMemoryStore()
	registry := NewRegistry(rel, states)
	locks := NewLockTable()
	hub := NewHub(registry, locks, rel, states, nil)

	ctx := context.Background()
	project, _ := rel.CreateProject(ctx, &models.Project{Name: "demo"})
	user, _ := rel.CreateUser(ctx, &models.User{Username: "alice", DisplayName: "Alice"})
	_ = rel.SetRole(ctx, project.ID, user.ID, models.RoleOwner)

	return &testEnv{
		hub:       hub,
		registry:  registry,
		locks:     locks,
		rel:       rel,
		states:    states,
		projectID: project.ID,
		userID:    user.ID,
	}
}

// seedFile creates a file row with an empty-document state blob and returns
// its ID.
func (e *testEnv) seedFile(name string) int64 {
	ctx := context.Background()
	file, _ := e.rel.CreateFile(ctx, &models.File{
		ProjectID: e.projectID,
		Name:      name,
		Changed:   time.Now().UTC(),
		UserID:    e.userID,
	})
	_ = e.states.SetState(ctx, file.ID, state.EmptyDocument())
	return file.ID
}

// addUser creates another user with the participant role in the project.
func (e *testEnv) addUser(username string) int64 {
	ctx := context.Background()
	user, _ := e.rel.CreateUser(ctx, &models.User{Username: username})
	_ = e.rel.SetRole(ctx, e.projectID, user.ID, models.RoleParticipant)
	return user.ID
}
