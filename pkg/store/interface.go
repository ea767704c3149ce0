// Package store provides the relational persistence layer.
//
// Two backends are supported through GORM:
//   - SQLite (single-node, default)
//   - PostgreSQL
//
// Content blobs (update logs) are not handled here; see pkg/store/state.
package store

import (
	"context"
	"time"

	"github.com/pmpwsk/cocoding/pkg/store/models"
)

// Store is the relational persistence interface.
//
// Thread Safety: implementations must be safe for concurrent use from
// multiple goroutines.
//
// Missing records are reported as *errors.StoreError with code ErrNotFound
// (pkg/store/errors); callers branch with errors.IsNotFound.
type Store interface {
	// ============================================
	// FILE OPERATIONS
	// ============================================

	// GetFile returns a file row by ID.
	GetFile(ctx context.Context, fileID int64) (*models.File, error)

	// ListFiles returns all files in the given project directory.
	// parentID nil means the project root.
	ListFiles(ctx context.Context, projectID int64, parentID *int64) ([]*models.File, error)

	// CreateFile inserts a new file row and returns it with its generated ID.
	CreateFile(ctx context.Context, file *models.File) (*models.File, error)

	// RenameFile updates a file's name. The caller is responsible for
	// sibling-collision checks (see CheckNameFree).
	RenameFile(ctx context.Context, fileID int64, name string) error

	// SetFileChangeData updates the changed timestamp and last-editor of a file.
	SetFileChangeData(ctx context.Context, fileID int64, changed time.Time, userID int64) error

	// DeleteFile removes a file row.
	DeleteFile(ctx context.Context, fileID int64) error

	// ListFileIDs returns the IDs of all file rows. Used by the persistence
	// worker to reconcile rows against state blobs.
	ListFileIDs(ctx context.Context) ([]int64, error)

	// DeleteFilesByIDs removes the given file rows; missing IDs are ignored.
	DeleteFilesByIDs(ctx context.Context, fileIDs []int64) error

	// CheckNameFree returns a name-collision error if a sibling file or
	// folder (excluding excludeFileID) already carries the given name.
	CheckNameFree(ctx context.Context, projectID int64, parentID *int64, name string, excludeFileID int64) error

	// ============================================
	// PROJECT / FOLDER / ASSIGNMENT OPERATIONS
	// ============================================

	// GetProject returns a project row by ID.
	GetProject(ctx context.Context, projectID int64) (*models.Project, error)

	// CreateProject inserts a new project and returns it with its generated ID.
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)

	// ListFolders returns all folders in the given project directory.
	ListFolders(ctx context.Context, projectID int64, parentID *int64) ([]*models.Folder, error)

	// CreateFolder inserts a new folder and returns it with its generated ID.
	CreateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error)

	// GetRole returns the role the user holds in the project, or RoleNone if
	// no assignment exists.
	GetRole(ctx context.Context, projectID, userID int64) (models.ProjectRole, error)

	// SetRole creates or updates the user's assignment in the project.
	SetRole(ctx context.Context, projectID, userID int64, role models.ProjectRole) error

	// ============================================
	// USER / LOGIN OPERATIONS
	// ============================================

	// GetUser returns a user row by ID.
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// GetUserByUsername returns a user row by username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// CreateUser inserts a new user and returns it with its generated ID.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)

	// CreateLogin inserts a login-token row.
	CreateLogin(ctx context.Context, login *models.Login) error

	// GetLogin returns the login row for a token, regardless of expiration.
	GetLogin(ctx context.Context, token string) (*models.Login, error)

	// DeleteExpiredLogins removes every login row past its expiration and
	// returns the number of rows removed.
	DeleteExpiredLogins(ctx context.Context, now time.Time) (int64, error)

	// TrimLogins caps the number of login rows per user, deleting the oldest
	// beyond keep. Returns the number of rows removed.
	TrimLogins(ctx context.Context, userID int64, keep int) (int64, error)

	// ============================================
	// SELECTION OPERATIONS
	// ============================================

	// ListSelectionsByFile returns all selections anchored in the file.
	ListSelectionsByFile(ctx context.Context, fileID int64) ([]*models.Selection, error)

	// CreateSelection inserts a selection and returns it with its generated ID.
	CreateSelection(ctx context.Context, selection *models.Selection) (*models.Selection, error)

	// UpdateSelection rewrites the coordinates of an existing selection.
	UpdateSelection(ctx context.Context, selectionID int64, startOrigin, startSeq, endOrigin, endSeq float64) error

	// DeleteSelection removes a selection row.
	DeleteSelection(ctx context.Context, selectionID int64) error

	// ============================================
	// VERSION OPERATIONS
	// ============================================

	// GetVersion returns a version row by ID.
	GetVersion(ctx context.Context, versionID int64) (*models.Version, error)

	// ListVersionsByFile returns all saved versions of a file, newest first.
	ListVersionsByFile(ctx context.Context, fileID int64) ([]*models.Version, error)

	// CreateVersion inserts a version row and returns it with its generated ID.
	CreateVersion(ctx context.Context, version *models.Version) (*models.Version, error)

	// ListVersionIDs returns the IDs of all version rows.
	ListVersionIDs(ctx context.Context) ([]int64, error)

	// ============================================
	// MAINTENANCE
	// ============================================

	// CleanupOrphans deletes rows whose parents no longer exist (assignments
	// without users or projects, folders without projects or parent folders,
	// files without projects or parent folders, versions without files,
	// selections without files or messages, messages without projects or
	// users, logins without users). Returns per-table deletion counts for
	// tables that had deletions.
	CleanupOrphans(ctx context.Context) (map[string]int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}
