package state

import "context"

// Store is the durable home of update logs, keyed by file ID for current
// document states and by version ID for saved versions.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// GetState returns the current update log of a file.
	// Returns a StoreError with code ErrNotFound if no state blob exists.
	GetState(ctx context.Context, fileID int64) ([][]byte, error)

	// SetState atomically replaces the current update log of a file.
	SetState(ctx context.Context, fileID int64, updates [][]byte) error

	// DeleteState removes a file's state blob. Deleting a missing blob is not
	// an error.
	DeleteState(ctx context.Context, fileID int64) error

	// GetVersionState returns the update log of a saved version.
	// Returns a StoreError with code ErrNotFound if no blob exists.
	GetVersionState(ctx context.Context, versionID int64) ([][]byte, error)

	// SetVersionState writes the update log of a saved version.
	SetVersionState(ctx context.Context, versionID int64, updates [][]byte) error

	// DeleteVersionState removes a version's state blob. Deleting a missing
	// blob is not an error.
	DeleteVersionState(ctx context.Context, versionID int64) error

	// ListStateIDs returns the IDs of all stored file-state blobs.
	// Used by the persistence worker to find orphaned blobs.
	ListStateIDs(ctx context.Context) ([]int64, error)

	// ListVersionStateIDs returns the IDs of all stored version-state blobs.
	ListVersionStateIDs(ctx context.Context) ([]int64, error)

	// Close releases the underlying storage.
	Close() error
}
