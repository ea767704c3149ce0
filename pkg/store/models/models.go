// Package models defines the relational entities of the cocoding server:
// projects, folders, files, users, project assignments, selections, saved
// versions, login tokens and messages.
//
// Update-log content is NOT stored here; see pkg/store/state. The rows in
// this package carry the metadata mirrored from live file sessions (changed
// timestamp, last editor) and the records the persistence worker reconciles
// against state blobs.
package models

import "time"

// Project groups folders and files and carries the role assignments that
// gate editor access.
type Project struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null;size:50" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Project) TableName() string { return "projects" }

// Folder is a directory within a project. ParentID is nil for folders in the
// project root.
type Folder struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID int64  `gorm:"index;not null" json:"project_id"`
	ParentID  *int64 `gorm:"index" json:"parent_id,omitempty"`
	Name      string `gorm:"not null;size:50" json:"name"`
}

func (Folder) TableName() string { return "folders" }

// File is the metadata row of a document. The document content itself lives
// in the state store as an update log; Changed and UserID mirror the live
// session's last-change metadata and are rewritten on every persist.
type File struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID int64     `gorm:"index;not null" json:"project_id"`
	ParentID  *int64    `gorm:"index" json:"parent_id,omitempty"`
	Name      string    `gorm:"not null;size:50" json:"name"`
	Changed   time.Time `gorm:"not null" json:"changed"`
	UserID    int64     `gorm:"not null" json:"user_id"` // last editor
}

func (File) TableName() string { return "files" }

// User is an account that can be assigned to projects and edit files.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	DisplayName  string    `gorm:"size:255" json:"display_name,omitempty"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// GetDisplayName returns the display name, or the username if none is set.
func (u *User) GetDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Assignment binds a user to a project with a role.
type Assignment struct {
	ProjectID int64       `gorm:"primaryKey;autoIncrement:false" json:"project_id"`
	UserID    int64       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Role      ProjectRole `gorm:"not null" json:"role"`
}

func (Assignment) TableName() string { return "assignments" }

// Selection is a persisted text selection, anchored by two CRDT coordinate
// pairs (origin, sequence). The coordinates are opaque to the server beyond
// equality and offset arithmetic; they are rebased when the editor re-origins
// the text they point into.
type Selection struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID      int64   `gorm:"index;not null" json:"file_id"`
	StartOrigin float64 `gorm:"not null" json:"start_origin"`
	StartSeq    float64 `gorm:"not null" json:"start_seq"`
	EndOrigin   float64 `gorm:"not null" json:"end_origin"`
	EndSeq      float64 `gorm:"not null" json:"end_seq"`
}

func (Selection) TableName() string { return "selections" }

// Version is a named snapshot of a file. Its update log is stored in the
// state store under the version ID; Name preserves the file name at snapshot
// time so a restore can bring it back.
type Version struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID  int64     `gorm:"index;not null" json:"file_id"`
	Name    string    `gorm:"not null;size:50" json:"name"`
	Changed time.Time `gorm:"not null" json:"changed"`
	UserID  int64     `gorm:"not null" json:"user_id"`
	Label   string    `gorm:"size:25" json:"label,omitempty"`
	Comment string    `gorm:"size:200" json:"comment,omitempty"`
}

func (Version) TableName() string { return "versions" }

// Login is a session token row. Token is stored hashed upstream of this
// package; expired rows are purged by the worker.
type Login struct {
	Token      string    `gorm:"primaryKey;size:128" json:"-"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	Expiration time.Time `gorm:"index;not null" json:"expiration"`
}

func (Login) TableName() string { return "logins" }

// Message is a discussion comment within a project, optionally anchored to a
// text range via a selection row.
type Message struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID   int64     `gorm:"index;not null" json:"project_id"`
	UserID      int64     `gorm:"not null" json:"user_id"`
	SelectionID *int64    `gorm:"index" json:"selection_id,omitempty"`
	Content     string    `gorm:"not null;size:2000" json:"content"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
