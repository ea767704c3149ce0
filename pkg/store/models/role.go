package models

import "math"

// ProjectRole is the role a user holds within a project. Roles are ordered:
// a larger value grants every right of a smaller one.
type ProjectRole int32

const (
	// RoleNone means the user has no access to the project.
	RoleNone ProjectRole = 0

	// RoleParticipant may open and edit files.
	RoleParticipant ProjectRole = 1

	// RoleManager may additionally manage files, folders and versions.
	RoleManager ProjectRole = 2

	// RoleOwner holds every right including project deletion. The value is
	// pinned to the maximum so ordering comparisons always favor the owner.
	RoleOwner ProjectRole = math.MaxInt32
)

// String returns a human-readable name for the role.
func (r ProjectRole) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleParticipant:
		return "participant"
	case RoleManager:
		return "manager"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}
