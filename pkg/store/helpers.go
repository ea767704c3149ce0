package store

import (
	"context"

	"gorm.io/gorm"
)

// Generic GORM helpers shared by the entity files. They operate on the raw
// *gorm.DB and handle context propagation and not-found conversion so the
// per-entity methods stay short.

// getByID retrieves a single record of type T by primary key.
func getByID[T any](db *gorm.DB, ctx context.Context, id any, what string) (*T, error) {
	var result T
	if err := db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		return nil, convertNotFound(err, what)
	}
	return &result, nil
}

// listWhere retrieves all records of type T matching the query.
// Returns an empty slice (not nil) when no records match.
func listWhere[T any](db *gorm.DB, ctx context.Context, query string, args ...any) ([]*T, error) {
	results := []*T{}
	if err := db.WithContext(ctx).Where(query, args...).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// inDirectory scopes a query to one project directory; parentID nil selects
// the project root.
func inDirectory(db *gorm.DB, projectID int64, parentID *int64) *gorm.DB {
	if parentID == nil {
		return db.Where("project_id = ? AND parent_id IS NULL", projectID)
	}
	return db.Where("project_id = ? AND parent_id = ?", projectID, *parentID)
}
