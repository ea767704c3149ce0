package store

import (
	"context"

	"gorm.io/gorm"
)

// orphanRules lists the referential cleanups run by CleanupOrphans,
// parents-first so a cascade completes in one pass: deleting an orphaned
// file makes its versions orphans for the following rule, not the next run.
var orphanRules = []struct {
	table string
	where string
}{
	{"assignments", "NOT EXISTS (SELECT 1 FROM users WHERE users.id = assignments.user_id) OR NOT EXISTS (SELECT 1 FROM projects WHERE projects.id = assignments.project_id)"},
	{"folders", "NOT EXISTS (SELECT 1 FROM projects WHERE projects.id = folders.project_id) OR (folders.parent_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM folders AS parents WHERE parents.id = folders.parent_id))"},
	{"files", "NOT EXISTS (SELECT 1 FROM projects WHERE projects.id = files.project_id) OR (files.parent_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM folders WHERE folders.id = files.parent_id))"},
	{"versions", "NOT EXISTS (SELECT 1 FROM files WHERE files.id = versions.file_id)"},
	{"messages", "NOT EXISTS (SELECT 1 FROM projects WHERE projects.id = messages.project_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = messages.user_id)"},
	{"selections", "NOT EXISTS (SELECT 1 FROM files WHERE files.id = selections.file_id) OR NOT EXISTS (SELECT 1 FROM messages WHERE messages.selection_id = selections.id)"},
	{"logins", "NOT EXISTS (SELECT 1 FROM users WHERE users.id = logins.user_id)"},
}

// CleanupOrphans deletes rows whose referenced parents are gone. Nested
// folder trees may need multiple worker runs to fully unwind; that is fine
// since the worker runs periodically.
func (s *GORMStore) CleanupOrphans(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rule := range orphanRules {
			result := tx.Exec("DELETE FROM " + rule.table + " WHERE " + rule.where)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				counts[rule.table] = result.RowsAffected
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
