package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pmpwsk/cocoding/pkg/store/models"
)

func (s *GORMStore) GetProject(ctx context.Context, projectID int64) (*models.Project, error) {
	return getByID[models.Project](s.db, ctx, projectID, fmt.Sprintf("project %d", projectID))
}

func (s *GORMStore) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	if err := validateEntryName(project.Name); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (s *GORMStore) ListFolders(ctx context.Context, projectID int64, parentID *int64) ([]*models.Folder, error) {
	results := []*models.Folder{}
	if err := inDirectory(s.db.WithContext(ctx), projectID, parentID).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CreateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	if err := validateEntryName(folder.Name); err != nil {
		return nil, err
	}
	if err := s.CheckNameFree(ctx, folder.ProjectID, folder.ParentID, folder.Name, 0); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		return nil, err
	}
	return folder, nil
}

// GetRole returns RoleNone when no assignment row exists; absence of access
// is not an error.
func (s *GORMStore) GetRole(ctx context.Context, projectID, userID int64) (models.ProjectRole, error) {
	var assignment models.Assignment
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, err
	}
	return assignment.Role, nil
}

func (s *GORMStore) SetRole(ctx context.Context, projectID, userID int64, role models.ProjectRole) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Assignment
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.Assignment{ProjectID: projectID, UserID: userID, Role: role}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).
			Where("project_id = ? AND user_id = ?", projectID, userID).
			Update("role", role).Error
	})
}
