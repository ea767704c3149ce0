package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

// maxEntryNameLength caps file and folder names.
const maxEntryNameLength = 50

func (s *GORMStore) GetFile(ctx context.Context, fileID int64) (*models.File, error) {
	return getByID[models.File](s.db, ctx, fileID, fmt.Sprintf("file %d", fileID))
}

func (s *GORMStore) ListFiles(ctx context.Context, projectID int64, parentID *int64) ([]*models.File, error) {
	results := []*models.File{}
	if err := inDirectory(s.db.WithContext(ctx), projectID, parentID).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CreateFile(ctx context.Context, file *models.File) (*models.File, error) {
	if err := validateEntryName(file.Name); err != nil {
		return nil, err
	}
	if err := s.CheckNameFree(ctx, file.ProjectID, file.ParentID, file.Name, 0); err != nil {
		return nil, err
	}
	if file.Changed.IsZero() {
		file.Changed = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (s *GORMStore) RenameFile(ctx context.Context, fileID int64, name string) error {
	if err := validateEntryName(name); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", fileID).Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	return nil
}

func (s *GORMStore) SetFileChangeData(ctx context.Context, fileID int64, changed time.Time, userID int64) error {
	result := s.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", fileID).
		Updates(map[string]any{"changed": changed, "user_id": userID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	return nil
}

func (s *GORMStore) DeleteFile(ctx context.Context, fileID int64) error {
	result := s.db.WithContext(ctx).Delete(&models.File{}, "id = ?", fileID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storeerrors.NewNotFound(fmt.Sprintf("file %d", fileID))
	}
	return nil
}

func (s *GORMStore) ListFileIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.WithContext(ctx).Model(&models.File{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GORMStore) DeleteFilesByIDs(ctx context.Context, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.File{}, "id IN ?", fileIDs).Error
}

// CheckNameFree rejects a name already carried by a sibling file (other than
// excludeFileID) or a sibling folder. Rename and restore both funnel through
// this check, so a version restore can fail only on a name collision.
func (s *GORMStore) CheckNameFree(ctx context.Context, projectID int64, parentID *int64, name string, excludeFileID int64) error {
	var count int64
	q := inDirectory(s.db.WithContext(ctx).Model(&models.File{}), projectID, parentID).
		Where("name = ?", name)
	if excludeFileID != 0 {
		q = q.Where("id <> ?", excludeFileID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storeerrors.NewNameCollision(name)
	}

	if err := inDirectory(s.db.WithContext(ctx).Model(&models.Folder{}), projectID, parentID).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storeerrors.NewNameCollision(name)
	}
	return nil
}

func validateEntryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return storeerrors.NewInvalidArgument("name must not be empty")
	}
	if len(name) > maxEntryNameLength {
		return &storeerrors.StoreError{
			Code:    storeerrors.ErrNameTooLong,
			Message: fmt.Sprintf("names may be at most %d characters", maxEntryNameLength),
		}
	}
	return nil
}
