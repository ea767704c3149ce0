package store

import (
	"context"
	"fmt"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

const (
	maxVersionLabelLength   = 25
	maxVersionCommentLength = 200
)

func (s *GORMStore) GetVersion(ctx context.Context, versionID int64) (*models.Version, error) {
	return getByID[models.Version](s.db, ctx, versionID, fmt.Sprintf("version %d", versionID))
}

func (s *GORMStore) ListVersionsByFile(ctx context.Context, fileID int64) ([]*models.Version, error) {
	results := []*models.Version{}
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("changed DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CreateVersion(ctx context.Context, version *models.Version) (*models.Version, error) {
	if err := validateEntryName(version.Name); err != nil {
		return nil, err
	}
	if len(version.Label) > maxVersionLabelLength {
		return nil, storeerrors.NewInvalidArgument(
			fmt.Sprintf("labels may be at most %d characters", maxVersionLabelLength))
	}
	if len(version.Comment) > maxVersionCommentLength {
		return nil, storeerrors.NewInvalidArgument(
			fmt.Sprintf("comments may be at most %d characters", maxVersionCommentLength))
	}
	if err := s.db.WithContext(ctx).Create(version).Error; err != nil {
		return nil, err
	}
	return version, nil
}

func (s *GORMStore) ListVersionIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.WithContext(ctx).Model(&models.Version{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
