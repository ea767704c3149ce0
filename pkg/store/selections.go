package store

import (
	"context"
	"fmt"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

func (s *GORMStore) ListSelectionsByFile(ctx context.Context, fileID int64) ([]*models.Selection, error) {
	return listWhere[models.Selection](s.db, ctx, "file_id = ?", fileID)
}

func (s *GORMStore) CreateSelection(ctx context.Context, selection *models.Selection) (*models.Selection, error) {
	if err := s.db.WithContext(ctx).Create(selection).Error; err != nil {
		return nil, err
	}
	return selection, nil
}

func (s *GORMStore) UpdateSelection(ctx context.Context, selectionID int64, startOrigin, startSeq, endOrigin, endSeq float64) error {
	result := s.db.WithContext(ctx).Model(&models.Selection{}).Where("id = ?", selectionID).
		Updates(map[string]any{
			"start_origin": startOrigin,
			"start_seq":    startSeq,
			"end_origin":   endOrigin,
			"end_seq":      endSeq,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storeerrors.NewNotFound(fmt.Sprintf("selection %d", selectionID))
	}
	return nil
}

func (s *GORMStore) DeleteSelection(ctx context.Context, selectionID int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Selection{}, "id = ?", selectionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storeerrors.NewNotFound(fmt.Sprintf("selection %d", selectionID))
	}
	return nil
}
