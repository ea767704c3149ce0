package store

import (
	"context"
	"fmt"
	"time"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

func (s *GORMStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return getByID[models.User](s.db, ctx, userID, fmt.Sprintf("user %d", userID))
}

func (s *GORMStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, convertNotFound(err, fmt.Sprintf("user %q", username))
	}
	return &user, nil
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, storeerrors.NewAlreadyExists(fmt.Sprintf("user %q", user.Username))
		}
		return nil, err
	}
	return user, nil
}

func (s *GORMStore) CreateLogin(ctx context.Context, login *models.Login) error {
	return s.db.WithContext(ctx).Create(login).Error
}

func (s *GORMStore) GetLogin(ctx context.Context, token string) (*models.Login, error) {
	var login models.Login
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&login).Error; err != nil {
		return nil, convertNotFound(err, "login token")
	}
	return &login, nil
}

func (s *GORMStore) DeleteExpiredLogins(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&models.Login{}, "expiration < ?", now)
	return result.RowsAffected, result.Error
}

// TrimLogins keeps the newest `keep` login rows of a user and deletes the
// rest, bounding token buildup from clients that never log out.
func (s *GORMStore) TrimLogins(ctx context.Context, userID int64, keep int) (int64, error) {
	var tokens []string
	err := s.db.WithContext(ctx).Model(&models.Login{}).
		Where("user_id = ?", userID).
		Order("expiration DESC").
		Offset(keep).
		Pluck("token", &tokens).Error
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Delete(&models.Login{}, "token IN ?", tokens)
	return result.RowsAffected, result.Error
}
