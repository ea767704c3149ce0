// Package auth resolves login tokens to users and gates editor access by
// project role. Tokens are opaque random strings stored with an expiration;
// the persistence worker purges expired rows, and token creation caps the
// number of live tokens per user.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pmpwsk/cocoding/internal/logger"
	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/store/models"
)

// Store is the slice of the relational store the auth service needs.
// *store.GORMStore satisfies it.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	CreateLogin(ctx context.Context, login *models.Login) error
	GetLogin(ctx context.Context, token string) (*models.Login, error)
	TrimLogins(ctx context.Context, userID int64, keep int) (int64, error)
	GetRole(ctx context.Context, projectID, userID int64) (models.ProjectRole, error)
}

const (
	// tokenBytes is the entropy of a login token before hex encoding.
	tokenBytes = 32

	// MaxLoginsPerUser caps the live tokens a single user may hold; the
	// oldest are trimmed when a new login pushes past the cap.
	MaxLoginsPerUser = 20

	// DefaultTokenTTL is how long a login token stays valid.
	DefaultTokenTTL = 90 * 24 * time.Hour
)

// Service implements authentication against the relational store.
type Service struct {
	rel      Store
	tokenTTL time.Duration
}

// NewService creates an auth service. A zero ttl selects DefaultTokenTTL.
func NewService(rel Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{rel: rel, tokenTTL: ttl}
}

// Login validates a username/password pair and issues a fresh login token.
func (s *Service) Login(ctx context.Context, username, password string) (token string, user *models.User, err error) {
	user, err = s.rel.GetUserByUsername(ctx, username)
	if err != nil {
		if storeerrors.IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err = s.CreateToken(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// CreateToken issues a login token for a user and trims that user's oldest
// tokens past the per-user cap.
func (s *Service) CreateToken(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate login token: %w", err)
	}
	token := hex.EncodeToString(buf)

	err := s.rel.CreateLogin(ctx, &models.Login{
		Token:      token,
		UserID:     userID,
		Expiration: time.Now().UTC().Add(s.tokenTTL),
	})
	if err != nil {
		return "", err
	}

	if trimmed, err := s.rel.TrimLogins(ctx, userID, MaxLoginsPerUser); err != nil {
		logger.Warn("Trimming login tokens failed", logger.KeyUserID, userID, logger.KeyError, err)
	} else if trimmed > 0 {
		logger.Debug("Trimmed login tokens", logger.KeyUserID, userID, logger.KeyCount, trimmed)
	}
	return token, nil
}

// ResolveToken returns the user a token belongs to. Expired or unknown
// tokens yield a not-found error; expiry enforcement does not wait for the
// worker's purge.
func (s *Service) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	login, err := s.rel.GetLogin(ctx, token)
	if err != nil {
		return nil, err
	}
	if login.Expiration.Before(time.Now().UTC()) {
		return nil, storeerrors.NewNotFound("login token")
	}
	return s.rel.GetUser(ctx, login.UserID)
}

// RequireRole fails with an access-denied error unless the user holds at
// least the given role in the project.
func (s *Service) RequireRole(ctx context.Context, projectID, userID int64, min models.ProjectRole) error {
	role, err := s.rel.GetRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if role < min {
		return storeerrors.NewAccessDenied(
			fmt.Sprintf("user %d needs role %s in project %d", userID, min, projectID))
	}
	return nil
}

// Register creates a user account with a hashed password.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.rel.CreateUser(ctx, &models.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
	})
}
