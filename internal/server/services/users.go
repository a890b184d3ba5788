package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
)

const searchLimit = 20

var errUserNotFound = common.WithMessage(common.ErrorNotFound, "User not found")

// UserService serves profiles, the follow graph, search and profile pictures.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, logger logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, storage: st, logger: logger}
}

// Profile returns the user with followers and following resolved.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	follows := s.repomanager.Follows(s.db)

	followers, err := follows.Followers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading followers: %w", err)
	}
	following, err := follows.Following(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading following: %w", err)
	}

	return &models.Profile{User: user, Followers: followers, Following: following}, nil
}

// Search finds users whose username or email contains keyword, ignoring
// case and excluding the requester. A blank keyword matches nobody.
func (s *UserService) Search(ctx context.Context, keyword, requesterID string) ([]models.UserSummary, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []models.UserSummary{}, nil
	}

	result, err := s.repomanager.Users(s.db).Search(ctx, keyword, requesterID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("error searching users: %w", err)
	}
	return result, nil
}

// Follow makes requesterID follow targetID. It reports whether the edge is new.
func (s *UserService) Follow(ctx context.Context, requesterID, targetID string) (bool, error) {
	if requesterID == targetID {
		return false, common.NewValidationError("You cannot follow yourself")
	}
	if err := s.ensureUser(ctx, targetID); err != nil {
		return false, err
	}

	created, err := s.repomanager.Follows(s.db).Follow(ctx, requesterID, targetID)
	if err != nil {
		return false, fmt.Errorf("error following user: %w", err)
	}
	return created, nil
}

// Unfollow removes the edge. It reports whether the edge existed.
func (s *UserService) Unfollow(ctx context.Context, requesterID, targetID string) (bool, error) {
	if requesterID == targetID {
		return false, common.NewValidationError("You cannot unfollow yourself")
	}
	if err := s.ensureUser(ctx, targetID); err != nil {
		return false, err
	}

	removed, err := s.repomanager.Follows(s.db).Unfollow(ctx, requesterID, targetID)
	if err != nil {
		return false, fmt.Errorf("error unfollowing user: %w", err)
	}
	return removed, nil
}

// UploadProfilePicture stores the image and points the user at it. The
// previous picture, if any, is removed best-effort. It returns the new key.
func (s *UserService) UploadProfilePicture(ctx context.Context, userID string, upload *Upload) (string, error) {
	if upload == nil || len(upload.Data) == 0 {
		return "", common.NewValidationError("No file uploaded")
	}
	contentType, ext, err := checkImage(upload)
	if err != nil {
		return "", err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", errUserNotFound
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	key := storage.NewKey("profiles", ext)
	if err := s.storage.Put(ctx, key, contentType, upload.Data); err != nil {
		return "", fmt.Errorf("error storing image: %w", err)
	}

	if err := repo.SetProfilePicture(ctx, userID, key); err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, common.ErrorNotFound) {
			return "", errUserNotFound
		}
		return "", fmt.Errorf("error saving profile picture: %w", err)
	}

	if user.ProfilePicture != "" {
		s.removeObject(ctx, user.ProfilePicture)
	}

	return key, nil
}

func (s *UserService) ensureUser(ctx context.Context, id string) error {
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("error loading user: %w", err)
	}
	return nil
}

func (s *UserService) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to remove stored image", "key", key, "error", err)
	}
}
