package users

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	EnableTwoFactor(ctx context.Context, id, secret string) error
	SetProfilePicture(ctx context.Context, id, key string) error
	Search(ctx context.Context, keyword, excludeID string, limit int) ([]models.UserSummary, error)
}
