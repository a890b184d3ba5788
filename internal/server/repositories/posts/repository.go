package posts

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

// Repository reads and writes posts, likes and comments. Posts returned by
// the list and get methods carry their author but not likes or comments;
// use LoadLikes and LoadComments to hydrate them.
type Repository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	Feed(ctx context.Context, userID string, limit, offset int) ([]models.Post, error)
	CountFeed(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]models.Post, error)

	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)
	LoadLikes(ctx context.Context, postIDs []string) (map[string][]string, error)

	AddComment(ctx context.Context, comment *models.Comment) error
	LoadComments(ctx context.Context, postIDs []string) (map[string][]models.Comment, error)
}
