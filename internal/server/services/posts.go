package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 50
)

var errPostNotFound = common.WithMessage(common.ErrorNotFound, "Post not found")

// PostService implements the feed, post lifecycle, likes and comments.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	logger      logging.Logger
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, logger logging.Logger) *PostService {
	return &PostService{db: db, repomanager: m, storage: st, logger: logger}
}

// MaxPage keeps (page-1)*limit within int for every accepted limit.
const MaxPage = math.MaxInt / MaxPageLimit

// NormalizePage applies feed paging defaults: page below 1 becomes 1, a
// missing limit becomes DefaultPageLimit and limits are capped at MaxPageLimit.
// Pages beyond MaxPage are clamped so the offset cannot overflow.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Feed returns one page of posts by the user and everyone they follow,
// newest first.
func (s *PostService) Feed(ctx context.Context, userID string, page, limit int) (*models.FeedPage, error) {
	page, limit = NormalizePage(page, limit)
	offset := (page - 1) * limit

	repo := s.repomanager.Posts(s.db)

	total, err := repo.CountFeed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting feed: %w", err)
	}

	items, err := repo.Feed(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error loading feed: %w", err)
	}

	if err := s.hydrate(ctx, items); err != nil {
		return nil, err
	}

	return &models.FeedPage{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// Create publishes a post. Either content or an image is required.
func (s *PostService) Create(ctx context.Context, userID, content string, image *Upload) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if image != nil && len(image.Data) == 0 {
		image = nil
	}
	if content == "" && image == nil {
		return nil, common.NewValidationError("Post content or image is required")
	}

	post := &models.Post{
		ID:      uuid.NewString(),
		UserID:  userID,
		Content: content,
	}

	if image != nil {
		contentType, ext, err := checkImage(image)
		if err != nil {
			return nil, err
		}
		post.Image = storage.NewKey("posts", ext)
		if err := s.storage.Put(ctx, post.Image, contentType, image.Data); err != nil {
			return nil, fmt.Errorf("error storing image: %w", err)
		}
	}

	if err := s.repomanager.Posts(s.db).Create(ctx, post); err != nil {
		if post.Image != "" {
			s.removeObject(ctx, post.Image)
		}
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	return s.Get(ctx, post.ID)
}

// Get returns a post with its likes and comments.
func (s *PostService) Get(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errPostNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}

	posts := []models.Post{*post}
	if err := s.hydrate(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListByUser returns all posts of userID, newest first.
func (s *PostService) ListByUser(ctx context.Context, userID string) ([]models.Post, error) {
	items, err := s.repomanager.Posts(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading posts: %w", err)
	}
	if err := s.hydrate(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Like adds the user's like. It reports whether the like is new and the
// resulting like count; liking twice leaves the count unchanged.
func (s *PostService) Like(ctx context.Context, postID, userID string) (bool, int, error) {
	return s.toggleLike(ctx, postID, userID, true)
}

// Unlike removes the user's like. It reports whether a like was removed and
// the resulting like count.
func (s *PostService) Unlike(ctx context.Context, postID, userID string) (bool, int, error) {
	return s.toggleLike(ctx, postID, userID, false)
}

func (s *PostService) toggleLike(ctx context.Context, postID, userID string, like bool) (bool, int, error) {
	var changed bool
	var count int

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)

		if _, err := repo.GetByID(ctx, postID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errPostNotFound
			}
			return err
		}

		var err error
		if like {
			changed, err = repo.Like(ctx, postID, userID)
		} else {
			changed, err = repo.Unlike(ctx, postID, userID)
		}
		if err != nil {
			return err
		}

		count, err = repo.CountLikes(ctx, postID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, 0, err
		}
		return false, 0, fmt.Errorf("error updating likes: %w", err)
	}

	return changed, count, nil
}

// Comment appends a comment to the post.
func (s *PostService) Comment(ctx context.Context, postID, userID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.NewValidationError("Comment content is required")
	}

	repo := s.repomanager.Posts(s.db)

	if _, err := repo.GetByID(ctx, postID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errPostNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}

	comment := &models.Comment{
		ID:      uuid.NewString(),
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := repo.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("error adding comment: %w", err)
	}
	return comment, nil
}

// Delete removes a post owned by userID together with its likes, comments
// and stored image. Anyone else gets common.ErrorForbidden.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	repo := s.repomanager.Posts(s.db)

	post, err := repo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errPostNotFound
		}
		return fmt.Errorf("error loading post: %w", err)
	}

	if post.UserID != userID {
		return common.WithMessage(common.ErrorForbidden, "You are not authorized to delete this post")
	}

	if err := repo.Delete(ctx, postID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errPostNotFound
		}
		return fmt.Errorf("error deleting post: %w", err)
	}

	if post.Image != "" {
		s.removeObject(ctx, post.Image)
	}
	return nil
}

// hydrate loads likes and comments for items in two queries.
func (s *PostService) hydrate(ctx context.Context, items []models.Post) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	repo := s.repomanager.Posts(s.db)

	likes, err := repo.LoadLikes(ctx, ids)
	if err != nil {
		return fmt.Errorf("error loading likes: %w", err)
	}
	comments, err := repo.LoadComments(ctx, ids)
	if err != nil {
		return fmt.Errorf("error loading comments: %w", err)
	}

	for i := range items {
		items[i].Likes = likes[items[i].ID]
		if items[i].Likes == nil {
			items[i].Likes = []string{}
		}
		items[i].Comments = comments[items[i].ID]
		if items[i].Comments == nil {
			items[i].Comments = []models.Comment{}
		}
	}
	return nil
}

func (s *PostService) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to remove stored image", "key", key, "error", err)
	}
}
