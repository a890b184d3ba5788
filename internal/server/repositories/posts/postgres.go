package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const postSelect = `SELECT p.id, p.user_id, u.username, u.profile_picture, p.content, p.image, p.created_at
		 FROM posts p JOIN users u ON u.id = p.user_id`

// feedFilter selects the requester's own posts and posts of everyone they follow.
const feedFilter = `p.user_id = $1 OR p.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1)`

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) error {
	query :=
		`INSERT INTO posts (id, user_id, content, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		post.ID, post.UserID, post.Content, post.Image).Scan(&post.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := postSelect + ` WHERE p.id = $1`

	post := &models.Post{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.UserID, &post.Author.Username, &post.Author.ProfilePicture,
		&post.Content, &post.Image, &post.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	post.Author.ID = post.UserID

	return post, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Feed returns a newest-first page of the requester's feed. Ties on
// created_at are broken by id so pages are stable.
func (r *PostgresRepository) Feed(ctx context.Context, userID string, limit, offset int) ([]models.Post, error) {
	query := postSelect + `
		 WHERE ` + feedFilter + `
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2 OFFSET $3
		 `
	return r.list(ctx, query, userID, limit, offset)
}

func (r *PostgresRepository) CountFeed(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM posts p WHERE ` + feedFilter

	var total int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

// ListByUser returns the user's posts newest first. A malformed user id
// simply matches nothing.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Post, error) {
	query := postSelect + `
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC, p.id DESC
		 `
	items, err := r.list(ctx, query, userID)
	if err != nil && dbx.IsInvalidTextRepresentation(err) {
		return []models.Post{}, nil
	}
	return items, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Post, 0)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Author.Username, &p.Author.ProfilePicture,
			&p.Content, &p.Image, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Author.ID = p.UserID
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// Like adds userID to the post's likes and reports whether it was new.
func (r *PostgresRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	query :=
		`INSERT INTO post_likes (post_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `
	return r.exec(ctx, query, postID, userID)
}

// Unlike removes userID from the post's likes and reports whether it was there.
func (r *PostgresRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	query :=
		`DELETE FROM post_likes
		 WHERE post_id = $1 AND user_id = $2
		 `
	return r.exec(ctx, query, postID, userID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// LoadLikes returns the liking user ids per post, oldest like first.
func (r *PostgresRepository) LoadLikes(ctx context.Context, postIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	query :=
		`SELECT post_id, user_id FROM post_likes
		 WHERE post_id = ANY($1)
		 ORDER BY created_at, user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, postIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[postID] = append(result[postID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	query :=
		`INSERT INTO comments (id, post_id, user_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		comment.ID, comment.PostID, comment.UserID, comment.Content).Scan(&comment.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// LoadComments returns comments per post in the order they were added.
func (r *PostgresRepository) LoadComments(ctx context.Context, postIDs []string) (map[string][]models.Comment, error) {
	result := make(map[string][]models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	query :=
		`SELECT c.id, c.post_id, c.user_id, u.username, u.profile_picture, c.content, c.created_at
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = ANY($1)
		 ORDER BY c.created_at, c.id
		 `

	rows, err := r.db.QueryContext(ctx, query, postIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Author.Username, &c.Author.ProfilePicture,
			&c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.Author.ID = c.UserID
		result[c.PostID] = append(result[c.PostID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
