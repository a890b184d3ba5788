package follows

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Follow records the edge and reports whether it was new.
func (r *PostgresRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	query :=
		`INSERT INTO follows (follower_id, followee_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `
	return r.exec(ctx, query, followerID, followeeID)
}

// Unfollow removes the edge and reports whether it existed.
func (r *PostgresRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	query :=
		`DELETE FROM follows
		 WHERE follower_id = $1 AND followee_id = $2
		 `
	return r.exec(ctx, query, followerID, followeeID)
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

func (r *PostgresRepository) Followers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	query :=
		`SELECT u.id, u.username, u.profile_picture
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.followee_id = $1
		 ORDER BY f.created_at
		 `
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) Following(ctx context.Context, userID string) ([]models.UserSummary, error) {
	query :=
		`SELECT u.id, u.username, u.profile_picture
		 FROM follows f JOIN users u ON u.id = f.followee_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at
		 `
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query, userID string) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return users.ScanSummaries(rows)
}
