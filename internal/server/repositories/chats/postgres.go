package chats

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

func (r *PostgresRepository) Insert(ctx context.Context, chat *models.Chat) (bool, error) {
	query :=
		`INSERT INTO chats (id, pair_key)
		 VALUES ($1, $2)
		 ON CONFLICT (pair_key) DO NOTHING
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, chat.ID, chat.PairKey).Scan(&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) GetByPairKey(ctx context.Context, pairKey string) (*models.Chat, error) {
	return r.getOne(ctx, `SELECT id, pair_key, created_at, updated_at FROM chats WHERE pair_key = $1`, pairKey)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	return r.getOne(ctx, `SELECT id, pair_key, created_at, updated_at FROM chats WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (*models.Chat, error) {
	chat := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&chat.ID, &chat.PairKey, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chat, nil
}

func (r *PostgresRepository) AddParticipants(ctx context.Context, chatID string, userIDs []string) error {
	query :=
		`INSERT INTO chat_participants (chat_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `
	for _, id := range userIDs {
		if _, err := r.db.ExecContext(ctx, query, chatID, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Participants returns the members of each chat ordered by username.
func (r *PostgresRepository) Participants(ctx context.Context, chatIDs []string) (map[string][]models.UserSummary, error) {
	result := make(map[string][]models.UserSummary, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}

	query :=
		`SELECT cp.chat_id, u.id, u.username, u.profile_picture
		 FROM chat_participants cp JOIN users u ON u.id = cp.user_id
		 WHERE cp.chat_id = ANY($1)
		 ORDER BY u.username
		 `

	rows, err := r.db.QueryContext(ctx, query, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chatID string
		var u models.UserSummary
		if err := rows.Scan(&chatID, &u.ID, &u.Username, &u.ProfilePicture); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[chatID] = append(result[chatID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// ListByUser returns the chats userID takes part in, most recently active first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	query :=
		`SELECT c.id, c.pair_key, c.created_at, c.updated_at
		 FROM chats c JOIN chat_participants cp ON cp.chat_id = c.id
		 WHERE cp.user_id = $1
		 ORDER BY c.updated_at DESC, c.id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Chat, 0)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, chatID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	query :=
		`INSERT INTO messages (id, chat_id, sender_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, msg.ID, msg.ChatID, msg.SenderID, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Messages returns the chat history oldest first.
func (r *PostgresRepository) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	query :=
		`SELECT m.id, m.chat_id, m.sender_id, u.username, u.profile_picture, m.content, m.created_at
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.chat_id = $1
		 ORDER BY m.created_at, m.id
		 `

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Sender.Username, &m.Sender.ProfilePicture,
			&m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Sender.ID = m.SenderID
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
