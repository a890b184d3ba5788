package chats

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

type Repository interface {
	// Insert creates the chat unless one with the same pair key exists.
	// It reports whether a row was created.
	Insert(ctx context.Context, chat *models.Chat) (bool, error)
	GetByPairKey(ctx context.Context, pairKey string) (*models.Chat, error)
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	AddParticipants(ctx context.Context, chatID string, userIDs []string) error
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	Participants(ctx context.Context, chatIDs []string) (map[string][]models.UserSummary, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chat, error)
	Touch(ctx context.Context, chatID string) error

	AddMessage(ctx context.Context, msg *models.Message) error
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
}
