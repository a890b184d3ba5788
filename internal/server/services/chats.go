package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var (
	errChatNotFound  = common.WithMessage(common.ErrorNotFound, "Chat not found")
	errNotInChat     = common.WithMessage(common.ErrorForbidden, "You are not a participant of this chat")
	errEmptyMessage  = common.NewValidationError("Message content is required")
	errChatPeerEmpty = common.NewValidationError("userId is required")
)

// ChatService manages direct chats between two users and their history.
type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewChatService(db *sql.DB, m repomanager.RepositoryManager) *ChatService {
	return &ChatService{db: db, repomanager: m}
}

// PairKey is the canonical key of a chat between the given users.
func PairKey(userIDs ...string) string {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// CreateOrGet returns the chat between requester and peer, creating it on
// first use. Repeated calls return the same chat.
func (s *ChatService) CreateOrGet(ctx context.Context, requesterID, peerID string) (*models.Chat, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, errChatPeerEmpty
	}
	if peerID == requesterID {
		return nil, common.NewValidationError("You cannot start a chat with yourself")
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, peerID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	var chat *models.Chat
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Chats(tx)

		c := &models.Chat{ID: uuid.NewString(), PairKey: PairKey(requesterID, peerID)}
		created, err := repo.Insert(ctx, c)
		if err != nil {
			return err
		}
		if created {
			chat = c
			return repo.AddParticipants(ctx, c.ID, []string{requesterID, peerID})
		}

		chat, err = repo.GetByPairKey(ctx, c.PairKey)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	if err := s.loadParticipants(ctx, []*models.Chat{chat}); err != nil {
		return nil, err
	}
	return chat, nil
}

// List returns the requester's chats with participants, most recently
// active first.
func (s *ChatService) List(ctx context.Context, requesterID string) ([]models.Chat, error) {
	chats, err := s.repomanager.Chats(s.db).ListByUser(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}

	ptrs := make([]*models.Chat, len(chats))
	for i := range chats {
		ptrs[i] = &chats[i]
	}
	if err := s.loadParticipants(ctx, ptrs); err != nil {
		return nil, err
	}
	return chats, nil
}

// Get returns the chat with participants and the full message history.
func (s *ChatService) Get(ctx context.Context, chatID, requesterID string) (*models.Chat, error) {
	chat, err := s.authorize(ctx, chatID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.loadParticipants(ctx, []*models.Chat{chat}); err != nil {
		return nil, err
	}
	chat.Messages, err = s.repomanager.Chats(s.db).Messages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	return chat, nil
}

// History returns the chat's messages oldest first.
func (s *ChatService) History(ctx context.Context, chatID, requesterID string) ([]models.Message, error) {
	if _, err := s.authorize(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	msgs, err := s.repomanager.Chats(s.db).Messages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage stores a message from the requester and returns the chat
// with its updated history.
func (s *ChatService) AppendMessage(ctx context.Context, chatID, requesterID, content string) (*models.Chat, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errEmptyMessage
	}
	if _, err := s.authorize(ctx, chatID, requesterID); err != nil {
		return nil, err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Chats(tx)
		msg := &models.Message{
			ID:       uuid.NewString(),
			ChatID:   chatID,
			SenderID: requesterID,
			Content:  content,
		}
		if err := repo.AddMessage(ctx, msg); err != nil {
			return err
		}
		return repo.Touch(ctx, chatID)
	})
	if err != nil {
		return nil, fmt.Errorf("error saving message: %w", err)
	}

	return s.Get(ctx, chatID, requesterID)
}

// CanJoin reports whether userID may subscribe to chatID on the relay.
func (s *ChatService) CanJoin(ctx context.Context, chatID, userID string) error {
	_, err := s.authorize(ctx, chatID, userID)
	return err
}

func (s *ChatService) authorize(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	repo := s.repomanager.Chats(s.db)

	chat, err := repo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errChatNotFound
		}
		return nil, fmt.Errorf("error loading chat: %w", err)
	}

	ok, err := repo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking participant: %w", err)
	}
	if !ok {
		return nil, errNotInChat
	}
	return chat, nil
}

func (s *ChatService) loadParticipants(ctx context.Context, chats []*models.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}

	byChat, err := s.repomanager.Chats(s.db).Participants(ctx, ids)
	if err != nil {
		return fmt.Errorf("error loading participants: %w", err)
	}
	for _, c := range chats {
		c.Participants = byChat[c.ID]
		if c.Participants == nil {
			c.Participants = []models.UserSummary{}
		}
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
	}
	return nil
}
