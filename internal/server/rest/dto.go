package rest

import (
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
)

// JSON field names follow the API's established contract (_id, camelCase).

type userSummaryDTO struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

type userDTO struct {
	ID               string           `json:"_id"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	ProfilePicture   string           `json:"profilePicture"`
	TwoFactorEnabled bool             `json:"twoFactorEnabled"`
	Followers        []userSummaryDTO `json:"followers"`
	Following        []userSummaryDTO `json:"following"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type authResponse struct {
	ID               string `json:"_id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	ProfilePicture   string `json:"profilePicture"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	Token            string `json:"token"`
}

type commentDTO struct {
	ID        string         `json:"_id"`
	User      userSummaryDTO `json:"user"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

type postDTO struct {
	ID        string         `json:"_id"`
	User      userSummaryDTO `json:"user"`
	Content   string         `json:"content"`
	Image     *string        `json:"image"`
	Likes     []string       `json:"likes"`
	Comments  []commentDTO   `json:"comments"`
	CreatedAt time.Time      `json:"createdAt"`
}

type feedDTO struct {
	Items   []postDTO `json:"items"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
}

type messageDTO struct {
	ID        string         `json:"_id"`
	Chat      string         `json:"chat"`
	Sender    userSummaryDTO `json:"sender"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

type chatDTO struct {
	ID           string           `json:"_id"`
	Participants []userSummaryDTO `json:"participants"`
	Messages     []messageDTO     `json:"messages"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func toUserSummary(u models.UserSummary) userSummaryDTO {
	return userSummaryDTO{ID: u.ID, Username: u.Username, ProfilePicture: storage.PublicURL(u.ProfilePicture)}
}

func toUserSummaries(in []models.UserSummary) []userSummaryDTO {
	out := make([]userSummaryDTO, len(in))
	for i, u := range in {
		out[i] = toUserSummary(u)
	}
	return out
}

func toProfile(p *models.Profile) userDTO {
	return userDTO{
		ID:               p.User.ID,
		Username:         p.User.Username,
		Email:            p.User.Email,
		ProfilePicture:   storage.PublicURL(p.User.ProfilePicture),
		TwoFactorEnabled: p.User.TwoFactorEnabled,
		Followers:        toUserSummaries(p.Followers),
		Following:        toUserSummaries(p.Following),
		CreatedAt:        p.User.CreatedAt,
	}
}

func toAuthResponse(u *models.User, token string) authResponse {
	return authResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		ProfilePicture:   storage.PublicURL(u.ProfilePicture),
		TwoFactorEnabled: u.TwoFactorEnabled,
		Token:            token,
	}
}

func toPost(p *models.Post) postDTO {
	dto := postDTO{
		ID:        p.ID,
		User:      toUserSummary(p.Author),
		Content:   p.Content,
		Likes:     p.Likes,
		Comments:  make([]commentDTO, len(p.Comments)),
		CreatedAt: p.CreatedAt,
	}
	if dto.Likes == nil {
		dto.Likes = []string{}
	}
	if p.Image != "" {
		url := storage.PublicURL(p.Image)
		dto.Image = &url
	}
	for i, c := range p.Comments {
		dto.Comments[i] = commentDTO{
			ID:        c.ID,
			User:      toUserSummary(c.Author),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
	}
	return dto
}

func toPosts(in []models.Post) []postDTO {
	out := make([]postDTO, len(in))
	for i := range in {
		out[i] = toPost(&in[i])
	}
	return out
}

func toMessages(in []models.Message) []messageDTO {
	out := make([]messageDTO, len(in))
	for i, m := range in {
		out[i] = messageDTO{
			ID:        m.ID,
			Chat:      m.ChatID,
			Sender:    toUserSummary(m.Sender),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}

func toChat(c *models.Chat) chatDTO {
	return chatDTO{
		ID:           c.ID,
		Participants: toUserSummaries(c.Participants),
		Messages:     toMessages(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toChats(in []models.Chat) []chatDTO {
	out := make([]chatDTO, len(in))
	for i := range in {
		out[i] = toChat(&in[i])
	}
	return out
}
