package models

import "time"

// Chat is a direct conversation. PairKey is the sorted participant ids
// joined by ":" and is unique per pair.
type Chat struct {
	ID           string
	PairKey      string
	Participants []UserSummary
	Messages     []Message
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Sender    UserSummary
	Content   string
	CreatedAt time.Time
}
