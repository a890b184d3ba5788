package models

import "time"

type Post struct {
	ID        string
	UserID    string
	Author    UserSummary
	Content   string
	Image     string // storage key, empty when the post has no image
	Likes     []string
	Comments  []Comment
	CreatedAt time.Time
}

type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Author    UserSummary
	Content   string
	CreatedAt time.Time
}

// FeedPage is one page of a user's feed.
type FeedPage struct {
	Items   []Post
	Page    int
	Limit   int
	Total   int
	HasMore bool
}
