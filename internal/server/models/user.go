// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash and TwoFactorSecret never
// leave the server.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	ProfilePicture   string // storage key, empty when unset
	TwoFactorEnabled bool
	TwoFactorSecret  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Summary returns the public subset of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// UserSummary is the public view of a user embedded in other resources.
type UserSummary struct {
	ID             string
	Username       string
	ProfilePicture string
}

// Profile is a user with their follow graph resolved.
type Profile struct {
	User      *User
	Followers []UserSummary
	Following []UserSummary
}
