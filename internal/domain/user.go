package domain

import "time"

// DefaultAvatar is the avatar reference of a user who never uploaded one
// (or removed it).
const DefaultAvatar = "default.png"

// User represents a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Description  string
	Avatar       StorageRef
	Posts        []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AvatarURL returns the avatar locator, falling back to DefaultAvatar.
func (u User) AvatarURL() string {
	if u.Avatar.URL == "" {
		return DefaultAvatar
	}
	return u.Avatar.URL
}
