package models

import (
	"encoding/json"
	"time"
)

// UserRole is the application-wide role of a user.
type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleAdmin     UserRole = "admin"
	UserRoleGuest     UserRole = "guest"
	UserRoleAnonymous UserRole = "anonymous"
)

// IsKnown reports whether r is one of the declared roles.
func (r UserRole) IsKnown() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin, UserRoleGuest, UserRoleAnonymous:
		return true
	}
	return false
}

type ChatUser struct {
	ID           string
	Name         string
	ImageURL     string
	Role         UserRole
	IsOnline     bool
	IsBanned     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt *time.Time
	ExtraData    json.RawMessage
}

// CurrentChatUser is the user of the local session.
type CurrentChatUser struct {
	ChatUser
	UnreadMessagesCount int
	UnreadChannelsCount int
}
