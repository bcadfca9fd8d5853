package models

import (
	"encoding/json"
	"time"
)

// MemberRole is the role of a user inside a channel.
type MemberRole string

const (
	MemberRoleMember    MemberRole = "member"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleAdmin     MemberRole = "admin"
	MemberRoleOwner     MemberRole = "owner"
)

func (r MemberRole) IsKnown() bool {
	switch r {
	case MemberRoleMember, MemberRoleModerator, MemberRoleAdmin, MemberRoleOwner:
		return true
	}
	return false
}

type ChatChannel struct {
	CID           ChannelID
	Name          string
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
	TruncatedAt   *time.Time
	LastMessageAt *time.Time
	CreatedBy     *ChatUser
	IsFrozen      bool
	MemberCount   int
	WatcherCount  int
	ExtraData     json.RawMessage

	Members []ChatChannelMember
	Reads   []ChatChannelRead
}

type ChatChannelMember struct {
	ChatUser
	MemberRole       MemberRole
	MemberCreatedAt  time.Time
	MemberUpdatedAt  time.Time
	IsInvited        bool
	InviteAcceptedAt *time.Time
	InviteRejectedAt *time.Time
}

// ChatChannelRead is the read watermark of one member.
type ChatChannelRead struct {
	User        ChatUser
	LastReadAt  time.Time
	UnreadCount int
}
