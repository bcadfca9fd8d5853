package store

import (
	"encoding/json"
	"time"

	"chatsync/pkg/models"
)

// Rows are the persisted form of entities. Relationships are stored as ids,
// never as embedded rows.

type UserRow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Role         models.UserRole `json:"role,omitempty"`
	IsOnline     bool            `json:"online,omitempty"`
	IsBanned     bool            `json:"banned,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastActiveAt *time.Time      `json:"last_active_at,omitempty"`
	ExtraData    json.RawMessage `json:"extra_data,omitempty"`
}

// CurrentUserRow points at the user row of the local session.
type CurrentUserRow struct {
	UserID              string `json:"user_id"`
	UnreadMessagesCount int    `json:"unread_messages_count"`
	UnreadChannelsCount int    `json:"unread_channels_count"`
}

type ChannelRow struct {
	CID           models.ChannelID `json:"cid"`
	Name          string           `json:"name,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
	TruncatedAt   *time.Time       `json:"truncated_at,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	CreatedByID   string           `json:"created_by_id,omitempty"`
	IsFrozen      bool             `json:"frozen,omitempty"`
	MemberCount   int              `json:"member_count"`
	WatcherCount  int              `json:"watcher_count"`
	Team          string           `json:"team,omitempty"`
	ExtraData     json.RawMessage  `json:"extra_data,omitempty"`
}

type MemberRow struct {
	CID              models.ChannelID  `json:"cid"`
	UserID           string            `json:"user_id"`
	Role             models.MemberRole `json:"role,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	IsInvited        bool              `json:"invited,omitempty"`
	InviteAcceptedAt *time.Time        `json:"invite_accepted_at,omitempty"`
	InviteRejectedAt *time.Time        `json:"invite_rejected_at,omitempty"`
}

type ReadRow struct {
	CID                 models.ChannelID `json:"cid"`
	UserID              string           `json:"user_id"`
	LastReadAt          time.Time        `json:"last_read_at"`
	UnreadMessagesCount int              `json:"unread_messages_count"`
}

type MessageRow struct {
	ID                   string             `json:"id"`
	CID                  models.ChannelID   `json:"cid"`
	Type                 models.MessageType `json:"type"`
	Text                 string             `json:"text"`
	UserID               string             `json:"user_id"`
	Command              *string            `json:"command,omitempty"`
	Args                 *string            `json:"args,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	LocallyCreatedAt     *time.Time         `json:"locally_created_at,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at"`
	DeletedAt            *time.Time         `json:"deleted_at,omitempty"`
	ParentID             *string            `json:"parent_id,omitempty"`
	ShowReplyInChannel   bool               `json:"show_in_channel,omitempty"`
	ReplyCount           int                `json:"reply_count"`
	IsSilent             bool               `json:"silent,omitempty"`
	MentionedUserIDs     []string           `json:"mentioned_user_ids,omitempty"`
	ThreadParticipantIDs []string           `json:"thread_participant_ids,omitempty"`
	ReactionScores       map[string]int     `json:"reaction_scores,omitempty"`
	ExtraData            json.RawMessage    `json:"extra_data,omitempty"`

	LocalState *models.LocalMessageState `json:"local_state,omitempty"`

	// IndexedSortKey is the ordering key the channel index entry was written
	// with, so a changed key can be moved.
	IndexedSortKey time.Time `json:"indexed_sort_key"`
}

// SortingKey is the timestamp the channel orders the message by.
func (r *MessageRow) SortingKey() time.Time {
	if r.LocallyCreatedAt != nil {
		return *r.LocallyCreatedAt
	}
	return r.CreatedAt
}

type ReactionRow struct {
	MessageID string          `json:"message_id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Score     int             `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExtraData json.RawMessage `json:"extra_data,omitempty"`
}

type AttachmentRow struct {
	ID         models.AttachmentID          `json:"id"`
	Type       models.AttachmentType        `json:"type"`
	Title      string                       `json:"title,omitempty"`
	Author     string                       `json:"author,omitempty"`
	Text       string                       `json:"text,omitempty"`
	URL        string                       `json:"url,omitempty"`
	ImageURL   string                       `json:"image_url,omitempty"`
	LocalURL   string                       `json:"local_url,omitempty"`
	File       *models.AttachmentFile       `json:"file,omitempty"`
	Actions    []models.AttachmentAction    `json:"actions,omitempty"`
	LocalState *models.AttachmentLocalState `json:"local_state,omitempty"`
	ExtraData  json.RawMessage              `json:"extra_data,omitempty"`
}
