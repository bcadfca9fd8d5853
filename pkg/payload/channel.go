package payload

import (
	"encoding/json"
	"time"

	"chatsync/pkg/models"
)

var channelKeys = newKeySet(
	"cid", "id", "type", "name", "image", "created_at", "updated_at", "deleted_at",
	"last_message_at", "truncated_at", "created_by", "frozen", "member_count",
	"team", "config", "own_capabilities", "members", "disabled", "hidden", "cooldown",
)

// ChannelPayload is the response of a channel query.
type ChannelPayload struct {
	Channel      ChannelDetailPayload `json:"channel"`
	WatcherCount int                  `json:"watcher_count"`
	Watchers     []UserPayload        `json:"watchers,omitempty"`
	Members      []MemberPayload      `json:"members"`
	Messages     []MessagePayload     `json:"messages"`
	Reads        []ChannelReadPayload `json:"read"`
}

type ChannelDetailPayload struct {
	CID           models.ChannelID `json:"cid"`
	Name          string           `json:"name,omitempty"`
	ImageURL      string           `json:"image,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	TruncatedAt   *time.Time       `json:"truncated_at,omitempty"`
	CreatedBy     *UserPayload     `json:"created_by,omitempty"`
	IsFrozen      bool             `json:"frozen"`
	MemberCount   int              `json:"member_count"`
	Team          string           `json:"team,omitempty"`
	ExtraData     json.RawMessage  `json:"-"`
}

type channelAlias ChannelDetailPayload

func (c *ChannelDetailPayload) UnmarshalJSON(data []byte) error {
	var a channelAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtraData(data, channelKeys)
	if err != nil {
		return err
	}
	a.ExtraData = extra
	*c = ChannelDetailPayload(a)
	return nil
}

func (c ChannelDetailPayload) MarshalJSON() ([]byte, error) {
	return flatten(channelAlias(c), c.ExtraData)
}

// MemberPayload links a user to a channel. Events may carry only user_id.
type MemberPayload struct {
	UserID           string            `json:"user_id,omitempty"`
	User             *UserPayload      `json:"user,omitempty"`
	Role             models.MemberRole `json:"role,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	IsInvited        bool              `json:"invited,omitempty"`
	InviteAcceptedAt *time.Time        `json:"invite_accepted_at,omitempty"`
	InviteRejectedAt *time.Time        `json:"invite_rejected_at,omitempty"`
}

// MemberUserID returns the id of the member's user, preferring the embedded
// user object.
func (m MemberPayload) MemberUserID() string {
	if m.User != nil && m.User.ID != "" {
		return m.User.ID
	}
	return m.UserID
}

// ChannelReadPayload is the read watermark of one user.
type ChannelReadPayload struct {
	User                UserPayload `json:"user"`
	LastReadAt          time.Time   `json:"last_read"`
	UnreadMessagesCount int         `json:"unread_messages"`
}
