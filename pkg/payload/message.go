package payload

import (
	"encoding/json"
	"time"

	"chatsync/pkg/models"
)

var messageKeys = newKeySet(
	"id", "cid", "type", "user", "created_at", "updated_at", "deleted_at",
	"text", "html", "command", "args", "parent_id", "show_in_channel",
	"mentioned_users", "thread_participants", "reply_count", "deleted_reply_count",
	"latest_reactions", "own_reactions", "reaction_scores", "reaction_counts",
	"silent", "attachments", "i18n", "shadowed", "pinned", "pinned_at",
	"pinned_by", "pin_expires", "quoted_message_id", "quoted_message", "channel",
)

// MessagePayload is a message as received from the backend. Members of the
// message object that are not part of the schema form ExtraData.
type MessagePayload struct {
	ID                 string              `json:"id" validate:"required"`
	Type               models.MessageType  `json:"type"`
	User               UserPayload         `json:"user"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	DeletedAt          *time.Time          `json:"deleted_at,omitempty"`
	Text               string              `json:"text"`
	Command            *string             `json:"command,omitempty"`
	Args               *string             `json:"args,omitempty"`
	ParentID           *string             `json:"parent_id,omitempty"`
	ShowReplyInChannel bool                `json:"show_in_channel"`
	MentionedUsers     []UserPayload       `json:"mentioned_users"`
	ThreadParticipants []UserPayload       `json:"thread_participants,omitempty"`
	ReplyCount         int                 `json:"reply_count"`
	LatestReactions    []ReactionPayload   `json:"latest_reactions"`
	OwnReactions       []ReactionPayload   `json:"own_reactions"`
	ReactionScores     map[string]int      `json:"reaction_scores"`
	IsSilent           bool                `json:"silent"`
	Attachments        []AttachmentPayload `json:"attachments"`
	ExtraData          json.RawMessage     `json:"-"`
}

type messageAlias MessagePayload

func (m *MessagePayload) UnmarshalJSON(data []byte) error {
	var a messageAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtraData(data, messageKeys)
	if err != nil {
		return err
	}
	a.ExtraData = extra
	*m = MessagePayload(a)
	return nil
}

func (m MessagePayload) MarshalJSON() ([]byte, error) {
	return flatten(messageAlias(m), m.ExtraData)
}
