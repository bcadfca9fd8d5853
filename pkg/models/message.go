package models

import (
	"encoding/json"
	"time"
)

// MessageType is the server side message kind.
type MessageType string

const (
	MessageTypeRegular   MessageType = "regular"
	MessageTypeEphemeral MessageType = "ephemeral"
	MessageTypeError     MessageType = "error"
	MessageTypeReply     MessageType = "reply"
	MessageTypeSystem    MessageType = "system"
	MessageTypeDeleted   MessageType = "deleted"
)

// IsKnown reports whether t is one of the declared message types. Unknown
// types keep their raw server value.
func (t MessageType) IsKnown() bool {
	switch t {
	case MessageTypeRegular, MessageTypeEphemeral, MessageTypeError, MessageTypeReply,
		MessageTypeSystem, MessageTypeDeleted:
		return true
	}
	return false
}

// LocalMessageState is client-side lifecycle state with no wire representation.
type LocalMessageState string

const (
	MessagePendingSync    LocalMessageState = "pendingSync"
	MessageSyncing        LocalMessageState = "syncing"
	MessageSyncingFailed  LocalMessageState = "syncingFailed"
	MessagePendingSend    LocalMessageState = "pendingSend"
	MessageSending        LocalMessageState = "sending"
	MessageSendingFailed  LocalMessageState = "sendingFailed"
	MessageDeleting       LocalMessageState = "deleting"
	MessageDeletingFailed LocalMessageState = "deletingFailed"
)

// StatePtr returns a pointer to s, handy for optional state fields.
func (s LocalMessageState) StatePtr() *LocalMessageState { return &s }

// ChatMessage is an immutable snapshot of a message and its related rows.
type ChatMessage struct {
	ID                 string
	CID                ChannelID
	Type               MessageType
	Text               string
	Command            *string
	Arguments          *string
	Author             ChatUser
	CreatedAt          time.Time
	LocallyCreatedAt   *time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
	ParentMessageID    *string
	ShowReplyInChannel bool
	ReplyCount         int
	IsSilent           bool
	ExtraData          json.RawMessage
	ReactionScores     map[string]int
	MentionedUsers     []ChatUser
	ThreadParticipants []ChatUser
	ReplyIDs           []string

	LatestReactions      []ChatMessageReaction
	CurrentUserReactions []ChatMessageReaction
	Attachments          []ChatMessageAttachment

	// LocalState is nil for messages confirmed by the server.
	LocalState *LocalMessageState
}

// SortingKey is the timestamp a channel orders the message by.
func (m ChatMessage) SortingKey() time.Time {
	if m.LocallyCreatedAt != nil {
		return *m.LocallyCreatedAt
	}
	return m.CreatedAt
}

// IsReply reports whether the message belongs to a thread.
func (m ChatMessage) IsReply() bool {
	return m.ParentMessageID != nil
}
