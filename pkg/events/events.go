package events

import (
	"encoding/json"
	"errors"
	"time"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
)

// EventType is the value of the "type" discriminator of a realtime frame.
type EventType string

const (
	EventMemberAdded   EventType = "member.added"
	EventMemberUpdated EventType = "member.updated"
	EventMemberRemoved EventType = "member.removed"

	EventMessageNew     EventType = "message.new"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
	EventMessageRead    EventType = "message.read"

	EventReactionNew     EventType = "reaction.new"
	EventReactionUpdated EventType = "reaction.updated"
	EventReactionDeleted EventType = "reaction.deleted"

	EventChannelUpdated   EventType = "channel.updated"
	EventChannelDeleted   EventType = "channel.deleted"
	EventChannelTruncated EventType = "channel.truncated"

	EventTypingStart EventType = "typing.start"
	EventTypingStop  EventType = "typing.stop"

	EventHealthCheck          EventType = "health.check"
	EventUserUpdated          EventType = "user.updated"
	EventUserPresenceChanged  EventType = "user.presence.changed"
	EventNotificationMarkRead EventType = "notification.mark_read"
)

// Event is one decoded realtime frame. The set of implementations is closed:
// the variants below plus UnsupportedEvent.
type Event interface {
	EventType() EventType
	isEvent()
}

// MemberEventPayload is shared by the member events. UserID is resolved from
// the event user or the member object.
type MemberEventPayload struct {
	CID       models.ChannelID       `json:"cid"`
	User      *payload.UserPayload   `json:"user"`
	Member    *payload.MemberPayload `json:"member"`
	CreatedAt time.Time              `json:"created_at"`
	UserID    string                 `json:"-"`
}

var errMissingMemberUser = errors.New("member event carries no user id")

func (p *MemberEventPayload) resolve() error {
	switch {
	case p.User != nil && p.User.ID != "":
		p.UserID = p.User.ID
	case p.Member != nil && p.Member.MemberUserID() != "":
		p.UserID = p.Member.MemberUserID()
	default:
		return errMissingMemberUser
	}
	return nil
}

type MemberAddedEvent struct{ MemberEventPayload }
type MemberUpdatedEvent struct{ MemberEventPayload }
type MemberRemovedEvent struct{ MemberEventPayload }

// MessageEventPayload is shared by message.new, message.updated and message.deleted.
type MessageEventPayload struct {
	CID          models.ChannelID       `json:"cid"`
	Message      payload.MessagePayload `json:"message"`
	WatcherCount int                    `json:"watcher_count"`
	UnreadCount  int                    `json:"total_unread_count"`
	CreatedAt    time.Time              `json:"created_at"`
}

type MessageNewEvent struct{ MessageEventPayload }
type MessageUpdatedEvent struct{ MessageEventPayload }
type MessageDeletedEvent struct{ MessageEventPayload }

type MessageReadEvent struct {
	CID         models.ChannelID    `json:"cid"`
	User        payload.UserPayload `json:"user"`
	UnreadCount int                 `json:"total_unread_count"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ReactionEventPayload carries the reaction and the message with its
// refreshed reaction scores.
type ReactionEventPayload struct {
	CID       models.ChannelID        `json:"cid"`
	Message   payload.MessagePayload  `json:"message"`
	Reaction  payload.ReactionPayload `json:"reaction"`
	CreatedAt time.Time               `json:"created_at"`
}

type ReactionNewEvent struct{ ReactionEventPayload }
type ReactionUpdatedEvent struct{ ReactionEventPayload }
type ReactionDeletedEvent struct{ ReactionEventPayload }

type ChannelUpdatedEvent struct {
	CID       models.ChannelID             `json:"cid"`
	Channel   payload.ChannelDetailPayload `json:"channel"`
	CreatedAt time.Time                    `json:"created_at"`
}

type ChannelDeletedEvent struct {
	CID       models.ChannelID              `json:"cid"`
	Channel   *payload.ChannelDetailPayload `json:"channel"`
	CreatedAt time.Time                     `json:"created_at"`
}

type ChannelTruncatedEvent struct {
	CID       models.ChannelID              `json:"cid"`
	Channel   *payload.ChannelDetailPayload `json:"channel"`
	CreatedAt time.Time                     `json:"created_at"`
}

// TypingEventPayload is shared by typing.start and typing.stop.
type TypingEventPayload struct {
	CID       models.ChannelID    `json:"cid"`
	User      payload.UserPayload `json:"user"`
	ParentID  *string             `json:"parent_id"`
	CreatedAt time.Time           `json:"created_at"`
}

type TypingStartEvent struct{ TypingEventPayload }
type TypingStopEvent struct{ TypingEventPayload }

// HealthCheckEvent is sent periodically by the server. The first one after
// connecting carries the current user as Me.
type HealthCheckEvent struct {
	ConnectionID string                      `json:"connection_id" validate:"required"`
	Me           *payload.CurrentUserPayload `json:"me"`
	CreatedAt    time.Time                   `json:"created_at"`
}

type UserUpdatedEvent struct {
	User      payload.UserPayload `json:"user"`
	CreatedAt time.Time           `json:"created_at"`
}

type UserPresenceChangedEvent struct {
	User      payload.UserPayload `json:"user"`
	CreatedAt time.Time           `json:"created_at"`
}

type NotificationMarkReadEvent struct {
	CID            *models.ChannelID   `json:"cid"`
	User           payload.UserPayload `json:"user"`
	UnreadCount    int                 `json:"total_unread_count"`
	UnreadChannels int                 `json:"unread_channels"`
	CreatedAt      time.Time           `json:"created_at"`
}

// UnsupportedEvent is a structurally valid frame whose discriminator has no
// decoder. Callers skip it.
type UnsupportedEvent struct {
	Type EventType
	Raw  json.RawMessage
}

func (*MemberAddedEvent) EventType() EventType          { return EventMemberAdded }
func (*MemberUpdatedEvent) EventType() EventType        { return EventMemberUpdated }
func (*MemberRemovedEvent) EventType() EventType        { return EventMemberRemoved }
func (*MessageNewEvent) EventType() EventType           { return EventMessageNew }
func (*MessageUpdatedEvent) EventType() EventType       { return EventMessageUpdated }
func (*MessageDeletedEvent) EventType() EventType       { return EventMessageDeleted }
func (*MessageReadEvent) EventType() EventType          { return EventMessageRead }
func (*ReactionNewEvent) EventType() EventType          { return EventReactionNew }
func (*ReactionUpdatedEvent) EventType() EventType      { return EventReactionUpdated }
func (*ReactionDeletedEvent) EventType() EventType      { return EventReactionDeleted }
func (*ChannelUpdatedEvent) EventType() EventType       { return EventChannelUpdated }
func (*ChannelDeletedEvent) EventType() EventType       { return EventChannelDeleted }
func (*ChannelTruncatedEvent) EventType() EventType     { return EventChannelTruncated }
func (*TypingStartEvent) EventType() EventType          { return EventTypingStart }
func (*TypingStopEvent) EventType() EventType           { return EventTypingStop }
func (*HealthCheckEvent) EventType() EventType          { return EventHealthCheck }
func (*UserUpdatedEvent) EventType() EventType          { return EventUserUpdated }
func (*UserPresenceChangedEvent) EventType() EventType  { return EventUserPresenceChanged }
func (*NotificationMarkReadEvent) EventType() EventType { return EventNotificationMarkRead }
func (e *UnsupportedEvent) EventType() EventType        { return e.Type }

func (*MemberAddedEvent) isEvent()          {}
func (*MemberUpdatedEvent) isEvent()        {}
func (*MemberRemovedEvent) isEvent()        {}
func (*MessageNewEvent) isEvent()           {}
func (*MessageUpdatedEvent) isEvent()       {}
func (*MessageDeletedEvent) isEvent()       {}
func (*MessageReadEvent) isEvent()          {}
func (*ReactionNewEvent) isEvent()          {}
func (*ReactionUpdatedEvent) isEvent()      {}
func (*ReactionDeletedEvent) isEvent()      {}
func (*ChannelUpdatedEvent) isEvent()       {}
func (*ChannelDeletedEvent) isEvent()       {}
func (*ChannelTruncatedEvent) isEvent()     {}
func (*TypingStartEvent) isEvent()          {}
func (*TypingStopEvent) isEvent()           {}
func (*HealthCheckEvent) isEvent()          {}
func (*UserUpdatedEvent) isEvent()          {}
func (*UserPresenceChangedEvent) isEvent()  {}
func (*NotificationMarkReadEvent) isEvent() {}
func (*UnsupportedEvent) isEvent()          {}
