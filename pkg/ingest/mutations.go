package ingest

import (
	"fmt"

	"chatsync/pkg/events"
	"chatsync/pkg/payload"
	"chatsync/pkg/store"
)

func unexpected(ev events.Event) error {
	return fmt.Errorf("handler got unexpected event %T", ev)
}

func memberPayload(p events.MemberEventPayload) payload.MemberPayload {
	var m payload.MemberPayload
	if p.Member != nil {
		m = *p.Member
	}
	if m.User == nil && p.User != nil {
		m.User = p.User
	}
	m.UserID = p.UserID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = p.CreatedAt
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = p.CreatedAt
	}
	return m
}

func MutMemberUpsert(s *store.Session, ev events.Event) error {
	var p events.MemberEventPayload
	switch e := ev.(type) {
	case *events.MemberAddedEvent:
		p = e.MemberEventPayload
	case *events.MemberUpdatedEvent:
		p = e.MemberEventPayload
	default:
		return unexpected(ev)
	}
	_, err := s.SaveMember(memberPayload(p), p.CID)
	return err
}

func MutMemberRemove(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.MemberRemovedEvent)
	if !ok {
		return unexpected(ev)
	}
	return s.DeleteMember(e.CID, e.UserID)
}

func MutMessageSave(s *store.Session, ev events.Event) error {
	var p events.MessageEventPayload
	switch e := ev.(type) {
	case *events.MessageNewEvent:
		p = e.MessageEventPayload
		if err := updateUnreadMessages(s, p.UnreadCount); err != nil {
			return err
		}
	case *events.MessageUpdatedEvent:
		p = e.MessageEventPayload
	case *events.MessageDeletedEvent:
		p = e.MessageEventPayload
	default:
		return unexpected(ev)
	}
	_, err := s.SaveMessage(p.Message, p.CID)
	return err
}

// updateUnreadMessages refreshes the current user's unread total when the
// replica has a current user.
func updateUnreadMessages(s *store.Session, n int) error {
	cu, err := s.CurrentUser()
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	user, err := s.User(cu.UserID)
	if err != nil {
		return err
	}
	_, err = s.SaveCurrentUser(payload.CurrentUserPayload{
		UserPayload:         userPayloadFromRow(user),
		UnreadMessagesCount: n,
		UnreadChannelsCount: cu.UnreadChannelsCount,
	})
	return err
}

func userPayloadFromRow(u *store.UserRow) payload.UserPayload {
	return payload.UserPayload{
		ID:           u.ID,
		Name:         u.Name,
		ImageURL:     u.ImageURL,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastActiveAt: u.LastActiveAt,
		IsOnline:     u.IsOnline,
		IsBanned:     u.IsBanned,
		ExtraData:    u.ExtraData,
	}
}

func MutMessageRead(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.MessageReadEvent)
	if !ok {
		return unexpected(ev)
	}
	_, err := s.SaveChannelRead(payload.ChannelReadPayload{
		User:       e.User,
		LastReadAt: e.CreatedAt,
	}, e.CID)
	return err
}

// MutReaction saves the carried message, which holds the refreshed reaction
// scores, then applies the reaction itself.
func MutReaction(s *store.Session, ev events.Event) error {
	var p events.ReactionEventPayload
	deleted := false
	switch e := ev.(type) {
	case *events.ReactionNewEvent:
		p = e.ReactionEventPayload
	case *events.ReactionUpdatedEvent:
		p = e.ReactionEventPayload
	case *events.ReactionDeletedEvent:
		p = e.ReactionEventPayload
		deleted = true
	default:
		return unexpected(ev)
	}
	if _, err := s.SaveMessage(p.Message, p.CID); err != nil {
		return err
	}
	if deleted {
		return s.DeleteReaction(p.Reaction.MessageID, p.Reaction.User.ID, p.Reaction.Type)
	}
	_, err := s.SaveReaction(p.Reaction)
	return err
}

func MutChannelUpdated(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.ChannelUpdatedEvent)
	if !ok {
		return unexpected(ev)
	}
	detail := e.Channel
	if detail.CID.IsZero() {
		detail.CID = e.CID
	}
	_, err := s.SaveChannelDetail(detail)
	return err
}

func MutChannelDeleted(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.ChannelDeletedEvent)
	if !ok {
		return unexpected(ev)
	}
	return s.DeleteChannel(e.CID)
}

func MutChannelTruncated(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.ChannelTruncatedEvent)
	if !ok {
		return unexpected(ev)
	}
	at := e.CreatedAt
	if e.Channel != nil && e.Channel.TruncatedAt != nil {
		at = *e.Channel.TruncatedAt
	}
	_, err := s.TruncateChannel(e.CID, at)
	return err
}

func MutHealthCheck(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.HealthCheckEvent)
	if !ok {
		return unexpected(ev)
	}
	if e.Me == nil {
		return nil
	}
	_, err := s.SaveCurrentUser(*e.Me)
	return err
}

func MutUser(s *store.Session, ev events.Event) error {
	var u payload.UserPayload
	switch e := ev.(type) {
	case *events.UserUpdatedEvent:
		u = e.User
	case *events.UserPresenceChangedEvent:
		u = e.User
	default:
		return unexpected(ev)
	}
	_, err := s.SaveUser(u)
	return err
}

func MutNotificationMarkRead(s *store.Session, ev events.Event) error {
	e, ok := ev.(*events.NotificationMarkReadEvent)
	if !ok {
		return unexpected(ev)
	}
	if e.CID != nil {
		if _, err := s.SaveChannelRead(payload.ChannelReadPayload{
			User:       e.User,
			LastReadAt: e.CreatedAt,
		}, *e.CID); err != nil {
			return err
		}
	}
	cu, err := s.CurrentUser()
	if store.IsNotFound(err) || (err == nil && cu.UserID != e.User.ID) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.SaveCurrentUser(payload.CurrentUserPayload{
		UserPayload:         e.User,
		UnreadMessagesCount: e.UnreadCount,
		UnreadChannelsCount: e.UnreadChannels,
	})
	return err
}

// MutNoop accepts ephemeral events that have nothing to persist.
func MutNoop(*store.Session, events.Event) error { return nil }
