package ingest

import "chatsync/pkg/events"

// RegisterDefaultHandlers wires a handler for every event type the replica
// reconciles.
func RegisterDefaultHandlers(p *Processor) {
	p.RegisterHandler(events.EventMemberAdded, MutMemberUpsert)
	p.RegisterHandler(events.EventMemberUpdated, MutMemberUpsert)
	p.RegisterHandler(events.EventMemberRemoved, MutMemberRemove)
	p.RegisterHandler(events.EventMessageNew, MutMessageSave)
	p.RegisterHandler(events.EventMessageUpdated, MutMessageSave)
	p.RegisterHandler(events.EventMessageDeleted, MutMessageSave)
	p.RegisterHandler(events.EventMessageRead, MutMessageRead)
	p.RegisterHandler(events.EventReactionNew, MutReaction)
	p.RegisterHandler(events.EventReactionUpdated, MutReaction)
	p.RegisterHandler(events.EventReactionDeleted, MutReaction)
	p.RegisterHandler(events.EventChannelUpdated, MutChannelUpdated)
	p.RegisterHandler(events.EventChannelDeleted, MutChannelDeleted)
	p.RegisterHandler(events.EventChannelTruncated, MutChannelTruncated)
	p.RegisterHandler(events.EventHealthCheck, MutHealthCheck)
	p.RegisterHandler(events.EventUserUpdated, MutUser)
	p.RegisterHandler(events.EventUserPresenceChanged, MutUser)
	p.RegisterHandler(events.EventNotificationMarkRead, MutNotificationMarkRead)
	p.RegisterHandler(events.EventTypingStart, MutNoop)
	p.RegisterHandler(events.EventTypingStop, MutNoop)
}
