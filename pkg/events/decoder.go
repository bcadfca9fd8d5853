package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ErrMissingType is returned for frames without a "type" discriminator.
var ErrMissingType = errors.New("missing event type")

// DecodeError reports a frame that could not be decoded: invalid JSON, a
// missing discriminator, or a known event missing required fields.
type DecodeError struct {
	Type EventType
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode event: %v", e.Err)
	}
	return fmt.Sprintf("decode %s event: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var validate = validator.New()

type decodeFunc func(raw []byte) (Event, error)

// resolver is implemented by variants that derive fields after decoding.
type resolver interface {
	resolve() error
}

// variant decodes raw into a fresh T and checks its required fields.
func variant[T any, P interface {
	*T
	Event
}]() decodeFunc {
	return func(raw []byte) (Event, error) {
		ev := P(new(T))
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, err
		}
		if err := validate.Struct(ev); err != nil {
			return nil, err
		}
		if r, ok := any(ev).(resolver); ok {
			if err := r.resolve(); err != nil {
				return nil, err
			}
		}
		return ev, nil
	}
}

var decoders = map[EventType]decodeFunc{
	EventMemberAdded:          variant[MemberAddedEvent](),
	EventMemberUpdated:        variant[MemberUpdatedEvent](),
	EventMemberRemoved:        variant[MemberRemovedEvent](),
	EventMessageNew:           variant[MessageNewEvent](),
	EventMessageUpdated:       variant[MessageUpdatedEvent](),
	EventMessageDeleted:       variant[MessageDeletedEvent](),
	EventMessageRead:          variant[MessageReadEvent](),
	EventReactionNew:          variant[ReactionNewEvent](),
	EventReactionUpdated:      variant[ReactionUpdatedEvent](),
	EventReactionDeleted:      variant[ReactionDeletedEvent](),
	EventChannelUpdated:       variant[ChannelUpdatedEvent](),
	EventChannelDeleted:       variant[ChannelDeletedEvent](),
	EventChannelTruncated:     variant[ChannelTruncatedEvent](),
	EventTypingStart:          variant[TypingStartEvent](),
	EventTypingStop:           variant[TypingStopEvent](),
	EventHealthCheck:          variant[HealthCheckEvent](),
	EventUserUpdated:          variant[UserUpdatedEvent](),
	EventUserPresenceChanged:  variant[UserPresenceChangedEvent](),
	EventNotificationMarkRead: variant[NotificationMarkReadEvent](),
}

// Decode classifies a raw frame by its discriminator and decodes it into the
// matching variant. Unknown discriminators produce an *UnsupportedEvent and a
// nil error; everything else that fails is a *DecodeError.
func Decode(raw []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if head.Type == "" {
		return nil, &DecodeError{Err: ErrMissingType}
	}
	dec, ok := decoders[head.Type]
	if !ok {
		return &UnsupportedEvent{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	ev, err := dec(raw)
	if err != nil {
		return nil, &DecodeError{Type: head.Type, Err: err}
	}
	return ev, nil
}

// IsUnsupported reports whether ev is an *UnsupportedEvent.
func IsUnsupported(ev Event) bool {
	_, ok := ev.(*UnsupportedEvent)
	return ok
}

// SupportedTypes lists the discriminators Decode understands, sorted.
func SupportedTypes() []EventType {
	out := make([]EventType, 0, len(decoders))
	for t := range decoders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
