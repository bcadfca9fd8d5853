package chat

import (
	"context"
	"errors"
	"fmt"

	"chatsync/pkg/api"
	"chatsync/pkg/events"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// Backend is the subset of the REST API the client drives. *api.Client
// implements it.
type Backend interface {
	QueryChannel(ctx context.Context, cid models.ChannelID, opts api.QueryOptions) (*payload.ChannelPayload, error)
	SendMessage(ctx context.Context, cid models.ChannelID, msg payload.MessageRequestBody) (*payload.MessagePayload, error)
	DeleteMessage(ctx context.Context, messageID string) (*payload.MessagePayload, error)
	SendReaction(ctx context.Context, messageID string, reaction payload.ReactionRequestBody) (*api.ReactionResponse, error)
	DeleteReaction(ctx context.Context, messageID, reactionType string) (*api.ReactionResponse, error)
	MarkRead(ctx context.Context, cid models.ChannelID, messageID string) (events.Event, error)
}

// EventApplier reconciles decoded events into the replica.
type EventApplier interface {
	Apply(ctx context.Context, ev events.Event) error
}

// Client runs user actions against the backend and mirrors their outcome in
// the local replica. Messages are written locally first so they show up
// immediately, then confirmed or marked failed.
type Client struct {
	db      *store.DB
	backend Backend
	events  EventApplier
	metrics *telemetry.Metrics
}

func New(db *store.DB, backend Backend, applier EventApplier, m *telemetry.Metrics) *Client {
	return &Client{db: db, backend: backend, events: applier, metrics: m}
}

var ErrNotSendable = errors.New("message is not waiting to be sent")

// WatchChannel queries a channel with its latest messages and stores it.
func (c *Client) WatchChannel(ctx context.Context, cid models.ChannelID, messagesLimit int) (*models.ChatChannel, error) {
	tr := c.metrics.Track("watch_channel")
	defer tr.Finish()

	ch, err := c.backend.QueryChannel(ctx, cid, api.QueryOptions{Watch: true, State: true, MessagesLimit: messagesLimit})
	if err != nil {
		return nil, fmt.Errorf("query channel %s: %w", cid, err)
	}
	tr.Mark("query")
	if err := c.db.Write(ctx, func(s *store.Session) error {
		_, err := s.SaveChannel(*ch)
		return err
	}); err != nil {
		return nil, err
	}
	tr.Mark("save")
	logger.Info("channel_watched", "cid", cid.String(), "messages", len(ch.Messages), "members", len(ch.Members))

	var model *models.ChatChannel
	err = c.db.Read(func(r *store.ReadSession) error {
		var err error
		model, err = r.ChannelModel(cid)
		return err
	})
	return model, err
}

// SendMessage stores a new message authored by the current user and sends
// it. When the request fails the message stays in the replica with the
// sendingFailed state and the error is returned with the stored message.
func (c *Client) SendMessage(ctx context.Context, cid models.ChannelID, m store.NewMessage) (*models.ChatMessage, error) {
	var id string
	err := c.db.Write(ctx, func(s *store.Session) error {
		row, err := s.CreateNewMessage(cid, m)
		if err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.send(ctx, id)
}

// ResendMessage retries a message whose send failed or never started.
func (c *Client) ResendMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var state *models.LocalMessageState
	err := c.db.Read(func(r *store.ReadSession) error {
		row, err := r.Message(id)
		if err != nil {
			return err
		}
		state = row.LocalState
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state == nil || (*state != models.MessagePendingSend && *state != models.MessageSendingFailed) {
		return nil, fmt.Errorf("%w: %s", ErrNotSendable, id)
	}
	return c.send(ctx, id)
}

func (c *Client) send(ctx context.Context, id string) (*models.ChatMessage, error) {
	tr := c.metrics.Track("send_message")
	defer tr.Finish()

	var (
		body *payload.MessageRequestBody
		cid  models.ChannelID
	)
	err := c.db.Write(ctx, func(s *store.Session) error {
		row, err := s.Message(id)
		if err != nil {
			return err
		}
		cid = row.CID
		if body, err = s.MessageRequestBody(id); err != nil {
			return err
		}
		return s.SetMessageLocalState(id, models.MessageSending.StatePtr())
	})
	if err != nil {
		return nil, err
	}
	tr.Mark("prepare")

	sent, sendErr := c.backend.SendMessage(ctx, cid, *body)
	tr.Mark("request")

	// the outcome is recorded even when ctx ended during the request
	wctx := context.WithoutCancel(ctx)
	if sendErr != nil {
		logger.Warn("message_send_failed", "id", id, "cid", cid.String(), "error", sendErr)
		if err := c.db.Write(wctx, func(s *store.Session) error {
			return s.SetMessageLocalState(id, models.MessageSendingFailed.StatePtr())
		}); err != nil {
			return nil, errors.Join(sendErr, err)
		}
		msg, err := c.Message(id)
		if err != nil {
			return nil, errors.Join(sendErr, err)
		}
		return msg, sendErr
	}

	err = c.db.Write(wctx, func(s *store.Session) error {
		if _, err := s.SaveMessage(*sent, cid); err != nil {
			return err
		}
		return s.SetMessageLocalState(sent.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return c.Message(sent.ID)
}

// DeleteMessage deletes a message on the server. Messages that never reached
// the server are removed locally only.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	var (
		cid      models.ChannelID
		unsent   bool
		notFound bool
	)
	err := c.db.Write(ctx, func(s *store.Session) error {
		row, err := s.Message(id)
		if store.IsNotFound(err) {
			notFound = true
			return nil
		}
		if err != nil {
			return err
		}
		cid = row.CID
		if st := row.LocalState; st != nil && (*st == models.MessagePendingSend || *st == models.MessageSendingFailed) {
			unsent = true
			return s.DeleteMessage(id)
		}
		return s.SetMessageLocalState(id, models.MessageDeleting.StatePtr())
	})
	if err != nil || unsent {
		return err
	}

	deleted, delErr := c.backend.DeleteMessage(ctx, id)
	wctx := context.WithoutCancel(ctx)
	if delErr != nil {
		logger.Warn("message_delete_failed", "id", id, "error", delErr)
		if notFound {
			return delErr
		}
		if err := c.db.Write(wctx, func(s *store.Session) error {
			return s.SetMessageLocalState(id, models.MessageDeletingFailed.StatePtr())
		}); err != nil {
			return errors.Join(delErr, err)
		}
		return delErr
	}
	if notFound {
		return nil
	}
	return c.db.Write(wctx, func(s *store.Session) error {
		if _, err := s.SaveMessage(*deleted, cid); err != nil {
			return err
		}
		return s.SetMessageLocalState(id, nil)
	})
}

// AddReaction sends a reaction of the current user and stores the refreshed
// message with the new reaction.
func (c *Client) AddReaction(ctx context.Context, messageID, reactionType string, score int) (*models.ChatMessage, error) {
	cid, err := c.messageChannel(messageID)
	if err != nil {
		return nil, err
	}
	res, err := c.backend.SendReaction(ctx, messageID, payload.ReactionRequestBody{Type: reactionType, Score: score})
	if err != nil {
		return nil, fmt.Errorf("add reaction to %s: %w", messageID, err)
	}
	err = c.db.Write(ctx, func(s *store.Session) error {
		if res.Message != nil {
			if _, err := s.SaveMessage(*res.Message, cid); err != nil {
				return err
			}
		}
		if res.Reaction != nil {
			_, err := s.SaveReaction(*res.Reaction)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Message(messageID)
}

// DeleteReaction removes a reaction of the current user.
func (c *Client) DeleteReaction(ctx context.Context, messageID, reactionType string) (*models.ChatMessage, error) {
	cid, err := c.messageChannel(messageID)
	if err != nil {
		return nil, err
	}
	var userID string
	err = c.db.Read(func(r *store.ReadSession) error {
		cu, err := r.CurrentUser()
		if store.IsNotFound(err) {
			return store.ErrCurrentUserDoesNotExist
		}
		if err != nil {
			return err
		}
		userID = cu.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	res, err := c.backend.DeleteReaction(ctx, messageID, reactionType)
	if err != nil {
		return nil, fmt.Errorf("delete reaction from %s: %w", messageID, err)
	}
	err = c.db.Write(ctx, func(s *store.Session) error {
		if res.Message != nil {
			if _, err := s.SaveMessage(*res.Message, cid); err != nil {
				return err
			}
		}
		return s.DeleteReaction(messageID, userID, reactionType)
	})
	if err != nil {
		return nil, err
	}
	return c.Message(messageID)
}

// MarkRead marks cid read on the server and applies the returned read event.
func (c *Client) MarkRead(ctx context.Context, cid models.ChannelID, messageID string) error {
	ev, err := c.backend.MarkRead(ctx, cid, messageID)
	if err != nil {
		return fmt.Errorf("mark read %s: %w", cid, err)
	}
	if ev == nil || c.events == nil {
		return nil
	}
	return c.events.Apply(ctx, ev)
}

// Message returns the projected message.
func (c *Client) Message(id string) (*models.ChatMessage, error) {
	var msg *models.ChatMessage
	err := c.db.Read(func(r *store.ReadSession) error {
		var err error
		msg, err = r.MessageModel(id)
		return err
	})
	return msg, err
}

// ChannelMessages returns the newest limit messages of cid in channel order.
func (c *Client) ChannelMessages(cid models.ChannelID, limit int) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	err := c.db.Read(func(r *store.ReadSession) error {
		var err error
		out, err = r.ChannelMessageModels(cid, limit)
		return err
	})
	return out, err
}

func (c *Client) messageChannel(id string) (models.ChannelID, error) {
	var cid models.ChannelID
	err := c.db.Read(func(r *store.ReadSession) error {
		row, err := r.Message(id)
		if store.IsNotFound(err) {
			return fmt.Errorf("%w: %s", store.ErrMessageDoesNotExist, id)
		}
		if err != nil {
			return err
		}
		cid = row.CID
		return nil
	})
	return cid, err
}
