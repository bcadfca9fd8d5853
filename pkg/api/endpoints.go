package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"

	"chatsync/pkg/events"
	"chatsync/pkg/models"
	"chatsync/pkg/payload"
)

// QueryOptions controls what a channel query returns.
type QueryOptions struct {
	Watch         bool
	State         bool
	Presence      bool
	MessagesLimit int
}

type queryRequest struct {
	Watch    bool             `json:"watch"`
	State    bool             `json:"state"`
	Presence bool             `json:"presence"`
	Messages *paginationLimit `json:"messages,omitempty"`
}

type paginationLimit struct {
	Limit int `json:"limit"`
}

type messageEnvelope struct {
	Message *payload.MessagePayload `json:"message"`
}

// ReactionResponse is returned by the reaction endpoints.
type ReactionResponse struct {
	Message  *payload.MessagePayload  `json:"message"`
	Reaction *payload.ReactionPayload `json:"reaction"`
}

// QueryChannel fetches a channel's state and optionally starts watching it.
func (c *Client) QueryChannel(ctx context.Context, cid models.ChannelID, opts QueryOptions) (*payload.ChannelPayload, error) {
	body := queryRequest{Watch: opts.Watch, State: opts.State, Presence: opts.Presence}
	if opts.MessagesLimit > 0 {
		body.Messages = &paginationLimit{Limit: opts.MessagesLimit}
	}
	var out payload.ChannelPayload
	if err := c.do(ctx, "query_channel", fasthttp.MethodPost, pathOf("channels", string(cid.Type), cid.ID, "query"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a message created locally.
func (c *Client) SendMessage(ctx context.Context, cid models.ChannelID, msg payload.MessageRequestBody) (*payload.MessagePayload, error) {
	body := struct {
		Message payload.MessageRequestBody `json:"message"`
	}{msg}
	var out messageEnvelope
	if err := c.do(ctx, "send_message", fasthttp.MethodPost, pathOf("channels", string(cid.Type), cid.ID, "message"), body, &out); err != nil {
		return nil, err
	}
	if out.Message == nil {
		return nil, fmt.Errorf("send_message: response without message")
	}
	return out.Message, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) (*payload.MessagePayload, error) {
	var out messageEnvelope
	if err := c.do(ctx, "delete_message", fasthttp.MethodDelete, pathOf("messages", messageID), nil, &out); err != nil {
		return nil, err
	}
	if out.Message == nil {
		return nil, fmt.Errorf("delete_message: response without message")
	}
	return out.Message, nil
}

func (c *Client) SendReaction(ctx context.Context, messageID string, reaction payload.ReactionRequestBody) (*ReactionResponse, error) {
	body := struct {
		Reaction payload.ReactionRequestBody `json:"reaction"`
	}{reaction}
	var out ReactionResponse
	if err := c.do(ctx, "send_reaction", fasthttp.MethodPost, pathOf("messages", messageID, "reaction"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteReaction(ctx context.Context, messageID, reactionType string) (*ReactionResponse, error) {
	var out ReactionResponse
	if err := c.do(ctx, "delete_reaction", fasthttp.MethodDelete, pathOf("messages", messageID, "reaction", reactionType), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks the channel read up to messageID, or entirely when
// messageID is empty. The returned event is nil when the backend sends none.
func (c *Client) MarkRead(ctx context.Context, cid models.ChannelID, messageID string) (events.Event, error) {
	var body any
	if messageID != "" {
		body = map[string]string{"message_id": messageID}
	} else {
		body = struct{}{}
	}
	var out struct {
		Event json.RawMessage `json:"event"`
	}
	if err := c.do(ctx, "mark_read", fasthttp.MethodPost, pathOf("channels", string(cid.Type), cid.ID, "read"), body, &out); err != nil {
		return nil, err
	}
	if len(out.Event) == 0 || string(out.Event) == "null" {
		return nil, nil
	}
	ev, err := events.Decode(out.Event)
	if err != nil {
		return nil, fmt.Errorf("mark_read: %w", err)
	}
	return ev, nil
}
