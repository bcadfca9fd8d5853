package app

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"chatsync/pkg/chat"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/router"
	"chatsync/pkg/store"
)

const defaultPageSize = 30

// messageView is the debug rendering of a projected message.
type messageView struct {
	ID         string                    `json:"id"`
	CID        string                    `json:"cid"`
	Type       models.MessageType        `json:"type"`
	Text       string                    `json:"text"`
	Author     string                    `json:"author"`
	CreatedAt  time.Time                 `json:"created_at"`
	SortedAt   time.Time                 `json:"sorted_at"`
	Replies    int                       `json:"reply_count,omitempty"`
	Reactions  map[string]int            `json:"reaction_scores,omitempty"`
	Files      int                       `json:"attachments,omitempty"`
	LocalState *models.LocalMessageState `json:"local_state,omitempty"`
}

func viewOf(m *models.ChatMessage) messageView {
	return messageView{
		ID:         m.ID,
		CID:        m.CID.String(),
		Type:       m.Type,
		Text:       m.Text,
		Author:     m.Author.ID,
		CreatedAt:  m.CreatedAt,
		SortedAt:   m.SortingKey(),
		Replies:    m.ReplyCount,
		Reactions:  m.ReactionScores,
		Files:      len(m.Attachments),
		LocalState: m.LocalState,
	}
}

type channelView struct {
	CID          string     `json:"cid"`
	Name         string     `json:"name,omitempty"`
	MemberCount  int        `json:"member_count"`
	Messages     int        `json:"messages"`
	LastMessage  *time.Time `json:"last_message_at,omitempty"`
	LastActivity string     `json:"last_activity,omitempty"`
}

// routes builds the debug router. It is separate from startHTTP so tests can
// drive it without a listener.
func (a *App) routes() *router.Router {
	r := router.New()
	r.GET("/healthz", a.healthzHandler)
	r.GET("/readyz", a.readyzHandler)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	r.GET("/v1/status", a.statusHandler)
	r.GET("/v1/channels", a.channelsHandler)
	r.GET("/v1/channels/{cid}/messages", a.channelMessagesHandler)
	r.POST("/v1/channels/{cid}/messages", a.sendMessageHandler)
	r.POST("/v1/channels/{cid}/read", a.markReadHandler)
	r.GET("/v1/messages/{id}", a.messageHandler)
	r.DELETE("/v1/messages/{id}", a.deleteMessageHandler)
	r.POST("/v1/messages/{id}/resend", a.resendMessageHandler)
	r.POST("/v1/retention/run", a.retentionHandler)
	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	return r
}

func (a *App) healthzHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString("{\"status\":\"ok\"}")
}

func (a *App) readyzHandler(ctx *fasthttp.RequestCtx) {
	if a.State() != "running" {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "not ready")
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok", "version": ver})
}

func (a *App) statusHandler(ctx *fasthttp.RequestCtx) {
	processed, failed := a.proc.Stats()
	attempts, frames := a.rt.Stats()
	pm := a.db.Metrics()
	_ = router.WriteJSON(ctx, map[string]any{
		"state":         a.State(),
		"version":       a.version,
		"replica":       a.paths.Root,
		"frames":        frames,
		"dial_attempts": attempts,
		"processed":     processed,
		"failed":        failed,
		"disk_size":     humanize.IBytes(pm.DiskSpaceUsage()),
		"memtables":     humanize.IBytes(pm.MemTable.Size),
	})
}

func (a *App) channelsHandler(ctx *fasthttp.RequestCtx) {
	var out []channelView
	err := a.db.Read(func(r *store.ReadSession) error {
		rows, err := r.Channels()
		if err != nil {
			return err
		}
		out = make([]channelView, 0, len(rows))
		for _, row := range rows {
			ids, err := r.ChannelMessageIDs(row.CID, 0)
			if err != nil {
				return err
			}
			v := channelView{
				CID:         row.CID.String(),
				Name:        row.Name,
				MemberCount: row.MemberCount,
				Messages:    len(ids),
				LastMessage: row.LastMessageAt,
			}
			if row.LastMessageAt != nil {
				v.LastActivity = humanize.Time(*row.LastMessageAt)
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		a.storeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{"channels": out})
}

func (a *App) channelMessagesHandler(ctx *fasthttp.RequestCtx) {
	cid, ok := channelParam(ctx)
	if !ok {
		return
	}
	msgs, err := a.chat.ChannelMessages(cid, router.QueryInt(ctx, "limit", defaultPageSize))
	if err != nil {
		a.storeError(ctx, err)
		return
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, viewOf(m))
	}
	_ = router.WriteJSON(ctx, map[string]any{"cid": cid.String(), "messages": views})
}

type sendRequest struct {
	Text     string  `json:"text"`
	ParentID *string `json:"parent_id,omitempty"`
}

func (a *App) sendMessageHandler(ctx *fasthttp.RequestCtx) {
	cid, ok := channelParam(ctx)
	if !ok {
		return
	}
	var req sendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "text is required")
		return
	}
	msg, err := a.chat.SendMessage(ctx, cid, store.NewMessage{Text: req.Text, ParentMessageID: req.ParentID})
	if msg == nil {
		a.storeError(ctx, err)
		return
	}
	status := fasthttp.StatusCreated
	if err != nil {
		// the message is kept locally as sendingFailed and can be resent
		logger.Warn("debug_send_failed", "cid", cid.String(), "id", msg.ID, "error", err)
		status = fasthttp.StatusBadGateway
	}
	_ = router.WriteJSONStatus(ctx, status, viewOf(msg))
}

func (a *App) markReadHandler(ctx *fasthttp.RequestCtx) {
	cid, ok := channelParam(ctx)
	if !ok {
		return
	}
	messageID := string(ctx.QueryArgs().Peek("message_id"))
	if err := a.chat.MarkRead(ctx, cid, messageID); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadGateway, err.Error())
		return
	}
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok"})
}

func (a *App) messageHandler(ctx *fasthttp.RequestCtx) {
	msg, err := a.chat.Message(router.PathParam(ctx, "id"))
	if err != nil {
		a.storeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, viewOf(msg))
}

func (a *App) deleteMessageHandler(ctx *fasthttp.RequestCtx) {
	id := router.PathParam(ctx, "id")
	if err := a.chat.DeleteMessage(ctx, id); err != nil {
		a.storeError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (a *App) resendMessageHandler(ctx *fasthttp.RequestCtx) {
	msg, err := a.chat.ResendMessage(ctx, router.PathParam(ctx, "id"))
	if msg == nil || err != nil {
		a.storeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, viewOf(msg))
}

func (a *App) retentionHandler(ctx *fasthttp.RequestCtx) {
	if a.retention == nil {
		router.WriteJSONError(ctx, fasthttp.StatusConflict, "retention disabled")
		return
	}
	rep, err := a.retention.RunNow(ctx)
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	_ = router.WriteJSON(ctx, rep)
}

func channelParam(ctx *fasthttp.RequestCtx) (models.ChannelID, bool) {
	cid, err := models.ParseChannelID(router.PathParam(ctx, "cid"))
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid cid")
		return models.ChannelID{}, false
	}
	return cid, true
}

// storeError maps replica and action errors to a status.
func (a *App) storeError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case err == nil:
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "unknown error")
	case store.IsNotFound(err), errors.Is(err, store.ErrMessageDoesNotExist), errors.Is(err, store.ErrChannelDoesNotExist):
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrCurrentUserDoesNotExist), errors.Is(err, chat.ErrNotSendable):
		router.WriteJSONError(ctx, fasthttp.StatusConflict, err.Error())
	default:
		logger.Error("debug_request_failed", "path", string(ctx.Path()), "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
	}
}

// startHTTP serves the debug router on addr. Listen errors are sent on errCh.
func (a *App) startHTTP(addr string, errCh chan<- error) {
	const (
		readBufferSize       = 16 * 1024
		maxRequestBodySize   = 1024 * 1024
		readTimeout          = 10 * time.Second
		writeTimeout         = 10 * time.Second
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Handler:              a.routes().Handler,
		Name:                 "chatsync",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   maxRequestBodySize,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}
	go func() {
		logger.Info("debug_server_listening", "addr", addr)
		if err := a.srvFast.ListenAndServe(addr); err != nil {
			errCh <- err
		}
	}()
}
