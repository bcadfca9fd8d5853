package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"chatsync/pkg/config"
	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store"
)

var (
	general = models.NewChannelID(models.ChannelTypeMessaging, "general")
	t0      = time.Date(2020, 7, 16, 15, 39, 3, 0, time.UTC)
)

func newTestApp(t *testing.T, retention bool) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.Client.BaseURL = "http://127.0.0.1:1"
	cfg.Client.WSURL = "ws://127.0.0.1:1"
	cfg.Client.APIKey = "key"
	cfg.Client.UserID = "steep-moon-9"
	cfg.Retention.Enabled = retention
	cfg.ApplyDefaults()

	a, err := New(config.EffectiveConfigResult{
		Config: cfg,
		DBPath: filepath.Join(t.TempDir(), "replica"),
	}, "v0.0.1", "none", "unknown")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Shutdown(ctx))
		assert.Equal(t, "stopped", a.State())
	})
	return a
}

func seedChannel(t *testing.T, a *App) {
	t.Helper()
	user := payload.UserPayload{ID: "steep-moon-9", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, a.DB().Write(context.Background(), func(s *store.Session) error {
		if _, err := s.SaveChannelDetail(payload.ChannelDetailPayload{CID: general, Name: "General", CreatedAt: t0, UpdatedAt: t0}); err != nil {
			return err
		}
		for i, id := range []string{"m0", "m1"} {
			at := t0.Add(time.Duration(i) * time.Minute)
			if _, err := s.SaveMessage(payload.MessagePayload{
				ID:        id,
				Type:      models.MessageTypeRegular,
				User:      user,
				Text:      "hello " + id,
				CreatedAt: at,
				UpdatedAt: at,
			}, general); err != nil {
				return err
			}
		}
		return nil
	}))
}

func serve(a *App, method, uri, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	a.routes().Handler(&ctx)
	return &ctx
}

func TestHealthAndReady(t *testing.T) {
	a := newTestApp(t, false)
	assert.Equal(t, "created", a.State())

	ctx := serve(a, "GET", "/healthz", "")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(ctx.Response.Body()))

	ctx = serve(a, "GET", "/readyz", "")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())

	a.state.Store("running")
	ctx = serve(a, "GET", "/readyz", "")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"ok","version":"v0.0.1"}`, string(ctx.Response.Body()))
}

func TestChannelRoutes(t *testing.T) {
	a := newTestApp(t, false)
	seedChannel(t, a)

	ctx := serve(a, "GET", "/v1/channels", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var chans struct {
		Channels []channelView `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &chans))
	require.Len(t, chans.Channels, 1)
	assert.Equal(t, "messaging:general", chans.Channels[0].CID)
	assert.Equal(t, "General", chans.Channels[0].Name)
	assert.Equal(t, 2, chans.Channels[0].Messages)

	ctx = serve(a, "GET", "/v1/channels/messaging:general/messages?limit=1", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var page struct {
		CID      string        `json:"cid"`
		Messages []messageView `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.Equal(t, "steep-moon-9", page.Messages[0].Author)

	ctx = serve(a, "GET", "/v1/channels/bogus/messages", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestMessageRoutes(t *testing.T) {
	a := newTestApp(t, false)
	seedChannel(t, a)

	ctx := serve(a, "GET", "/v1/messages/m0", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var v messageView
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v))
	assert.Equal(t, "hello m0", v.Text)
	assert.True(t, v.SortedAt.Equal(t0))
	assert.Nil(t, v.LocalState)

	ctx = serve(a, "GET", "/v1/messages/missing", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	// no current user has been saved, so nothing can be composed
	ctx = serve(a, "POST", "/v1/channels/messaging:general/messages", `{"text":"hi"}`)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	ctx = serve(a, "POST", "/v1/channels/messaging:general/messages", `{"text":""}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = serve(a, "POST", "/v1/messages/m0/resend", "")
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
}

func TestMetricsAndStatus(t *testing.T) {
	a := newTestApp(t, false)

	ctx := serve(a, "GET", "/metrics", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "go_goroutines")

	ctx = serve(a, "GET", "/v1/status", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var st map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &st))
	assert.Equal(t, "created", st["state"])
	assert.EqualValues(t, 0, st["frames"])
}

func TestRetentionRoute(t *testing.T) {
	a := newTestApp(t, false)
	ctx := serve(a, "POST", "/v1/retention/run", "")
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	b := newTestApp(t, true)
	seedChannel(t, b)
	ctx = serve(b, "POST", "/v1/retention/run", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"scanned":2`)
}

func TestUnknownRoute(t *testing.T) {
	a := newTestApp(t, false)
	ctx := serve(a, "GET", "/v2/nothing", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"not found"}`, string(ctx.Response.Body()))
}
