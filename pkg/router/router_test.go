package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func serve(r *Router, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	r.Handler(&ctx)
	return &ctx
}

func TestRouterParams(t *testing.T) {
	r := New()
	r.GET("/v1/channels/{cid}/messages", func(ctx *fasthttp.RequestCtx) {
		_ = WriteJSON(ctx, map[string]any{"cid": PathParam(ctx, "cid"), "limit": QueryInt(ctx, "limit", 25)})
	})
	r.DELETE("/messages/{id}/reaction/{type}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})

	ctx := serve(r, "GET", "/v1/channels/messaging:general/messages?limit=5")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"cid":"messaging:general","limit":5}`, string(ctx.Response.Body()))

	ctx = serve(r, "GET", "/v1/channels/messaging%3Aa%20b/messages/")
	assert.JSONEq(t, `{"cid":"messaging:a b","limit":25}`, string(ctx.Response.Body()))

	assert.Equal(t, fasthttp.StatusNoContent, serve(r, "DELETE", "/messages/m1/reaction/like").Response.StatusCode())
}

func TestRouterNotFound(t *testing.T) {
	r := New()
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {})

	ctx := serve(r, "POST", "/healthz")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "no route")

	r.NotFound(func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusTeapot) })
	assert.Equal(t, fasthttp.StatusTeapot, serve(r, "GET", "/nope").Response.StatusCode())
	assert.Equal(t, []string{"GET /healthz"}, r.Routes())
}
