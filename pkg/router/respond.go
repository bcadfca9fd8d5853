package router

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// WriteJSON writes data as a JSON response with status 200.
func WriteJSON(ctx *fasthttp.RequestCtx, data any) error {
	ctx.Response.Header.SetContentType("application/json")
	return json.NewEncoder(ctx).Encode(data)
}

// WriteJSONStatus writes data as a JSON response with the given status.
func WriteJSONStatus(ctx *fasthttp.RequestCtx, status int, data any) error {
	ctx.SetStatusCode(status)
	return WriteJSON(ctx, data)
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": message})
}

// PathParam returns a path parameter captured by the router.
func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// QueryInt returns an integer query argument, or def when absent or invalid.
func QueryInt(ctx *fasthttp.RequestCtx, name string, def int) int {
	n, err := ctx.QueryArgs().GetUint(name)
	if err != nil {
		return def
	}
	return n
}
