package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"chatsync/pkg/logger"
	"chatsync/pkg/telemetry"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 10
	defaultBurst   = 20
	userAgent      = "chatsync"
)

type Config struct {
	BaseURL string
	APIKey  string
	Token   string

	Timeout   time.Duration
	RateLimit float64
	Burst     int

	// Dial overrides the connection dialer, tests use an in-memory listener.
	Dial    fasthttp.DialFunc
	Metrics *telemetry.Metrics
}

// Client calls the chat backend's REST endpoints. Requests are rate limited
// client side and authenticated with the api key and user token.
type Client struct {
	cfg     Config
	base    string
	hc      *fasthttp.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.BaseURL, "/"),
		hc: &fasthttp.Client{
			Name:         userAgent,
			Dial:         cfg.Dial,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}, nil
}

// do sends one request and decodes a 2xx JSON response into out. endpoint
// names the request in logs and metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/" + path)
	req.URI().QueryArgs().Add("api_key", c.cfg.APIKey)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", c.cfg.Token)
	req.Header.Set("Stream-Auth-Type", "jwt")
	req.Header.Set("Accept", "application/json")

	if body != nil {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(buf.B)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.hc.DoDeadline(req, resp, deadline)
	elapsed := time.Since(start)
	if err != nil {
		c.cfg.Metrics.ObserveRequest(endpoint, "error", elapsed)
		logger.Warn("api_request_failed", "endpoint", endpoint, "error", err)
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			return fmt.Errorf("%s: %w", endpoint, ctx.Err())
		}
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	status := resp.StatusCode()
	c.cfg.Metrics.ObserveRequest(endpoint, strconv.Itoa(status), elapsed)
	logger.Debug("api_request", "endpoint", endpoint, "status", status, "elapsed", elapsed)

	if status < 200 || status > 299 {
		return errorFromResponse(status, resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

func pathOf(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
