// Package client provides the HTTP client for the cloud storage REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/pkg/protocol"
	"github.com/lmaocloud/cloudbrowser/pkg/retry"
)

// maxEnvelopeSize bounds how much of a JSON response body is read.
const maxEnvelopeSize = 32 << 20

// Observer receives one call per API operation. outcome is "ok",
// "canceled", or the Kind of the error.
type Observer func(op, outcome string, duration time.Duration)

// Client talks to the cloud storage REST API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	transferClient *http.Client // no overall timeout; headers bounded by Timeout
	retryConfig    retry.Config
	log            *zap.Logger
	observe        Observer
	tokens         *TokenStore
	onUnauthorized func()

	mu        sync.RWMutex
	online    bool
	lastSeen  time.Time
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string // API root, e.g. https://cloud.example.com/api
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
	Logger      *zap.Logger
	Observer    Observer

	// Tokens is cleared together with the in-memory token on a 401.
	Tokens *TokenStore
	// OnUnauthorized runs after a 401 cleared the session.
	OnUnauthorized func()
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RetryConfig.OnRetry == nil {
		log := cfg.Logger
		cfg.RetryConfig.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// Transfers may take long to send or stream, but the server must start
	// answering within the request timeout.
	transfers := transport.Clone()
	transfers.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transferClient: &http.Client{Transport: transfers},
		retryConfig:    cfg.RetryConfig,
		log:            cfg.Logger,
		observe:        cfg.Observer,
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
		online:         true,
		authToken:      normalizeToken(cfg.AuthToken),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken sets the bearer token for requests. A "Bearer " prefix is accepted.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = normalizeToken(token)
}

// AuthToken returns the current bearer token without its prefix.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	if online {
		c.lastSeen = time.Now()
	}
	c.mu.Unlock()

	if changed {
		if online {
			c.log.Info("server is back online")
		} else {
			c.log.Warn("server is unreachable")
		}
	}
}

// handleUnauthorized clears the session after a 401.
func (c *Client) handleUnauthorized(op string) {
	c.SetAuthToken("")
	if c.tokens != nil {
		if err := c.tokens.Delete(); err != nil && !errors.Is(err, errNoToken) {
			c.log.Warn("failed to delete token file", zap.Error(err))
		}
	}
	c.log.Warn("session rejected by server, token cleared", zap.String("op", op))
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func normalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// request describes one JSON API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	retry  bool // only for idempotent reads
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// newRequest builds an authenticated request tagged with a fresh request ID.
func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	c.applyAuth(req)
	return req, nil
}

// call performs r and decodes the envelope data into out (if non-nil).
func (c *Client) call(ctx context.Context, r request, out interface{}) error {
	cfg := retry.Once()
	if r.retry {
		cfg = c.retryConfig
	}

	start := time.Now()
	err := retry.Do(ctx, cfg, func() error {
		return c.attempt(ctx, r, out)
	})
	c.record(r.op, err, time.Since(start))
	return err
}

func (c *Client) attempt(ctx context.Context, r request, out interface{}) error {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("api request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, r.op, err)
	}
	defer resp.Body.Close()

	return c.decode(r.op, resp, out)
}

// transportError classifies a failed round trip. Caller cancellation is
// returned as the context error and never retried.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	c.setOnline(false)

	timeout := errors.Is(err, context.DeadlineExceeded)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	return retry.Retryable(networkError(op, err, timeout))
}

// decode turns a response into nil, an *Error, or a retryable *Error.
func (c *Client) decode(op string, resp *http.Response, out interface{}) error {
	c.setOnline(true)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return retry.Retryable(networkError(op, err, false))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env *protocol.Envelope
		var parsed protocol.Envelope
		if json.Unmarshal(data, &parsed) == nil {
			env = &parsed
		}
		e := httpError(op, resp.StatusCode, env)
		if errors.Is(e, ErrUnauthorized) {
			c.handleUnauthorized(op)
		}
		if retry.RetryableStatus(resp.StatusCode) {
			return retry.Retryable(e)
		}
		return e
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Error{Op: op, Kind: KindHTTP, Status: resp.StatusCode, Code: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	if !env.OK() {
		e := applicationError(op, resp.StatusCode, &env)
		if errors.Is(e, ErrUnauthorized) {
			c.handleUnauthorized(op)
		}
		return e
	}

	if out != nil {
		if err := env.DecodeData(out); err != nil {
			return &Error{Op: op, Kind: KindApplication, Status: resp.StatusCode, Code: env.Code, Message: "unexpected response data", Err: err}
		}
	}
	return nil
}

func (c *Client) record(op string, err error, d time.Duration) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = KindOf(err).String()
	}

	if err != nil && outcome != "canceled" {
		c.log.Debug("api request failed", zap.String("op", op), zap.Duration("duration", d), zap.Error(err))
	}
	if c.observe != nil {
		c.observe(op, outcome, d)
	}
}

// Ping checks that the server answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = retry.Cause(c.transportError(ctx, "ping", err))
	} else {
		resp.Body.Close()
		c.setOnline(true)
	}
	c.record("ping", err, time.Since(start))
	return err
}

// LastSeen returns when the server last answered.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}
