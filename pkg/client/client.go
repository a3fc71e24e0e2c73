// Package client is the Deribit REST client. Every call goes through the same
// dispatch path: classify, acquire quota, attach the bearer token, send one
// GET, decode the envelope.
package client

import (
	"context"
	"maps"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deribit/internal/clock"
	internalhttp "deribit/internal/http"
	"deribit/internal/metrics"
	"deribit/internal/ratelimit"
	"deribit/pkg/auth"
	"deribit/pkg/core"
)

// State represents the lifecycle state of a Client.
type State int

const (
	// StateActive indicates a client that is ready to process requests.
	StateActive State = iota
	// StateClosed indicates a client that has been shut down and can no longer be used.
	StateClosed
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Client dispatches requests to the Deribit REST API.
// It owns exactly one rate limiter and one auth manager; share the *Client
// to share them. Clients are safe for concurrent use.
type Client struct {
	mu        sync.RWMutex
	config    *core.Config
	transport *internalhttp.Client
	limiter   *ratelimit.RateLimiter
	auth      *auth.Manager
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	clock     clock.Clock
	state     State
	createdAt time.Time
	lastUsed  time.Time
}

type options struct {
	logger     zerolog.Logger
	clock      clock.Clock
	metrics    *metrics.Metrics
	httpClient *nethttp.Client
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. Its level is capped by Config.LogLevel.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the time source for rate limiting and token expiry.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHTTPClient replaces the underlying net/http client.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New creates a Client with the provided configuration. A nil config uses
// DefaultConfig. The configuration is validated before the client is created.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger: zerolog.Nop(),
		clock:  clock.System(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if config.LogLevel != "" {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger = logger.Level(level)
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = core.DefaultUserAgent
	}
	transport, err := internalhttp.NewClient(&internalhttp.Config{
		BaseURL:    config.Endpoint(),
		Timeout:    config.Timeout,
		UserAgent:  userAgent,
		Headers:    map[string]string{"Accept": "application/json"},
		Logger:     logger.With().Str("component", "http").Logger(),
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, core.NewConfigError("http transport", err)
	}

	limiter, err := ratelimit.New(config.Limits,
		ratelimit.WithClock(o.clock),
		ratelimit.WithLogger(logger.With().Str("component", "ratelimit").Logger()),
		ratelimit.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, core.NewConfigError("rate limiter", err)
	}

	now := o.clock.Now()
	c := &Client{
		config:    config,
		transport: transport,
		limiter:   limiter,
		logger:    logger,
		metrics:   o.metrics,
		clock:     o.clock,
		state:     StateActive,
		createdAt: now,
		lastUsed:  now,
	}

	if config.HasCredentials() {
		c.auth, err = auth.NewManager(*config.Credentials, c,
			auth.WithClock(o.clock),
			auth.WithSafetyMargin(config.SafetyMargin),
			auth.WithLogger(logger.With().Str("component", "auth").Logger()),
			auth.WithMetrics(o.metrics),
		)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Send executes req and decodes the result into out, which may be nil.
// Exactly one rate limit token is consumed once the request is admitted,
// whatever the outcome of the exchange. The client never retries.
func (c *Client) Send(ctx context.Context, req *core.Request, out any) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return core.NewConfigError("client is closed", core.ErrClientClosed)
	}
	c.lastUsed = c.clock.Now()
	c.mu.Unlock()

	if req.RequireAuth && c.auth == nil {
		return core.NewConfigError("private endpoint "+req.Path+" requires credentials", core.ErrNoCredentials)
	}

	category := ratelimit.Classify(req.Path)
	if err := c.limiter.Acquire(ctx, category); err != nil {
		c.metrics.RecordRequest(category.String(), "cancelled")
		return core.NewNetworkError("rate limit wait", err)
	}

	headers := maps.Clone(req.Headers)
	if req.RequireAuth {
		tok, err := c.auth.Token(ctx)
		if err != nil {
			c.metrics.RecordRequest(category.String(), outcome(err))
			return err
		}
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers[core.HeaderAuthorization] = tok.AuthorizationHeader()
	}

	resp, err := c.transport.Get(ctx, req.Path, req.Query.Values(), headers)
	if err != nil {
		err = core.NewNetworkError("GET "+req.Path, err)
		c.metrics.RecordRequest(category.String(), outcome(err))
		return err
	}

	err = c.decode(resp, out)
	if req.RequireAuth && authRejected(err) {
		c.auth.Invalidate()
	}
	c.metrics.RecordRequest(category.String(), outcome(err))
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("path", req.Path).
			Str("category", category.String()).
			Str("request_id", resp.RequestID).
			Msg("request failed")
	}
	return err
}

// decode maps a raw response onto the error taxonomy. On non-2xx the error
// object of a decodable envelope is authoritative; without one the status is.
func (c *Client) decode(resp *internalhttp.Response, out any) error {
	if !resp.IsSuccess() {
		env, err := core.ParseEnvelope(resp.Body)
		if err == nil && env.Error != nil {
			apiErr := core.NewAPIError(env.Error.Code, env.Error.Message)
			apiErr.StatusCode = resp.StatusCode
			return apiErr
		}
		return core.NewHTTPStatusError(resp.StatusCode, resp.Status, resp.Body)
	}
	return core.DecodeEnvelope(resp.Body, out)
}

func authRejected(err error) bool {
	e, ok := core.AsError(err)
	return ok && e.Kind == core.KindAPI && core.ErrorCode(e.Code).IsAuthRejected()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if e, ok := core.AsError(err); ok {
		return e.Kind.String()
	}
	return "error"
}

// Get sends a GET to path and decodes the result into a T.
func Get[T any](ctx context.Context, c *Client, path string, params core.Params, requireAuth bool) (T, error) {
	var out T
	req := core.NewRequest(path).SetQueryParams(params).SetRequireAuth(requireAuth)
	if err := c.Send(ctx, req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// FetchToken implements auth.Fetcher against public/auth. The exchange goes
// through the rate limiter like any other public call.
func (c *Client) FetchToken(ctx context.Context, req auth.TokenRequest) (*auth.TokenResponse, error) {
	resp, err := Get[auth.TokenResponse](ctx, c, core.PathAuth, req.Params(), false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *ratelimit.RateLimiter {
	return c.limiter
}

// Auth returns the auth manager, or nil when no credentials are configured.
func (c *Client) Auth() *auth.Manager {
	return c.auth
}

// Config returns the configuration used to create the client.
func (c *Client) Config() *core.Config {
	return c.config
}

// State returns the current lifecycle state of the client.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CreatedAt returns the timestamp when the client was created.
func (c *Client) CreatedAt() time.Time {
	return c.createdAt
}

// LastUsed returns the timestamp of the last request sent by the client.
func (c *Client) LastUsed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUsed
}

// Close shuts down the client and releases the transport. Calls after Close
// fail with a config error.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	if c.auth != nil {
		c.auth.Invalidate()
	}
	return c.transport.Close()
}
