// Package http is the single-shot HTTP transport behind the Deribit client.
// It never retries; every call maps to exactly one request on the wire.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("http client is closed")

// SensitiveParams are query parameters whose values are replaced before a URL
// is logged or returned inside an error.
var SensitiveParams = []string{"client_secret", "refresh_token", "access_token", "signature"}

const redacted = "REDACTED"

type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	BaseURL   string            `validate:"required,url"`
	Timeout   time.Duration     `validate:"min=1ms"`
	UserAgent string            `validate:"omitempty"`
	Headers   map[string]string `validate:"omitempty"`

	Logger zerolog.Logger `validate:"-"`
	// HTTPClient replaces the underlying net/http client, mainly in tests.
	HTTPClient *nethttp.Client `validate:"-"`
}

// Response is the raw outcome of one exchange with the server.
type Response struct {
	StatusCode int
	Status     string
	Header     nethttp.Header
	Body       []byte
	RequestID  string
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func NewClient(config *Config) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var client *resty.Client
	if config.HTTPClient != nil {
		client = resty.NewWithClient(config.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	logger := config.Logger
	c := &Client{
		client: client,
		logger: logger,
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("request_id", req.Header.Get(RequestIDHeader)).
			Str("method", req.Method).
			Str("url", RedactURL(req.URL)).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("request_id", resp.Request.Header.Get(RequestIDHeader)).
			Str("method", resp.Request.Method).
			Str("url", RedactURL(resp.Request.URL)).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Get issues a single GET for path with the query parameters URL-encoded.
// A non-2xx status is not an error here; errors are transport failures only.
func (c *Client) Get(ctx context.Context, path string, query, headers map[string]string) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	id := uuid.NewString()
	req := c.client.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, id)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(path)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = RedactURL(uerr.URL)
		}
		c.logger.Debug().
			Err(err).
			Str("request_id", id).
			Str("path", path).
			Msg("http request failed")
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Header:     resp.Header(),
		Body:       resp.Bytes(),
		RequestID:  id,
	}, nil
}

// RedactURL replaces the values of SensitiveParams in raw. A URL that does not
// parse loses its whole query.
func RedactURL(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return base
	}
	for _, k := range SensitiveParams {
		if values.Has(k) {
			values.Set(k, redacted)
		}
	}
	return base + "?" + values.Encode()
}
