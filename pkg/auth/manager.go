package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"deribit/internal/clock"
	"deribit/internal/metrics"
	"deribit/pkg/core"
)

// DefaultSafetyMargin is how long before expiry a token is refreshed.
const DefaultSafetyMargin = 30 * time.Second

const flightKey = "token"

// Manager hands out a valid bearer token, refreshing it when it is missing
// or about to expire. Concurrent callers that find the token stale share a
// single refresh. The manager never retries a failed exchange.
type Manager struct {
	creds   Credentials
	fetcher Fetcher
	clock   clock.Clock
	margin  time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics

	group singleflight.Group
	token atomic.Pointer[Token]
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithSafetyMargin sets how long before expiry a token is considered stale.
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithLogger sets the logger for refresh events.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager with no cached token.
func NewManager(creds Credentials, fetcher Fetcher, opts ...Option) (*Manager, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, core.NewConfigError("auth: nil token fetcher", nil)
	}

	m := &Manager{
		creds:   creds,
		fetcher: fetcher,
		clock:   clock.System(),
		margin:  DefaultSafetyMargin,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Token returns a token valid for at least the safety margin. A fresh cached
// token is returned without suspending. Otherwise the caller joins the
// in-flight refresh or starts one. Cancelling ctx abandons the wait but not
// the refresh, whose result is still installed for later callers.
func (m *Manager) Token(ctx context.Context) (*Token, error) {
	if tok := m.token.Load(); m.valid(tok, m.clock.Now()) {
		return tok, nil
	}

	ch := m.group.DoChan(flightKey, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	case <-ctx.Done():
		return nil, core.NewNetworkError("waiting for token refresh", ctx.Err())
	}
}

// Cached returns the installed token without refreshing. It may be stale or nil.
func (m *Manager) Cached() *Token {
	return m.token.Load()
}

// Invalidate drops the cached token so the next Token call authenticates
// with client credentials.
func (m *Manager) Invalidate() {
	m.token.Store(nil)
	m.logger.Debug().Msg("auth token invalidated")
}

// SafetyMargin returns the configured refresh margin.
func (m *Manager) SafetyMargin() time.Duration {
	return m.margin
}

// marginFor is the safety margin applied to tok. A token whose whole
// lifetime fits inside the margin is refreshed at half its lifetime instead.
func (m *Manager) marginFor(tok *Token) time.Duration {
	if life := tok.Lifetime(); life > 0 && life <= m.margin {
		return life / 2
	}
	return m.margin
}

func (m *Manager) valid(tok *Token, now time.Time) bool {
	return tok.Valid(now, m.marginFor(tok))
}

func (m *Manager) refresh(ctx context.Context) (*Token, error) {
	// Another flight may have installed a token since the caller looked.
	cur := m.token.Load()
	if m.valid(cur, m.clock.Now()) {
		return cur, nil
	}

	req := TokenRequest{
		Grant:        GrantClientCredentials,
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
	}
	if cur != nil && cur.RefreshToken != "" {
		req = TokenRequest{Grant: GrantRefreshToken, RefreshToken: cur.RefreshToken}
	}

	resp, err := m.fetcher.FetchToken(ctx, req)
	if err == nil && (resp == nil || resp.AccessToken == "" || resp.ExpiresIn <= 0) {
		err = core.NewInvalidResponseError("auth response missing access_token or expires_in", nil, nil)
	}
	if err != nil {
		m.metrics.RecordRefresh(string(req.Grant), false)
		switch {
		case cur == nil:
		case cur.Expired(m.clock.Now()):
			m.token.CompareAndSwap(cur, nil)
		case req.Grant == GrantRefreshToken && core.IsAPIError(err):
			// The server refused the refresh token; the next flight
			// falls back to client credentials.
			kept := *cur
			kept.RefreshToken = ""
			m.token.CompareAndSwap(cur, &kept)
		}
		m.logger.Warn().
			Err(err).
			Str("grant", string(req.Grant)).
			Msg("token refresh failed")
		return nil, core.NewAuthenticationError("token refresh failed", err)
	}

	now := m.clock.Now()
	tok := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if tok.Lifetime() <= m.margin {
		m.logger.Warn().
			Dur("lifetime", tok.Lifetime()).
			Dur("margin", m.margin).
			Msg("token lifetime within safety margin, refreshing at half life")
	}
	m.token.Store(tok)
	m.metrics.RecordRefresh(string(req.Grant), true)
	m.logger.Debug().
		Str("grant", string(req.Grant)).
		Time("expires_at", tok.ExpiresAt).
		Msg("token refreshed")
	return tok, nil
}
