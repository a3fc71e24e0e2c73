// Package auth acquires and refreshes the OAuth2 bearer token used by
// private endpoints.
package auth

import (
	"context"
	"strconv"
	"time"

	"deribit/pkg/core"
)

// Credentials is the API key pair exchanged for a token.
type Credentials = core.Credentials

// Grant is the OAuth2 grant type of a token exchange.
type Grant string

const (
	GrantClientCredentials Grant = "client_credentials"
	GrantRefreshToken      Grant = "refresh_token"
)

// TokenRequest is one token exchange against public/auth.
type TokenRequest struct {
	Grant        Grant
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Params renders the request as query parameters.
func (r TokenRequest) Params() core.Params {
	p := core.Params{"grant_type": string(r.Grant)}
	switch r.Grant {
	case GrantRefreshToken:
		p["refresh_token"] = r.RefreshToken
	default:
		p["client_id"] = r.ClientID
		p["client_secret"] = r.ClientSecret
	}
	return p
}

// TokenResponse is the result of public/auth.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// Fetcher performs a token exchange.
type Fetcher interface {
	FetchToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req TokenRequest) (*TokenResponse, error)

func (f FetcherFunc) FetchToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	return f(ctx, req)
}

// Token is an issued bearer token. Tokens are immutable once installed.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Lifetime is the validity window granted by the server. It is zero when
// IssuedAt is unset.
func (t *Token) Lifetime() time.Duration {
	if t == nil || t.IssuedAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Valid reports whether the token can be used at now without dipping into
// the safety margin.
func (t *Token) Valid(now time.Time, margin time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// Expired reports whether the server would already reject the token.
func (t *Token) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

// AuthorizationHeader returns the Authorization header value.
func (t *Token) AuthorizationHeader() string {
	return "Bearer " + t.AccessToken
}

// String hides the token values.
func (t *Token) String() string {
	if t == nil {
		return "Token(nil)"
	}
	return "Token{ExpiresAt: " + t.ExpiresAt.Format(time.RFC3339) + ", Scope: " + strconv.Quote(t.Scope) + "}"
}
