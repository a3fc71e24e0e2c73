package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		name string
		kind ErrorKind
		want string
	}{
		{"network", KindNetwork, "NETWORK"},
		{"http_status", KindHTTPStatus, "HTTP_STATUS"},
		{"api", KindAPI, "API"},
		{"authentication", KindAuthentication, "AUTHENTICATION"},
		{"invalid_response", KindInvalidResponse, "INVALID_RESPONSE"},
		{"config", KindConfig, "CONFIG"},
		{"out_of_range", ErrorKind(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "api",
			err:  NewAPIError(10009, "not_enough_funds"),
			want: "deribit: API (10009): not_enough_funds",
		},
		{
			name: "http_status",
			err:  NewHTTPStatusError(502, "502 Bad Gateway", nil),
			want: "deribit: HTTP_STATUS (status 502): 502 Bad Gateway",
		},
		{
			name: "http_status_without_text",
			err:  NewHTTPStatusError(503, "", nil),
			want: "deribit: HTTP_STATUS (status 503): HTTP 503",
		},
		{
			name: "network_with_cause",
			err:  NewNetworkError("GET /public/test", errors.New("connection refused")),
			want: "deribit: NETWORK: GET /public/test: connection refused",
		},
		{
			name: "config",
			err:  NewConfigError("missing credentials", nil),
			want: "deribit: CONFIG: missing credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := NewNetworkError("acquire", context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)

	wrapped := fmt.Errorf("get ticker: %w", err)
	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, got.Kind)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		check     func(error) bool
		want      bool
		retryable bool
	}{
		{"network", NewNetworkError("dial", nil), IsNetworkError, true, true},
		{"http 500", NewHTTPStatusError(500, "", nil), IsHTTPStatusError, true, true},
		{"http 429", NewHTTPStatusError(429, "", nil), IsHTTPStatusError, true, true},
		{"http 404", NewHTTPStatusError(404, "", nil), IsHTTPStatusError, true, false},
		{"api throttled", NewAPIError(10028, "too_many_requests"), IsAPIError, true, true},
		{"api funds", NewAPIError(10009, "not_enough_funds"), IsAPIError, true, false},
		{"auth", NewAuthenticationError("refresh failed", nil), IsAuthenticationError, true, false},
		{"invalid response", NewInvalidResponseError("bad json", nil, nil), IsInvalidResponseError, true, false},
		{"config", NewConfigError("bad", nil), IsConfigError, true, false},
		{"wrapped", fmt.Errorf("ctx: %w", NewNetworkError("x", nil)), IsNetworkError, true, true},
		{"plain error", errors.New("boom"), IsNetworkError, false, false},
		{"nil", nil, IsAPIError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIsAPICode(t *testing.T) {
	err := fmt.Errorf("buy: %w", NewAPIError(int(ErrCodeNotEnoughFunds), "not_enough_funds"))

	assert.True(t, IsAPICode(err, ErrCodeNotEnoughFunds))
	assert.False(t, IsAPICode(err, ErrCodeTooManyRequests))
	assert.False(t, IsAPICode(NewHTTPStatusError(10009, "", nil), ErrCodeNotEnoughFunds))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "too_many_requests", ErrCodeTooManyRequests.String())
	assert.Equal(t, "unknown", ErrorCode(1).String())

	assert.True(t, ErrCodeTooManyRequests.IsThrottling())
	assert.False(t, ErrCodeNotEnoughFunds.IsThrottling())

	for _, c := range []ErrorCode{ErrCodeAuthorizationRequired, ErrCodeInvalidCredentials, ErrCodeUnauthorized} {
		assert.True(t, c.IsAuthRejected(), c.String())
	}
	assert.False(t, ErrCodeTooManyRequests.IsAuthRejected())
	assert.False(t, ErrCodeBadRequest.IsAuthRejected())

	assert.True(t, ErrCodeUnauthorized.IsAuthRejected())
	assert.True(t, ErrCodeInvalidCredentials.IsAuthRejected())
	assert.False(t, ErrCodeOrderNotFound.IsAuthRejected())
}
