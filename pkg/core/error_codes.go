package core

// ErrorCode is a numeric error identifier reported by the exchange in the
// envelope error object.
type ErrorCode int

// Exchange error codes the client reacts to or exposes for callers.
const (
	ErrCodeAuthorizationRequired  ErrorCode = 10000
	ErrCodeOrderNotFound          ErrorCode = 10004
	ErrCodeNotEnoughFunds         ErrorCode = 10009
	ErrCodeTooManyRequests        ErrorCode = 10028
	ErrCodeBadRequest             ErrorCode = 11050
	ErrCodeInvalidCredentials     ErrorCode = 13004
	ErrCodeUnauthorized           ErrorCode = 13009
	ErrCodeTemporarilyUnavailable ErrorCode = 13028

	// JSON-RPC protocol codes.
	ErrCodeMethodNotFound ErrorCode = -32601
	ErrCodeInvalidParams  ErrorCode = -32602
)

var codeNames = map[ErrorCode]string{
	ErrCodeAuthorizationRequired:  "authorization_required",
	ErrCodeOrderNotFound:          "order_not_found",
	ErrCodeNotEnoughFunds:         "not_enough_funds",
	ErrCodeTooManyRequests:        "too_many_requests",
	ErrCodeBadRequest:             "bad_request",
	ErrCodeInvalidCredentials:     "invalid_credentials",
	ErrCodeUnauthorized:           "unauthorized",
	ErrCodeTemporarilyUnavailable: "temporarily_unavailable",
	ErrCodeMethodNotFound:         "method_not_found",
	ErrCodeInvalidParams:          "invalid_params",
}

// String returns the exchange's name for the code, or "unknown".
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// IsThrottling reports whether the code tells the caller to back off.
func (c ErrorCode) IsThrottling() bool {
	return c == ErrCodeTooManyRequests
}

// IsAuthRejected reports whether the code means the bearer token or the
// credentials were not accepted.
func (c ErrorCode) IsAuthRejected() bool {
	switch c {
	case ErrCodeAuthorizationRequired, ErrCodeInvalidCredentials, ErrCodeUnauthorized:
		return true
	}
	return false
}
