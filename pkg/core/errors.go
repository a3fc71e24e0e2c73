package core

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a client error.
type ErrorKind int

// Error kind constants categorize errors for proper handling and retry logic.
const (
	// KindNetwork indicates DNS, connect, timeout or other transport failure.
	// Always potentially transient.
	KindNetwork ErrorKind = iota
	// KindHTTPStatus indicates a non-2xx response without a decodable envelope.
	KindHTTPStatus
	// KindAPI indicates an error reported by the exchange inside the envelope.
	KindAPI
	// KindAuthentication indicates rejected credentials or a failed refresh.
	KindAuthentication
	// KindInvalidResponse indicates an envelope that could not be decoded into
	// the expected result type.
	KindInvalidResponse
	// KindConfig indicates misuse detected before any request was attempted.
	KindConfig
)

var kindNames = [...]string{
	"NETWORK",
	"HTTP_STATUS",
	"API",
	"AUTHENTICATION",
	"INVALID_RESPONSE",
	"CONFIG",
}

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNoCredentials is returned when a private call is made without credentials.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrEmptyResult is returned when the envelope carries neither result nor error.
	ErrEmptyResult = errors.New("envelope has no result")
)

// Error is the single error type surfaced by the client. Exactly one Kind is
// set; the remaining fields are populated as the kind allows.
type Error struct {
	// Kind categorizes the error for programmatic handling.
	Kind ErrorKind `json:"kind"`
	// StatusCode is the HTTP status code, when a response was received.
	StatusCode int `json:"status_code,omitempty"`
	// Code is the exchange error code for KindAPI.
	Code int `json:"code,omitempty"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Body is the raw response body for KindHTTPStatus and KindInvalidResponse.
	Body []byte `json:"-"`
	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindAPI:
		return fmt.Sprintf("deribit: %s (%d): %s", e.Kind, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("deribit: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Err != nil && e.Message != e.Err.Error():
		return fmt.Sprintf("deribit: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("deribit: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// NewHTTPStatusError reports a non-2xx response that carried no envelope.
func NewHTTPStatusError(statusCode int, status string, body []byte) *Error {
	if status == "" {
		status = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &Error{Kind: KindHTTPStatus, StatusCode: statusCode, Message: status, Body: body}
}

// NewAPIError reports an exchange error from the envelope.
func NewAPIError(code int, message string) *Error {
	return &Error{Kind: KindAPI, Code: code, Message: message}
}

// NewAuthenticationError reports a failed token exchange.
func NewAuthenticationError(message string, err error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: err}
}

// NewInvalidResponseError reports an undecodable envelope or result.
func NewInvalidResponseError(message string, body []byte, err error) *Error {
	return &Error{Kind: KindInvalidResponse, Message: message, Body: body, Err: err}
}

// NewConfigError reports misuse before any request is attempted.
func NewConfigError(message string, err error) *Error {
	return &Error{Kind: KindConfig, Message: message, Err: err}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func isKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// IsNetworkError returns true if the error is a network connectivity issue.
// Network errors are typically retryable.
func IsNetworkError(err error) bool {
	return isKind(err, KindNetwork)
}

// IsHTTPStatusError returns true if the error is a bare non-2xx response.
func IsHTTPStatusError(err error) bool {
	return isKind(err, KindHTTPStatus)
}

// IsAPIError returns true if the exchange reported the error.
func IsAPIError(err error) bool {
	return isKind(err, KindAPI)
}

// IsAuthenticationError returns true if the error is an authentication failure.
// Authentication errors require credential validation and are not retryable.
func IsAuthenticationError(err error) bool {
	return isKind(err, KindAuthentication)
}

// IsInvalidResponseError returns true if the response could not be decoded.
func IsInvalidResponseError(err error) bool {
	return isKind(err, KindInvalidResponse)
}

// IsConfigError returns true if the error was raised before any request.
func IsConfigError(err error) bool {
	return isKind(err, KindConfig)
}

// IsAPICode returns true if err is an exchange error with the given code.
func IsAPICode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindAPI && e.Code == int(code)
}

// IsRetryable returns true if a caller may reasonably retry, possibly after
// backing off. The client itself never retries.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	case KindAPI:
		return ErrorCode(e.Code).IsThrottling()
	}
	return false
}
