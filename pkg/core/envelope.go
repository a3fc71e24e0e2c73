package core

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Envelope is the JSON-RPC wrapper around every Deribit response.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
	// UsIn and UsOut are server receive and send timestamps in microseconds.
	UsIn    int64 `json:"usIn,omitempty"`
	UsOut   int64 `json:"usOut,omitempty"`
	UsDiff  int64 `json:"usDiff,omitempty"`
	Testnet bool  `json:"testnet,omitempty"`
}

// EnvelopeError is the error object of a failed call.
type EnvelopeError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var nullLiteral = []byte("null")

// HasResult reports whether the result field is present and not null.
func (e *Envelope) HasResult() bool {
	return len(e.Result) > 0 && !bytes.Equal(bytes.TrimSpace(e.Result), nullLiteral)
}

// ParseEnvelope decodes the outer envelope without touching the result.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, NewInvalidResponseError("malformed envelope", body, err)
	}
	return &env, nil
}

// Decode maps the envelope onto out. An error object wins over any result.
// A missing or null result is an invalid response. A nil out only checks
// that a result is present.
func (e *Envelope) Decode(out any) error {
	if e.Error != nil {
		return NewAPIError(e.Error.Code, e.Error.Message)
	}
	if !e.HasResult() {
		return NewInvalidResponseError("envelope has no result", nil, ErrEmptyResult)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(e.Result, out); err != nil {
		return NewInvalidResponseError("result does not match expected type", e.Result, err)
	}
	return nil
}

// DecodeEnvelope parses body and decodes its result into out.
func DecodeEnvelope(body []byte, out any) error {
	env, err := ParseEnvelope(body)
	if err != nil {
		return err
	}
	return env.Decode(out)
}

// EncodeError builds the envelope the server sends for a failed call.
func EncodeError(code int, message string) ([]byte, error) {
	return sonic.Marshal(&Envelope{
		JSONRPC: "2.0",
		Error:   &EnvelopeError{Code: code, Message: message},
	})
}

// EncodeResult builds the envelope the server sends for a successful call.
func EncodeResult(result any) ([]byte, error) {
	raw, err := sonic.Marshal(result)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(&Envelope{
		JSONRPC: "2.0",
		Result:  raw,
	})
}
