package core

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Params are the query parameters of a call. Values are rendered with
// Values; nil entries are dropped.
type Params map[string]any

// Values renders every parameter as a query string value.
func (p Params) Values() map[string]string {
	if len(p) == 0 {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		if s, ok := formatParam(v); ok {
			out[k] = s
		}
	}
	return out
}

func formatParam(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case Decimal:
		return val.Param(), true
	case *Decimal:
		if val == nil {
			return "", false
		}
		return val.Param(), true
	case []string:
		return strings.Join(val, ","), true
	case fmt.Stringer:
		return val.String(), true
	}
	return fmt.Sprint(v), true
}

// Request describes one call: the endpoint path relative to the base URL, its
// query parameters and whether it needs a bearer token.
type Request struct {
	Path        string            `json:"path"`
	Query       Params            `json:"query,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequireAuth bool              `json:"require_auth"`
}

func NewRequest(path string) *Request {
	return &Request{
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}
