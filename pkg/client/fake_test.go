package client

import (
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"deribit/internal/clock"
	"deribit/pkg/core"
)

var fixtures = map[string]string{
	core.PathTest:    `{"version":"1.2.26"}`,
	core.PathGetTime: `1700000000123`,
	core.PathTicker: `{"instrument_name":"BTC-PERPETUAL","state":"open","timestamp":1700000000000,
		"best_bid_price":64000.5,"best_ask_price":64001,"last_price":64000.5,"mark_price":64000.7,
		"stats":{"high":65000,"low":63000,"volume":1234.5}}`,
	core.PathGetOrderBook: `{"instrument_name":"BTC-PERPETUAL","change_id":1,
		"bids":[[64000.5,100]],"asks":[[64001,50]]}`,
	core.PathGetInstruments: `[{"instrument_name":"BTC-PERPETUAL","kind":"future","base_currency":"BTC",
		"quote_currency":"USD","tick_size":0.5,"min_trade_amount":10,"is_active":true}]`,
	core.PathGetAccountSummary: `{"currency":"BTC","equity":1.5,"balance":1.4,"available_funds":1.2}`,
	core.PathGetPositions:      `[{"instrument_name":"BTC-PERPETUAL","kind":"future","direction":"buy","size":100}]`,
	core.PathGetOpenOrders: `[{"order_id":"1","instrument_name":"BTC-PERPETUAL","order_state":"open",
		"direction":"buy","order_type":"limit","price":64000,"amount":10}]`,
	core.PathBuy: `{"order":{"order_id":"2","instrument_name":"BTC-PERPETUAL","direction":"buy",
		"order_type":"limit","order_state":"open","price":64000.5,"amount":10},"trades":[]}`,
	core.PathSell: `{"order":{"order_id":"3","instrument_name":"BTC-PERPETUAL","direction":"sell",
		"order_type":"market","order_state":"filled","price":"market_price","amount":10},"trades":[]}`,
	core.PathCancel: `{"order_id":"1","instrument_name":"BTC-PERPETUAL","order_state":"cancelled",
		"direction":"buy","order_type":"limit","price":64000,"amount":10}`,
	core.PathCancelAll:             `3`,
	core.PathCancelAllByInstrument: `2`,
}

type recordedRequest struct {
	Path          string
	Query         url.Values
	Authorization string
}

// fakeExchange serves canned envelopes and records every request. Paths in
// overrides take precedence over the fixtures.
type fakeExchange struct {
	t         *testing.T
	server    *httptest.Server
	mu        sync.Mutex
	requests  []recordedRequest
	authCalls int
	overrides map[string]nethttp.HandlerFunc
}

func newFakeExchange(t *testing.T) *fakeExchange {
	t.Helper()
	f := &fakeExchange{t: t, overrides: make(map[string]nethttp.HandlerFunc)}
	f.server = httptest.NewServer(nethttp.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeExchange) serve(w nethttp.ResponseWriter, r *nethttp.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get(core.HeaderAuthorization),
	})
	var n int
	if r.URL.Path == core.PathAuth {
		f.authCalls++
		n = f.authCalls
	}
	override := f.overrides[r.URL.Path]
	f.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}

	if r.URL.Path == core.PathAuth {
		writeResult(w, fmt.Sprintf(`{"access_token":"access-%d","expires_in":900,"refresh_token":"refresh-%d","token_type":"bearer","scope":"session:test"}`, n, n))
		return
	}

	if strings.HasPrefix(r.URL.Path, "/private/") && r.Header.Get(core.HeaderAuthorization) == "" {
		writeError(w, nethttp.StatusBadRequest, int(core.ErrCodeUnauthorized), "unauthorized")
		return
	}

	fixture, ok := fixtures[r.URL.Path]
	if !ok {
		writeError(w, nethttp.StatusBadRequest, int(core.ErrCodeMethodNotFound), "Method not found")
		return
	}
	writeResult(w, fixture)
}

func (f *fakeExchange) handle(path string, h nethttp.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[path] = h
}

func (f *fakeExchange) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeExchange) RequestsTo(path string) []recordedRequest {
	var out []recordedRequest
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeExchange) AuthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

func writeResult(w nethttp.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"usIn":1,"usOut":2,"usDiff":1,"testnet":true}`, result)
}

func writeError(w nethttp.ResponseWriter, status, code int, message string) {
	body, err := core.EncodeError(code, message)
	if err != nil {
		panic(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (f *fakeExchange) config() *core.Config {
	return core.DefaultConfig().
		WithBaseURL(f.server.URL).
		WithCredentials("client-id", "client-secret").
		WithLogLevel("disabled")
}

func (f *fakeExchange) newClient(cfg *core.Config) (*Client, *clock.Manual) {
	f.t.Helper()
	clk := clock.NewManual()
	c, err := New(cfg, WithClock(clk))
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = c.Close() })
	return c, clk
}
