package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deribit/internal/clock"
	"deribit/pkg/core"
)

var testCreds = Credentials{ClientID: "client-id", ClientSecret: "client-secret"}

// fakeFetcher issues sequentially numbered tokens and records every request.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     int
	requests  []TokenRequest
	expiresIn int64
	err       error
	gate      chan struct{}
	started   chan struct{}
	ctxErr    error
}

func newFakeFetcher(expiresIn int64) *fakeFetcher {
	return &fakeFetcher{expiresIn: expiresIn}
}

func (f *fakeFetcher) FetchToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.requests = append(f.requests, req)
	gate, started, err, expiresIn := f.gate, f.started, f.err, f.expiresIn
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.ctxErr = ctx.Err()
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		ExpiresIn:    expiresIn,
		TokenType:    "bearer",
		Scope:        "trade:read_write",
	}, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) LastRequest() TokenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestManager(t *testing.T, f Fetcher) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual()
	m, err := NewManager(testCreds, f, WithClock(clk))
	require.NoError(t, err)
	return m, clk
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Credentials{ClientID: "id"}, newFakeFetcher(900))
	assert.True(t, core.IsConfigError(err))

	_, err = NewManager(testCreds, nil)
	assert.True(t, core.IsConfigError(err))

	m, err := NewManager(testCreds, newFakeFetcher(900))
	require.NoError(t, err)
	assert.Equal(t, DefaultSafetyMargin, m.SafetyMargin())
	assert.Nil(t, m.Cached())
}

func TestManager_TokenFetchesOnceAndCaches(t *testing.T) {
	f := newFakeFetcher(900)
	m, clk := newTestManager(t, f)

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "Bearer access-1", tok.AuthorizationHeader())
	assert.Equal(t, clock.Epoch.Add(900*time.Second), tok.ExpiresAt)
	assert.Equal(t, GrantClientCredentials, f.LastRequest().Grant)
	assert.Equal(t, "client-id", f.LastRequest().ClientID)

	clk.Advance(10 * time.Minute)
	again, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Same(t, tok, again)
	assert.Equal(t, 1, f.Calls())
}

func TestManager_RefreshInsideSafetyMargin(t *testing.T) {
	f := newFakeFetcher(40)
	m, clk := newTestManager(t, f)

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	// 10 seconds left against a 30 second margin.
	clk.Advance(30 * time.Second)
	assert.False(t, first.Valid(clk.Now(), m.SafetyMargin()))
	assert.False(t, first.Expired(clk.Now()))

	second, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", second.AccessToken)
	assert.Equal(t, 2, f.Calls())

	req := f.LastRequest()
	assert.Equal(t, GrantRefreshToken, req.Grant)
	assert.Equal(t, "refresh-1", req.RefreshToken)
	assert.Same(t, second, m.Cached())
}

func TestManager_ConcurrentCallersShareOneRefresh(t *testing.T) {
	f := newFakeFetcher(900)
	f.gate = make(chan struct{})
	f.started = make(chan struct{})
	m, _ := newTestManager(t, f)

	const callers = 50
	var wg, launched sync.WaitGroup
	tokens := make([]*Token, callers)
	errs := make([]error, callers)
	launched.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			launched.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}(i)
	}

	launched.Wait()
	<-f.started
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, tokens[0], tokens[i])
	}
}

func TestManager_ConcurrentCallersShareOneFailure(t *testing.T) {
	f := newFakeFetcher(900)
	f.err = core.NewAPIError(int(core.ErrCodeInvalidCredentials), "invalid_credentials")
	f.gate = make(chan struct{})
	f.started = make(chan struct{})
	m, _ := newTestManager(t, f)

	const callers = 20
	var wg, launched sync.WaitGroup
	errs := make([]error, callers)
	launched.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			launched.Done()
			_, errs[i] = m.Token(context.Background())
		}(i)
	}

	launched.Wait()
	<-f.started
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.Calls())
	for i := 0; i < callers; i++ {
		assert.True(t, core.IsAuthenticationError(errs[i]))
		assert.Same(t, errs[0], errs[i])
	}
	assert.True(t, core.IsAPICode(errors.Unwrap(errs[0]), core.ErrCodeInvalidCredentials))
}

func TestManager_FailureKeepsUnexpiredToken(t *testing.T) {
	f := newFakeFetcher(40)
	m, clk := newTestManager(t, f)

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	f.setErr(errors.New("connection reset"))
	clk.Advance(20 * time.Second)

	_, err = m.Token(context.Background())
	assert.True(t, core.IsAuthenticationError(err))
	assert.Same(t, first, m.Cached(), "token still valid on the server must be kept")

	clk.Advance(30 * time.Second)
	_, err = m.Token(context.Background())
	assert.True(t, core.IsAuthenticationError(err))
	assert.Nil(t, m.Cached(), "hard-expired token must be dropped")

	f.setErr(nil)
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GrantClientCredentials, f.LastRequest().Grant)
	assert.Equal(t, "access-4", tok.AccessToken)
}

func TestManager_RejectedRefreshTokenFallsBackToClientCredentials(t *testing.T) {
	f := newFakeFetcher(40)
	m, clk := newTestManager(t, f)

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	f.setErr(core.NewAPIError(int(core.ErrCodeInvalidCredentials), "invalid_credentials"))
	clk.Advance(20 * time.Second)

	_, err = m.Token(context.Background())
	assert.True(t, core.IsAuthenticationError(err))
	assert.Equal(t, GrantRefreshToken, f.LastRequest().Grant)

	kept := m.Cached()
	require.NotNil(t, kept)
	assert.Equal(t, first.AccessToken, kept.AccessToken, "unexpired access token is kept")
	assert.Empty(t, kept.RefreshToken)

	f.setErr(nil)
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GrantClientCredentials, f.LastRequest().Grant)
	assert.Equal(t, "access-3", tok.AccessToken)
}

func TestManager_ShortLivedTokenUsesHalfLife(t *testing.T) {
	f := newFakeFetcher(20)
	m, clk := newTestManager(t, f)

	first, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, first.Lifetime())

	again, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again, "token shorter than the margin must still be reused")
	assert.Equal(t, 1, f.Calls())

	clk.Advance(9 * time.Second)
	again, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)

	clk.Advance(time.Second)
	second, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", second.AccessToken)
	assert.Equal(t, 2, f.Calls())
}

func TestManager_InvalidResponse(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
		return &TokenResponse{AccessToken: "x"}, nil
	})
	m, _ := newTestManager(t, f)

	_, err := m.Token(context.Background())
	assert.True(t, core.IsAuthenticationError(err))
	assert.Nil(t, m.Cached())
}

func TestManager_CancelledCallerDoesNotAbortRefresh(t *testing.T) {
	f := newFakeFetcher(900)
	f.gate = make(chan struct{})
	f.started = make(chan struct{})
	m, _ := newTestManager(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Token(ctx)
		done <- err
	}()

	<-f.started
	cancel()

	err := <-done
	assert.True(t, core.IsNetworkError(err))
	assert.ErrorIs(t, err, context.Canceled)

	close(f.gate)
	require.Eventually(t, func() bool { return m.Cached() != nil }, time.Second, time.Millisecond)

	f.mu.Lock()
	assert.NoError(t, f.ctxErr, "refresh must not observe the caller's cancellation")
	f.mu.Unlock()

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, 1, f.Calls())
}

func TestManager_Invalidate(t *testing.T) {
	f := newFakeFetcher(900)
	m, _ := newTestManager(t, f)

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	assert.Nil(t, m.Cached())

	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, GrantClientCredentials, f.LastRequest().Grant)
}

func TestTokenRequest_Params(t *testing.T) {
	cc := TokenRequest{Grant: GrantClientCredentials, ClientID: "id", ClientSecret: "secret"}
	assert.Equal(t, core.Params{
		"grant_type":    "client_credentials",
		"client_id":     "id",
		"client_secret": "secret",
	}, cc.Params())

	rt := TokenRequest{Grant: GrantRefreshToken, RefreshToken: "r"}
	assert.Equal(t, core.Params{
		"grant_type":    "refresh_token",
		"refresh_token": "r",
	}, rt.Params())
}

func TestToken_String(t *testing.T) {
	tok := &Token{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: clock.Epoch}

	s := tok.String()
	assert.NotContains(t, s, "secret")
	assert.Equal(t, "Token(nil)", (*Token)(nil).String())
}
