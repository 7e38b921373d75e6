package guard_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/guard"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	raw     string
	cleared int
	lock    sync.Mutex
}

func (f *fakeTokens) Get() (string, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.raw, f.raw != ""
}

func (f *fakeTokens) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.raw = ""
	f.cleared++
	return nil
}

func (f *fakeTokens) set(raw string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.raw = raw
}

type recordedRequest struct {
	auth      string
	requestID string
	body      string
}

// backend accepts only the bearer token in valid, answering 401 otherwise.
type backend struct {
	valid    string
	requests []recordedRequest
	lock     sync.Mutex
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.lock.Lock()
	b.requests = append(b.requests, recordedRequest{
		auth:      r.Header.Get("Authorization"),
		requestID: r.Header.Get(guard.RequestIDHeader),
		body:      string(body),
	})
	valid := b.valid
	b.lock.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	_, _ = w.Write([]byte("ok:" + string(body)))
}

func newGuardedClient(t *testing.T, b *backend, tokens *fakeTokens, refresher guard.Refresher, options ...guard.Option) (*http.Client, string) {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	transport := guard.New(tokens, refresher, append([]guard.Option{guard.WithBase(srv.Client().Transport)}, options...)...)
	return transport.Client(), srv.URL
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestTransport_AttachesBearerToken(t *testing.T) {
	b := &backend{valid: "tok-1"}
	client, url := newGuardedClient(t, b, &fakeTokens{raw: "tok-1"}, nil)

	resp, err := client.Get(url + "/auth/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	require.Len(t, b.requests, 1)
	require.Equal(t, "Bearer tok-1", b.requests[0].auth)
	require.NotEmpty(t, b.requests[0].requestID)
}

func TestTransport_AnonymousRequestPassesThrough(t *testing.T) {
	b := &backend{valid: "tok-1"}
	refreshes := 0
	client, url := newGuardedClient(t, b, &fakeTokens{}, guard.RefresherFunc(func(context.Context) (string, error) {
		refreshes++
		return "", errors.New("no session")
	}))

	req, err := http.NewRequest(http.MethodGet, url+"/public", nil)
	require.NoError(t, err)
	req.Header.Set(guard.RequestIDHeader, "req-42")
	resp, err := client.Do(req)
	require.NoError(t, err)
	readBody(t, resp)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, b.requests[0].auth)
	require.Equal(t, "req-42", b.requests[0].requestID)
	require.Zero(t, refreshes)
}

func TestTransport_RefreshesAndRetriesOnce(t *testing.T) {
	b := &backend{valid: "tok-2"}
	tokens := &fakeTokens{raw: "tok-1"}
	refreshes := 0
	client, url := newGuardedClient(t, b, tokens, guard.RefresherFunc(func(context.Context) (string, error) {
		refreshes++
		tokens.set("tok-2")
		return "tok-2", nil
	}))

	resp, err := client.Post(url+"/things", "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok:payload", readBody(t, resp))

	require.Equal(t, 1, refreshes)
	require.Len(t, b.requests, 2)
	require.Equal(t, "Bearer tok-1", b.requests[0].auth)
	require.Equal(t, "Bearer tok-2", b.requests[1].auth)
	require.Equal(t, "payload", b.requests[1].body)
	require.Equal(t, b.requests[0].requestID, b.requests[1].requestID)
}

func TestTransport_SecondUnauthorizedIsReturned(t *testing.T) {
	b := &backend{valid: "never-issued"}
	tokens := &fakeTokens{raw: "tok-1"}
	refreshes := 0
	client, url := newGuardedClient(t, b, tokens, guard.RefresherFunc(func(context.Context) (string, error) {
		refreshes++
		tokens.set("tok-2")
		return "tok-2", nil
	}))

	resp, err := client.Get(url + "/auth/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, `{"error":"unauthorized"}`, readBody(t, resp))

	require.Equal(t, 1, refreshes)
	require.Len(t, b.requests, 2)
	require.Zero(t, tokens.cleared)
}

func TestTransport_RefreshFailureClearsAndBroadcasts(t *testing.T) {
	b := &backend{valid: "tok-2"}
	tokens := &fakeTokens{raw: "tok-1"}
	bus := events.NewBus[events.AuthFailed]()
	var failures []events.AuthFailed
	bus.AddListener(func(ev events.AuthFailed) { failures = append(failures, ev) })

	refreshErr := errors.New("refresh rejected")
	client, url := newGuardedClient(t, b, tokens, guard.RefresherFunc(func(context.Context) (string, error) {
		return "", refreshErr
	}), guard.WithAuthFailed(bus))

	resp, err := client.Get(url + "/auth/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, `{"error":"unauthorized"}`, readBody(t, resp))

	require.Len(t, b.requests, 1)
	require.Equal(t, 1, tokens.cleared)
	_, ok := tokens.Get()
	require.False(t, ok)
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0].Reason, refreshErr)
	require.False(t, failures[0].At.IsZero())
}

func TestTransport_SkipRefresh(t *testing.T) {
	b := &backend{valid: "tok-2"}
	tokens := &fakeTokens{raw: "tok-1"}
	refreshes := 0
	client, url := newGuardedClient(t, b, tokens, guard.RefresherFunc(func(context.Context) (string, error) {
		refreshes++
		return "tok-2", nil
	}))

	req, err := http.NewRequestWithContext(guard.SkipRefresh(context.Background()), http.MethodPost, url+"/auth/refresh", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	readBody(t, resp)

	require.Zero(t, refreshes)
	require.Zero(t, tokens.cleared)
}
