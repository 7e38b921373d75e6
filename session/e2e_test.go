package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/scheduler/clockfake"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token/memrepo"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

// flakyTransport fails requests to a path with a transport error while
// enabled.
type flakyTransport struct {
	base http.RoundTripper
	lock sync.Mutex
	path string
}

func (f *flakyTransport) failPath(path string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.path = path
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.lock.Lock()
	path := f.path
	f.lock.Unlock()
	if path != "" && req.URL.Path == path {
		return nil, errors.New("connection reset by peer")
	}
	return f.base.RoundTrip(req)
}

type e2e struct {
	clock  *clockfake.Clock
	fake   *authfake.Server
	url    string
	flaky  *flakyTransport
	client *session.Client
	mgr    *session.Manager
}

func newE2E(t *testing.T) *e2e {
	t.Helper()
	t.Setenv("TOKEN_STORE", config.StoreKindMemory)

	h := &e2e{clock: clockfake.New(start)}
	h.fake = authfake.New(authfake.WithNowFunc(h.clock.Now), authfake.WithTokenTTL(20*time.Minute))
	_, err := h.fake.AddUser("google-cred", users.User{ID: "user-1", Name: "Ana Lima", Email: "ana@example.com"})
	require.NoError(t, err)

	srv := httptest.NewServer(h.fake)
	t.Cleanup(srv.Close)
	h.url = srv.URL
	t.Setenv("API_BASE_URL", srv.URL)

	h.flaky = &flakyTransport{base: srv.Client().Transport}
	h.client, err = session.Bootstrap(config.New(), memrepo.New(),
		session.WithTransport(h.flaky),
		session.WithManagerOptions(
			session.WithNowFunc(h.clock.Now),
			session.WithAfterFunc(h.clock.AfterFunc),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, h.client.Close()) })
	h.mgr = h.client.Manager
	h.mgr.Initialize(context.Background())
	return h
}

func (h *e2e) login(t *testing.T) session.LoginResult {
	t.Helper()
	result := h.mgr.Login(context.Background(), "google-cred")
	require.True(t, result.Success, result.Error)
	return result
}

func (h *e2e) stored(t *testing.T) string {
	t.Helper()
	raw, _ := h.client.Store.Get()
	return raw
}

func TestE2E_LoginArmsTimers(t *testing.T) {
	h := newE2E(t)
	result := h.login(t)

	state := h.mgr.State()
	require.True(t, state.IsAuthenticated)
	require.Equal(t, session.PhaseAuthenticated, state.Phase)

	claims, err := h.client.Store.Decode(h.stored(t))
	require.NoError(t, err)
	require.Equal(t, claims.Subject, result.User.ID)
	require.Equal(t, claims.Name, result.User.Name)
	require.Equal(t, claims.Email, result.User.Email)

	status := h.mgr.Scheduler().Status()
	require.True(t, status.RefreshArmed)
	require.True(t, status.WarningArmed)
	require.Equal(t, start.Add(15*time.Minute), status.RefreshAt)
	require.Equal(t, start.Add(15*time.Minute), status.WarningAt)
	require.Equal(t, start.Add(20*time.Minute), status.ExpiresAt)
}

func TestE2E_TimerRefreshKeepsSession(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	before := h.stored(t)

	var states []session.State
	h.mgr.OnChange(func(s session.State) { states = append(states, s) })
	var warnings []session.Warning
	h.mgr.OnWarning(func(w session.Warning) { warnings = append(warnings, w) })

	h.clock.Advance(15 * time.Minute)

	after := h.stored(t)
	require.NotEqual(t, before, after)
	require.Equal(t, 1, h.fake.Calls(authapi.RouteAuthRefresh))
	require.Empty(t, warnings)

	require.NotEmpty(t, states)
	for _, s := range states {
		require.True(t, s.IsAuthenticated)
	}

	status := h.mgr.Scheduler().Status()
	require.Equal(t, start.Add(30*time.Minute), status.RefreshAt)
	require.Equal(t, start.Add(35*time.Minute), status.ExpiresAt)
	require.Equal(t, 2, h.clock.Pending())
}

func TestE2E_TimerRefreshNetworkFailureSignsOut(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	h.flaky.failPath(authapi.RouteAuthRefresh)

	h.clock.Advance(15 * time.Minute)

	state := h.mgr.State()
	require.False(t, state.IsAuthenticated)
	require.Equal(t, session.PhaseUnauthenticated, state.Phase)
	require.Nil(t, state.User)
	require.NotEmpty(t, state.Error)
	require.Empty(t, h.stored(t))
	require.Zero(t, h.clock.Pending())
	require.Equal(t, 1, h.fake.Calls(authapi.RouteAuthLogout))
}

func TestE2E_StaleTokenRequestRetried(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	before := h.stored(t)
	h.fake.RejectNext(1)

	resp, err := h.client.HTTP.Get(h.url + authapi.RouteAuthUser)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "ana@example.com"))
	require.Equal(t, 2, h.fake.Calls(authapi.RouteAuthUser))
	require.Equal(t, 1, h.fake.Calls(authapi.RouteAuthRefresh))
	require.NotEqual(t, before, h.stored(t))
	require.True(t, h.mgr.State().IsAuthenticated)
}

func TestE2E_UnrecoverableRequestSignsOut(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	h.fake.FailRefresh(true)
	h.fake.RejectNext(1)

	_, err := h.client.API.GetUser(context.Background())
	require.Error(t, err)

	state := h.mgr.State()
	require.False(t, state.IsAuthenticated)
	require.Contains(t, state.Error, "expired")
	require.Empty(t, h.stored(t))
	require.Zero(t, h.clock.Pending())
}

func TestE2E_LogoutCancelsPendingTimers(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	require.Equal(t, 2, h.clock.Pending())

	h.mgr.Logout(context.Background())

	require.Zero(t, h.clock.Pending())
	require.Empty(t, h.stored(t))
	require.Equal(t, 1, h.fake.Calls(authapi.RouteAuthLogout))

	after := h.mgr.State()
	h.clock.Advance(time.Hour)
	require.Equal(t, after, h.mgr.State())
	require.False(t, after.IsAuthenticated)
	require.Empty(t, after.Error)
	require.Zero(t, h.fake.Calls(authapi.RouteAuthRefresh))
}

func TestE2E_InitializeRestoresSession(t *testing.T) {
	h := newE2E(t)
	h.login(t)
	raw := h.stored(t)

	repo := memrepo.New()
	require.NoError(t, repo.Set(raw))
	restored, err := session.Bootstrap(config.New(), repo,
		session.WithTransport(h.flaky),
		session.WithManagerOptions(
			session.WithNowFunc(h.clock.Now),
			session.WithAfterFunc(h.clock.AfterFunc),
		),
	)
	require.NoError(t, err)
	defer restored.Close()

	restored.Manager.Initialize(context.Background())
	state := restored.Manager.State()
	require.True(t, state.IsAuthenticated)
	require.Equal(t, "user-1", state.User.ID)
	require.Equal(t, 1, h.fake.Calls(authapi.RouteAuthSession))
}
