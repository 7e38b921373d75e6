// Package guard provides an http.RoundTripper that attaches the session token
// to outgoing requests and recovers from a single 401 by refreshing it.
package guard

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// TokenSource is the token storage the guard reads from and clears on failure.
type TokenSource interface {
	Get() (string, bool)
	Clear() error
}

// Refresher obtains a new session token. Implementations must share one
// in-flight refresh between concurrent callers.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

type skipRefreshKey struct{}

// SkipRefresh marks requests made with ctx as exempt from the refresh path.
// Used for the login and refresh calls themselves.
func SkipRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey{}, true)
}

func refreshSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipRefreshKey{}).(bool)
	return skip
}

type Transport struct {
	base       http.RoundTripper
	tokens     TokenSource
	refresher  Refresher
	authFailed *events.Bus[events.AuthFailed]
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// WithAuthFailed sets the bus unrecoverable 401s are reported on. Defaults to
// the process-wide bus.
func WithAuthFailed(bus *events.Bus[events.AuthFailed]) Option {
	return func(t *Transport) {
		t.authFailed = bus
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(t *Transport) {
		t.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(tokens TokenSource, refresher Refresher, options ...Option) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		tokens:     tokens,
		refresher:  refresher,
		authFailed: events.AuthFailedBus(),
		nowFunc:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Client returns an *http.Client that sends requests through the guard.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip sends req with the current token. A 401 on an authenticated
// request triggers at most one refresh and one retry per call; a second 401 is
// returned as is.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	raw, _ := t.tokens.Get()
	resp, err := t.send(req, body, raw, requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || raw == "" || refreshSkipped(req.Context()) || t.refresher == nil {
		return resp, nil
	}

	logger := t.logger.With().Str("request_id", requestID).Str("url", req.URL.Path).Logger()
	logger.Debug().Msg("Request rejected with 401, refreshing session token")

	refreshed, refreshErr := t.refresher.Refresh(req.Context())
	if refreshErr != nil || refreshed == "" {
		if refreshErr == nil {
			refreshErr = errors.ErrRefreshFailed
		}
		logger.Err(refreshErr).Msg("Session token refresh failed")
		if err := t.tokens.Clear(); err != nil {
			logger.Err(err).Msg("Failed to clear stored token")
		}
		if t.authFailed != nil {
			t.authFailed.Emit(events.AuthFailed{Reason: refreshErr, At: t.nowFunc()})
		}
		return resp, nil
	}

	drain(resp)

	return t.send(req, body, refreshed, requestID)
}

func (t *Transport) send(req *http.Request, body []byte, raw string, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	out.Header.Set(RequestIDHeader, requestID)
	if raw != "" {
		(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"}).SetAuthHeader(out)
	} else {
		out.Header.Del("Authorization")
	}
	return t.base.RoundTrip(out)
}

// bufferBody reads the request body once so the retry can replay it.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Transport RoundTrip] failed to read request body")
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
