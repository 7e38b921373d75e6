// Package authapi is the client for the backend's session endpoints.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/guard"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	loginPath  string
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient sets the client requests are sent with. Pass a client using
// a guard.Transport so requests carry the session token.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLoginPath overrides the login endpoint, e.g. RouteAuthLogin.
func WithLoginPath(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			hc := *c.httpClient
			hc.Timeout = timeout
			c.httpClient = &hc
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[NewClient] invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[NewClient] base URL %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		loginPath:  RouteAuthGoogle,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login exchanges an external credential for a session token.
func (c *Client) Login(ctx context.Context, credential string) (*Grant, error) {
	var resp LoginResponse
	err := c.do(guard.SkipRefresh(ctx), http.MethodPost, c.loginPath, TokenRequest{Token: credential}, &resp)
	if err != nil {
		return nil, fmt.Errorf("[Client Login] %w", err)
	}
	tok := utils.Value(resp.Token)
	if strings.TrimSpace(tok) == "" {
		return nil, fmt.Errorf("[Client Login] %w: no token in response", errors.ErrInvalidResponse)
	}
	return &Grant{Token: tok, User: resp.User}, nil
}

// Logout tells the backend the session is over. Callers treat failures as
// best-effort.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(guard.SkipRefresh(ctx), http.MethodPost, RouteAuthLogout, nil, nil); err != nil {
		return fmt.Errorf("[Client Logout] %w", err)
	}
	return nil
}

// Refresh exchanges current for a token with a later expiry.
func (c *Client) Refresh(ctx context.Context, current string) (string, error) {
	var resp RefreshResponse
	err := c.do(guard.SkipRefresh(ctx), http.MethodPost, RouteAuthRefresh, TokenRequest{Token: current}, &resp)
	if err != nil {
		return "", fmt.Errorf("[Client Refresh] %w", err)
	}
	tok := utils.Value(resp.Token)
	if strings.TrimSpace(tok) == "" {
		return "", fmt.Errorf("[Client Refresh] %w: no token in response", errors.ErrInvalidResponse)
	}
	return tok, nil
}

// VerifySession asks the backend whether the bearer token is still valid. A
// 401 is an answer, not a failure, and reports false.
func (c *Client) VerifySession(ctx context.Context) (bool, error) {
	var resp SessionResponse
	err := c.do(guard.SkipRefresh(ctx), http.MethodGet, RouteAuthSession, nil, &resp)
	if errors.Is(err, errors.ErrAuthRejected) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("[Client VerifySession] %w", err)
	}
	if resp.Valid == nil {
		return false, fmt.Errorf("[Client VerifySession] %w: missing valid flag", errors.ErrInvalidResponse)
	}
	return *resp.Valid, nil
}

// GetUser fetches the profile of the signed-in user.
func (c *Client) GetUser(ctx context.Context) (*users.User, error) {
	var resp UserResponse
	if err := c.do(ctx, http.MethodGet, RouteAuthUser, nil, &resp); err != nil {
		return nil, fmt.Errorf("[Client GetUser] %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("[Client GetUser] %w: no user in response", errors.ErrInvalidResponse)
	}
	return resp.User, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		return fmt.Errorf("%w: %w", errors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", errors.ErrAuthRejected, errorMessage(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
	}
	return nil
}

func errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
