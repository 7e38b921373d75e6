// Package google obtains a Google ID token for the session login call by
// running the OAuth2 authorization code flow with PKCE against a loopback
// redirect.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	Issuer        = "https://accounts.google.com"
	CallbackPath  = "/callback"
	flowStateTTL  = 10 * time.Minute
	shutdownGrace = 2 * time.Second
)

// Opener presents the authorization URL to the user, typically by opening a
// browser or printing it.
type Opener func(authURL string) error

// Flow acquires Google ID tokens.
type Flow struct {
	issuer       string
	clientID     string
	clientSecret string
	callbackAddr string
	states       StateRepo
	opener       Opener
	nowFunc      func() time.Time
	logger       zerolog.Logger

	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

type Option func(*Flow)

// WithIssuer points the flow at another OpenID provider.
func WithIssuer(issuer string) Option {
	return func(f *Flow) {
		f.issuer = issuer
	}
}

func WithOpener(opener Opener) Option {
	return func(f *Flow) {
		f.opener = opener
	}
}

func WithStateRepo(states StateRepo) Option {
	return func(f *Flow) {
		f.states = states
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// New discovers the provider configuration and returns a ready flow.
func New(ctx context.Context, cfg config.GoogleConfig, options ...Option) (*Flow, error) {
	f := newFlow(cfg, options...)
	if f.clientID == "" {
		return nil, fmt.Errorf("[google New] client ID is not configured")
	}

	provider, err := oidc.NewProvider(ctx, f.issuer)
	if err != nil {
		return nil, fmt.Errorf("[google New] failed to create OIDC provider: %w", err)
	}
	f.provider = provider
	f.verifier = provider.Verifier(&oidc.Config{ClientID: f.clientID})
	return f, nil
}

func newFlow(cfg config.GoogleConfig, options ...Option) *Flow {
	f := &Flow{
		issuer:       Issuer,
		clientID:     cfg.GetGoogleClientID(),
		clientSecret: cfg.GetGoogleClientSecret(),
		callbackAddr: cfg.GetGoogleCallbackAddr(),
		states:       NewInMemoryStateRepo(),
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	f.opener = f.printURL
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *Flow) printURL(authURL string) error {
	f.logger.Info().Str("url", authURL).Msg("Open this URL in a browser to sign in")
	return nil
}

func (f *Flow) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint:     f.provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
}

type callbackResult struct {
	idToken string
	err     error
}

// Acquire runs the flow and returns the verified raw ID token.
func (f *Flow) Acquire(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", f.callbackAddr)
	if err != nil {
		return "", fmt.Errorf("[Flow Acquire] failed to listen on %s: %w", f.callbackAddr, err)
	}
	redirectURL := "http://" + listener.Addr().String() + CallbackPath
	oauthCfg := f.oauthConfig(redirectURL)

	state, err := generateRandomString(32)
	if err != nil {
		listener.Close()
		return "", fmt.Errorf("[Flow Acquire] %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		listener.Close()
		return "", fmt.Errorf("[Flow Acquire] %w", err)
	}
	codeVerifier, err := generateRandomString(64)
	if err != nil {
		listener.Close()
		return "", fmt.Errorf("[Flow Acquire] %w", err)
	}
	if expirer, ok := f.states.(interface{ Expire(time.Time) int }); ok {
		expirer.Expire(f.nowFunc().Add(-flowStateTTL))
	}
	if err := f.states.Upsert(state, &FlowState{CodeVerifier: codeVerifier, Nonce: nonce, CreatedAt: f.nowFunc()}); err != nil {
		listener.Close()
		return "", fmt.Errorf("[Flow Acquire] %w", err)
	}
	defer func() { _ = f.states.Delete(state) }()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle("GET "+CallbackPath, f.callbackHandler(oauthCfg, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Err(err).Msg("Callback server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := oauthCfg.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	if err := f.opener(authURL); err != nil {
		return "", fmt.Errorf("[Flow Acquire] failed to open authorization URL: %w", err)
	}

	select {
	case res := <-results:
		return res.idToken, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("[Flow Acquire] %w", ctx.Err())
	}
}

// callbackHandler completes the flow: it checks state, exchanges the code with
// the PKCE verifier and verifies the returned ID token and nonce.
func (f *Flow) callbackHandler(oauthCfg *oauth2.Config, results chan<- callbackResult) http.HandlerFunc {
	report := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			err := fmt.Errorf("authorization failed: %s - %s", errorParam, errorDesc)
			http.Error(w, err.Error(), http.StatusBadRequest)
			report(callbackResult{err: err})
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		flow, err := f.states.Get(state)
		if err != nil || flow == nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		_ = f.states.Delete(state)

		if f.nowFunc().Sub(flow.CreatedAt) > flowStateTTL {
			err := errors.New("login flow expired")
			http.Error(w, err.Error(), http.StatusBadRequest)
			report(callbackResult{err: err})
			return
		}

		rawIDToken, err := f.exchange(r.Context(), oauthCfg, code, flow)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			report(callbackResult{err: err})
			return
		}

		_, _ = w.Write([]byte("Signed in. You can close this window."))
		report(callbackResult{idToken: rawIDToken})
	}
}

func (f *Flow) exchange(ctx context.Context, oauthCfg *oauth2.Config, code string, flow *FlowState) (string, error) {
	oauth2Token, err := oauthCfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", flow.CodeVerifier))
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", errors.New("no ID token in response")
	}

	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("ID token verification failed: %w", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to extract claims: %w", err)
	}
	if claims.Nonce != flow.Nonce {
		return "", errors.New("invalid nonce")
	}
	return rawIDToken, nil
}
