package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/guard"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/scheduler"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/token/boltrepo"
	"github.com/jrsteele09/go-auth-session/token/filerepo"
	"github.com/jrsteele09/go-auth-session/token/memrepo"
	"github.com/rs/zerolog/log"
)

// Client is a fully wired session: the manager plus the guarded HTTP client
// application code should send authenticated requests with.
type Client struct {
	Manager *Manager
	API     *authapi.Client
	HTTP    *http.Client
	Store   *token.Store
}

// Close releases the manager.
func (c *Client) Close() error {
	return c.Manager.Close()
}

type bootstrapOptions struct {
	base    http.RoundTripper
	manager []Option
}

type BootstrapOption func(*bootstrapOptions)

// WithTransport sets the round tripper the guard sends requests on.
func WithTransport(base http.RoundTripper) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.base = base
	}
}

// WithManagerOptions passes options through to New.
func WithManagerOptions(options ...Option) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.manager = append(o.manager, options...)
	}
}

// Bootstrap wires the token store, guard, API client and manager for repo
// according to cfg.
func Bootstrap(cfg config.Config, repo token.Repo, options ...BootstrapOption) (*Client, error) {
	opts := &bootstrapOptions{base: http.DefaultTransport}
	for _, opt := range options {
		opt(opts)
	}

	store := token.NewStore(repo)

	// The guard needs the manager's refresh and the manager needs the guarded
	// client, so the guard resolves the manager lazily.
	var mgr *Manager
	transport := guard.New(store, guard.RefresherFunc(func(ctx context.Context) (string, error) {
		return mgr.Refresh(ctx)
	}), guard.WithBase(opts.base))
	httpClient := transport.Client()
	httpClient.Timeout = cfg.GetAPITimeout()

	api, err := authapi.NewClient(cfg.GetAPIBaseURL(), authapi.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("[Bootstrap] %w", err)
	}

	managerOptions := []Option{
		WithTimings(scheduler.Timings{
			RefreshInterval: cfg.GetRefreshInterval(),
			WarningWindow:   cfg.GetWarningWindow(),
			SafetyMargin:    cfg.GetSafetyMargin(),
			CountdownTick:   cfg.GetCountdownTick(),
		}),
		WithRefreshLimit(cfg.GetRefreshPerMinute(), cfg.GetRefreshBurst()),
		WithWatch(cfg.GetStoreKind() == config.StoreKindFile),
	}
	mgr, err = New(store, api, append(managerOptions, opts.manager...)...)
	if err != nil {
		return nil, fmt.Errorf("[Bootstrap] %w", err)
	}

	return &Client{
		Manager: mgr,
		API:     api,
		HTTP:    httpClient,
		Store:   store,
	}, nil
}

// OpenRepo opens the token storage cfg selects. The returned close func
// releases it.
func OpenRepo(cfg config.StoreConfig) (token.Repo, func() error, error) {
	noop := func() error { return nil }
	switch cfg.GetStoreKind() {
	case config.StoreKindMemory:
		return memrepo.New(), noop, nil
	case config.StoreKindBolt:
		var options []boltrepo.Option
		if secret := cfg.GetStoreSecret(); secret != "" {
			options = append(options, boltrepo.WithSecret(secret))
		}
		repo, err := boltrepo.Open(cfg.GetStorePath(), options...)
		if err != nil {
			return nil, nil, fmt.Errorf("[OpenRepo] %w", err)
		}
		return repo, repo.Close, nil
	case config.StoreKindFile:
		if cfg.GetStoreSecret() != "" {
			log.Warn().Msg("Token store secret is ignored by the file store")
		}
		repo, err := filerepo.New(cfg.GetStorePath())
		if err != nil {
			return nil, nil, fmt.Errorf("[OpenRepo] %w", err)
		}
		return repo, noop, nil
	default:
		return nil, nil, fmt.Errorf("[OpenRepo] unknown token store %q", cfg.GetStoreKind())
	}
}
