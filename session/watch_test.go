package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/scheduler/clockfake"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/token/filerepo"
	"github.com/jrsteele09/go-auth-session/token/tokentest"
	"github.com/stretchr/testify/require"
)

func TestManager_FollowsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	repo, err := filerepo.New(path)
	require.NoError(t, err)

	clock := clockfake.New(start)
	mgr, err := session.New(token.NewStore(repo), &stubBackend{},
		session.WithNowFunc(clock.Now),
		session.WithAfterFunc(clock.AfterFunc),
		session.WithAuthFailed(events.NewBus[events.AuthFailed]()),
		session.WithWatch(true),
	)
	require.NoError(t, err)
	defer mgr.Close()

	other, err := filerepo.New(path)
	require.NoError(t, err)
	require.NoError(t, other.Set(tokentest.ExpiringIn(t, start, 30*time.Minute)))

	require.Eventually(t, func() bool { return mgr.State().IsAuthenticated }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "user-1", mgr.State().User.ID)

	require.NoError(t, other.Clear())
	require.Eventually(t, func() bool { return !mgr.State().IsAuthenticated }, 2*time.Second, 10*time.Millisecond)
	require.Contains(t, mgr.State().Error, "another window")
}

func TestManager_OwnWritesAreNotExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	repo, err := filerepo.New(path)
	require.NoError(t, err)

	clock := clockfake.New(start)
	backend := &stubBackend{}
	mgr, err := session.New(token.NewStore(repo), backend,
		session.WithNowFunc(clock.Now),
		session.WithAfterFunc(clock.AfterFunc),
		session.WithAuthFailed(events.NewBus[events.AuthFailed]()),
		session.WithWatch(true),
	)
	require.NoError(t, err)
	defer mgr.Close()

	var lock sync.Mutex
	var published []session.ErrorEvent
	defer mgr.OnError(func(ev session.ErrorEvent) {
		lock.Lock()
		defer lock.Unlock()
		published = append(published, ev)
	})()

	raw := tokentest.ExpiringIn(t, start, 30*time.Minute)
	backend.grant = &authapi.Grant{Token: raw}
	require.True(t, mgr.Login(context.Background(), "cred").Success)
	time.Sleep(200 * time.Millisecond)
	require.True(t, mgr.State().IsAuthenticated)
	require.Equal(t, 2, clock.Pending())

	mgr.Logout(context.Background())
	time.Sleep(200 * time.Millisecond)

	state := mgr.State()
	require.False(t, state.IsAuthenticated)
	require.Empty(t, state.Error)
	lock.Lock()
	defer lock.Unlock()
	require.Empty(t, published)
}

func TestOpenRepo(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		kind    string
		path    string
		wantErr bool
	}{
		{kind: config.StoreKindMemory},
		{kind: config.StoreKindFile, path: filepath.Join(dir, "token")},
		{kind: config.StoreKindBolt, path: filepath.Join(dir, "session.db")},
		{kind: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Setenv("TOKEN_STORE", tt.kind)
			t.Setenv("TOKEN_STORE_PATH", tt.path)
			t.Setenv("TOKEN_STORE_SECRET", "s3cret")

			repo, closeRepo, err := session.OpenRepo(config.New())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { require.NoError(t, closeRepo()) }()

			require.NoError(t, repo.Set("raw-token"))
			got, err := repo.Get()
			require.NoError(t, err)
			require.Equal(t, "raw-token", got)
		})
	}
}
