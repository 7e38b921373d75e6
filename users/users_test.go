package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestUser_Merge(t *testing.T) {
	lastLogin := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("fills empty fields", func(t *testing.T) {
		fromToken := users.User{ID: "user-1", Name: "Ana", Email: "ana@example.com"}
		merged := fromToken.Merge(&users.User{ID: "other", PictureURL: "https://img/ana.png", LastLogin: lastLogin})

		require.Equal(t, "user-1", merged.ID)
		require.Equal(t, "Ana", merged.Name)
		require.Equal(t, "https://img/ana.png", merged.PictureURL)
		require.Equal(t, lastLogin, merged.LastLogin)
	})

	t.Run("keeps populated fields", func(t *testing.T) {
		u := users.User{ID: "user-1", Name: "Ana", PictureURL: "https://img/new.png"}
		merged := u.Merge(&users.User{Name: "Old", PictureURL: "https://img/old.png"})
		require.Equal(t, "Ana", merged.Name)
		require.Equal(t, "https://img/new.png", merged.PictureURL)
	})

	t.Run("nil other", func(t *testing.T) {
		u := users.User{ID: "user-1"}
		require.Equal(t, u, u.Merge(nil))
	})
}

func TestUser_DisplayName(t *testing.T) {
	var nilUser *users.User
	require.Equal(t, "", nilUser.DisplayName())
	require.Equal(t, "ana@example.com", (&users.User{Email: "ana@example.com"}).DisplayName())
	require.Equal(t, "Ana", (&users.User{Name: "Ana", Email: "ana@example.com"}).DisplayName())
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	require.NoError(t, repo.Upsert(&users.User{ID: "user-2", Name: "Ben", Email: "Ben@Example.com"}))
	require.NoError(t, repo.Upsert(&users.User{ID: "user-1", Name: "Ana", Email: "ana@example.com"}))

	u, err := repo.GetByEmail("ben@example.com")
	require.NoError(t, err)
	require.Equal(t, "user-2", u.ID)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "user-1", list[0].ID)

	list, err = repo.List(1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "user-2", list[0].ID)

	require.NoError(t, repo.Delete("user-2"))
	_, err = repo.GetByID("user-2")
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.ErrorIs(t, repo.Delete("user-2"), errors.ErrNotFound)
}
