package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, 15*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 5*time.Minute, c.GetWarningWindow())
	require.Equal(t, 60*time.Second, c.GetSafetyMargin())
	require.Equal(t, time.Second, c.GetCountdownTick())
	require.Equal(t, 6, c.GetRefreshPerMinute())
	require.Equal(t, 3, c.GetRefreshBurst())
	require.Equal(t, config.StoreKindFile, c.GetStoreKind())
	require.Equal(t, ":8081", c.GetFakeBackendPort())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app_name = "Lingo"

[api]
base_url = "https://api.example.com"
timeout = "3s"

[session]
refresh_interval = "10m"
warning_window = "2m"
refresh_burst = 5

[store]
kind = "bolt"
path = "/tmp/session.db"
`)

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "Lingo", c.GetAppName())
	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, 3*time.Second, c.GetAPITimeout())
	require.Equal(t, 10*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 2*time.Minute, c.GetWarningWindow())
	require.Equal(t, 60*time.Second, c.GetSafetyMargin())
	require.Equal(t, 5, c.GetRefreshBurst())
	require.Equal(t, config.StoreKindBolt, c.GetStoreKind())
	require.Equal(t, "/tmp/session.db", c.GetStorePath())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[api]
base_url = "https://file.example.com"

[session]
refresh_interval = "10m"
`)
	t.Setenv("API_BASE_URL", "https://env.example.com")
	t.Setenv("SESSION_REFRESH_INTERVAL", "7m")

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://env.example.com", c.GetAPIBaseURL())
	require.Equal(t, 7*time.Minute, c.GetRefreshInterval())
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_WARNING_WINDOW", "soon")
	c := config.New()
	require.Equal(t, 5*time.Minute, c.GetWarningWindow())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
