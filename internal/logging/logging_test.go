package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/stretchr/testify/require"
)

type settings struct {
	env, level string
}

func (s settings) GetEnv() string      { return s.env }
func (s settings) GetLogLevel() string { return s.level }
func (s settings) GetAppName() string  { return "test-app" }

func TestNewWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(settings{env: "PROD", level: "debug"}, &buf)

	logger.Debug().Str("phase", "authenticated").Msg("state changed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "debug", entry["level"])
	require.Equal(t, "test-app", entry["app"])
	require.Equal(t, "authenticated", entry["phase"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(settings{env: "PROD", level: "warn"}, &buf)

	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	require.NotZero(t, buf.Len())
}

func TestNewWithWriter_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(settings{env: "PROD", level: "chatty"}, &buf)

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}
