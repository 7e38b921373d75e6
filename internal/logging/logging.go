package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Settings is the subset of configuration the logger needs.
type Settings interface {
	GetEnv() string
	GetLogLevel() string
	GetAppName() string
}

// New builds a zerolog.Logger for the given settings and installs it as the
// global logger. DEV gets a human readable console writer, everything else JSON.
func New(s Settings) zerolog.Logger {
	return NewWithWriter(s, os.Stderr)
}

func NewWithWriter(s Settings, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(s.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if s.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("app", s.GetAppName()).
		Logger()

	log.Logger = logger
	return logger
}
