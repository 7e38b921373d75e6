package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
	GoogleConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetFakeBackendPort() string
}

type mainConfig struct {
	EnvVars
	Session
	Store
	Google
}

// New returns a Config backed by environment variables and built-in defaults.
func New() Config {
	return mainConfig{}
}

// Load reads a TOML file and returns a Config where environment variables
// override file values, and file values override built-in defaults.
func Load(path string) (Config, error) {
	f := &File{}
	if _, err := toml.DecodeFile(path, f); err != nil {
		return nil, fmt.Errorf("[config Load] failed to decode %s: %w", path, err)
	}
	return mainConfig{
		EnvVars: EnvVars{file: f},
		Session: Session{file: f},
		Store:   Store{file: f},
		Google:  Google{file: f},
	}, nil
}

// File is the on-disk configuration layout.
type File struct {
	AppName  string          `toml:"app_name"`
	Env      string          `toml:"env"`
	LogLevel string          `toml:"log_level"`
	API      APIFile         `toml:"api"`
	Session  SessionFile     `toml:"session"`
	Store    StoreFile       `toml:"store"`
	Google   GoogleFile      `toml:"google"`
	Fake     FakeBackendFile `toml:"fake_backend"`
}

type APIFile struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type SessionFile struct {
	RefreshInterval  string `toml:"refresh_interval"`
	WarningWindow    string `toml:"warning_window"`
	SafetyMargin     string `toml:"safety_margin"`
	CountdownTick    string `toml:"countdown_tick"`
	RefreshPerMinute int    `toml:"refresh_per_minute"`
	RefreshBurst     int    `toml:"refresh_burst"`
}

type StoreFile struct {
	Kind   string `toml:"kind"`
	Path   string `toml:"path"`
	Secret string `toml:"secret"`
}

type GoogleFile struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackAddr string `toml:"callback_addr"`
}

type FakeBackendFile struct {
	Port string `toml:"port"`
}
