package config

import (
	"fmt"
	"os"
	"time"
)

const (
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	logLevelVar   = "LOG_LEVEL"
	apiBaseURLVar = "API_BASE_URL"
	apiTimeoutVar = "API_TIMEOUT"
	fakePortVar   = "FAKE_BACKEND_PORT"
)

type EnvVars struct {
	file *File
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, fileValue(e.file, func(f *File) string { return f.AppName }, "Session Client"))
}

func (e EnvVars) GetEnv() string {
	return GetEnv(envVar, fileValue(e.file, func(f *File) string { return f.Env }, "DEV"))
}

func (e EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, fileValue(e.file, func(f *File) string { return f.LogLevel }, "info"))
}

// GetAPIBaseURL returns the base URL of the authentication backend (e.g., "https://api.example.com")
func (e EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, fileValue(e.file, func(f *File) string { return f.API.BaseURL }, "http://localhost:8081"))
}

func (e EnvVars) GetAPITimeout() time.Duration {
	return GetDuration(apiTimeoutVar, fileValue(e.file, func(f *File) string { return f.API.Timeout }, ""), 10*time.Second)
}

func (e EnvVars) GetFakeBackendPort() string {
	port := GetEnv(fakePortVar, fileValue(e.file, func(f *File) string { return f.Fake.Port }, "8081"))
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration reads a Go duration string from envVar, falling back to
// fallback (also a duration string) and finally to defaultValue.
func GetDuration(envVar, fallback string, defaultValue time.Duration) time.Duration {
	for _, raw := range []string{os.Getenv(envVar), fallback} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// fileValue returns the value selected from the config file, or defaultValue
// when there is no file or the selected value is empty.
func fileValue(f *File, get func(*File) string, defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v := get(f); v != "" {
		return v
	}
	return defaultValue
}
