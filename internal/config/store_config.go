package config

import (
	"os"
	"path/filepath"
)

// Token store kinds
const (
	StoreKindMemory = "memory"
	StoreKindBolt   = "bolt"
	StoreKindFile   = "file"
)

type StoreConfig interface {
	GetStoreKind() string
	GetStorePath() string
	GetStoreSecret() string
}

type Store struct {
	file *File
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() string {
	return GetEnv("TOKEN_STORE", fileValue(s.file, func(f *File) string { return f.Store.Kind }, StoreKindFile))
}

// GetStorePath returns where the persistent token lives. Defaults to a file
// under the user's config directory.
func (s Store) GetStorePath() string {
	return GetEnv("TOKEN_STORE_PATH", fileValue(s.file, func(f *File) string { return f.Store.Path }, defaultStorePath(s.GetStoreKind())))
}

// GetStoreSecret returns the secret used to encrypt the token at rest. Empty
// means the token is stored in plain text.
func (s Store) GetStoreSecret() string {
	return GetEnv("TOKEN_STORE_SECRET", fileValue(s.file, func(f *File) string { return f.Store.Secret }, ""))
}

func defaultStorePath(kind string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "token"
	if kind == StoreKindBolt {
		name = "session.db"
	}
	return filepath.Join(dir, "go-auth-session", name)
}
