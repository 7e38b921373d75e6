package filerepo

import (
	"bytes"
	"os"
	"path/filepath"

	sessionerrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
)

var (
	_ token.Repo    = (*FileRepo)(nil)
	_ token.Watcher = (*FileRepo)(nil)
)

// FileRepo stores the raw token in a single file readable only by the owner.
type FileRepo struct {
	path string
}

func New(path string) (*FileRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	return &FileRepo{path: filepath.Clean(path)}, nil
}

// Path returns the location of the token file
func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Get() (string, error) {
	b, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return "", sessionerrors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read token file")
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", sessionerrors.ErrNotFound
	}
	return string(b), nil
}

// Set writes the token to a temp file and renames it over the old one so
// readers never observe a partial token.
func (r *FileRepo) Set(raw string) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".token-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp token file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to chmod temp token file")
	}
	if _, err := tmp.WriteString(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp token file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp token file")
	}
	return errors.Wrap(os.Rename(tmpName, r.path), "failed to replace token file")
}

func (r *FileRepo) Clear() error {
	err := os.Remove(r.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove token file")
	}
	return nil
}
