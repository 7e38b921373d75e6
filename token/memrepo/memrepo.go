package memrepo

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
)

var _ token.Repo = (*MemRepo)(nil)

// MemRepo keeps the token in process memory only.
type MemRepo struct {
	raw  string
	lock sync.RWMutex
}

func New() *MemRepo {
	return &MemRepo{}
}

func (r *MemRepo) Get() (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.raw == "" {
		return "", errors.ErrNotFound
	}
	return r.raw, nil
}

func (r *MemRepo) Set(raw string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.raw = raw
	return nil
}

func (r *MemRepo) Clear() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.raw = ""
	return nil
}
