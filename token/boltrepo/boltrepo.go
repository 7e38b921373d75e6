package boltrepo

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gtank/cryptopasta"
	sessionerrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/hkdf"
)

var _ token.Repo = (*BoltRepo)(nil)

var (
	bktSession = []byte("session")
	tokenKey   = []byte("token")
)

const hkdfInfo = "go-auth-session token-at-rest v1"

// BoltRepo persists the token in a bbolt database. When a secret is supplied
// the token is sealed with AES-256-GCM before it is written.
type BoltRepo struct {
	db  *bolt.DB
	key *[32]byte
}

type Option func(*BoltRepo) error

// WithSecret enables encryption at rest. The AES key is derived from secret
// with HKDF-SHA256.
func WithSecret(secret string) Option {
	return func(r *BoltRepo) error {
		if secret == "" {
			return nil
		}
		key, err := deriveKey(secret)
		if err != nil {
			return err
		}
		r.key = key
		return nil
	}
}

// Open opens (creating if needed) the database at path.
func Open(path string, options ...Option) (*BoltRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt db %s", path)
	}

	r := &BoltRepo{db: db}
	for _, opt := range options {
		if err := opt(r); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bktSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create session bucket")
	}
	return r, nil
}

// Close closes the database
func (r *BoltRepo) Close() error {
	return r.db.Close()
}

func (r *BoltRepo) Get() (string, error) {
	var stored []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktSession)
		if b == nil {
			return nil
		}
		if v := b.Get(tokenKey); v != nil {
			stored = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to read token")
	}
	if len(stored) == 0 {
		return "", sessionerrors.ErrNotFound
	}
	return r.open(stored)
}

func (r *BoltRepo) Set(raw string) error {
	sealed, err := r.seal(raw)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bktSession)
		if err != nil {
			return err
		}
		return b.Put(tokenKey, sealed)
	}), "failed to write token")
}

func (r *BoltRepo) Clear() error {
	return errors.Wrap(r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktSession)
		if b == nil {
			return nil
		}
		return b.Delete(tokenKey)
	}), "failed to delete token")
}

func (r *BoltRepo) seal(raw string) ([]byte, error) {
	if r.key == nil {
		return []byte(raw), nil
	}
	encrypted, err := cryptopasta.Encrypt([]byte(raw), r.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt token")
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(encrypted)))
	base64.StdEncoding.Encode(out, encrypted)
	return out, nil
}

func (r *BoltRepo) open(stored []byte) (string, error) {
	if r.key == nil {
		return string(stored), nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(stored)))
	n, err := base64.StdEncoding.Decode(decoded, stored)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode stored token")
	}
	plain, err := cryptopasta.Decrypt(decoded[:n], r.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt stored token")
	}
	return string(plain), nil
}

func deriveKey(secret string) (*[32]byte, error) {
	key := &[32]byte{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, errors.Wrap(err, "failed to derive encryption key")
	}
	return key, nil
}
