// Package authfake is an in-process stand-in for the session backend. It
// issues HMAC-signed session tokens and exposes controls tests use to force
// rejections and refresh failures.
package authfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSecret   = "authfake-secret"
	DefaultIssuer   = "authfake"
	DefaultTokenTTL = 20 * time.Minute

	contentTypeJSON = "application/json"
)

// CredentialVerifier maps an external credential to the user it identifies.
type CredentialVerifier func(credential string) (*users.User, error)

type Server struct {
	router   chi.Router
	issuer   *Issuer
	users    users.Repo
	revoked  *RevokedTokens
	verifier CredentialVerifier
	nowFunc  func() time.Time
	logger   zerolog.Logger

	secret   string
	tokenTTL time.Duration

	lock        sync.Mutex
	credentials map[string]string // credential to user id
	calls       map[string]int
	failRefresh bool
	rejectNext  int
}

type Option func(*Server)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithCredentialVerifier replaces the lookup of credentials registered with
// AddUser.
func WithCredentialVerifier(verifier CredentialVerifier) Option {
	return func(s *Server) {
		s.verifier = verifier
	}
}

func WithUserRepo(repo users.Repo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) *Server {
	s := &Server{
		users:       fakeuserrepo.NewFakeUserRepo(),
		revoked:     NewRevokedTokens(),
		nowFunc:     time.Now,
		logger:      log.Logger,
		secret:      DefaultSecret,
		tokenTTL:    DefaultTokenTTL,
		credentials: make(map[string]string),
		calls:       make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.verifier == nil {
		s.verifier = s.registeredCredential
	}
	s.issuer = NewIssuer(NewHMACSigner(s.secret), DefaultIssuer, s.tokenTTL, s.now)
	s.router = chi.NewRouter()
	s.Register(s.router)
	return s
}

func (s *Server) Register(mx chi.Router) {
	mx.Post(authapi.RouteAuthGoogle, s.counted(authapi.RouteAuthGoogle, s.LoginHandler()))
	mx.Post(authapi.RouteAuthLogin, s.counted(authapi.RouteAuthLogin, s.LoginHandler()))
	mx.Post(authapi.RouteAuthLogout, s.counted(authapi.RouteAuthLogout, s.LogoutHandler()))
	mx.Post(authapi.RouteAuthRefresh, s.counted(authapi.RouteAuthRefresh, s.RefreshHandler()))
	mx.Get(authapi.RouteAuthSession, s.counted(authapi.RouteAuthSession, s.SessionHandler()))
	mx.Get(authapi.RouteAuthUser, s.counted(authapi.RouteAuthUser, s.requireAuth(s.UserHandler())))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Issuer exposes token minting so tests can hand out tokens with a chosen
// lifetime.
func (s *Server) Issuer() *Issuer {
	return s.issuer
}

// AddUser registers user under credential and returns the stored user.
func (s *Server) AddUser(credential string, user users.User) (*users.User, error) {
	if err := s.users.Upsert(&user); err != nil {
		return nil, fmt.Errorf("[Server AddUser] %w", err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.credentials[credential] = user.ID
	return &user, nil
}

// IssueFor mints a token for a registered user that expires after ttl.
func (s *Server) IssueFor(userID string, ttl time.Duration) (string, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return "", fmt.Errorf("[Server IssueFor] %w", err)
	}
	return NewIssuer(NewHMACSigner(s.secret), DefaultIssuer, ttl, s.now).Issue(u)
}

// FailRefresh makes every refresh call answer 401 while enabled.
func (s *Server) FailRefresh(fail bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failRefresh = fail
}

// RejectNext makes the next n authenticated profile requests answer 401
// regardless of the token presented.
func (s *Server) RejectNext(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rejectNext = n
}

// Calls reports how many requests route has served.
func (s *Server) Calls(route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[route]
}

func (s *Server) now() time.Time {
	return s.nowFunc()
}

func (s *Server) registeredCredential(credential string) (*users.User, error) {
	s.lock.Lock()
	id, ok := s.credentials[credential]
	s.lock.Unlock()
	if !ok {
		return nil, errors.ErrNotFound
	}
	return s.users.GetByID(id)
}

// DecodedCredential accepts any JWT credential, such as a Google ID token,
// without checking its signature. The claims become the user.
func DecodedCredential(credential string) (*users.User, error) {
	claims, err := token.Decode(credential)
	if err != nil {
		return nil, err
	}
	u := claims.User()
	return &u, nil
}

func (s *Server) counted(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.calls[route]++
		s.lock.Unlock()
		next(w, r)
	}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		reject := s.rejectNext > 0
		if reject {
			s.rejectNext--
		}
		s.lock.Unlock()
		if reject {
			writeJSONError(w, "token rejected", http.StatusUnauthorized)
			return
		}

		if _, err := s.authenticate(bearerToken(r)); err != nil {
			writeJSONError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// authenticate verifies raw and checks it has not been revoked.
func (s *Server) authenticate(raw string) (*IssuedToken, error) {
	issued, err := s.issuer.Verify(raw)
	if err != nil {
		return nil, err
	}
	if s.revoked.IsRevoked(issued.ID) {
		return nil, fmt.Errorf("[Server authenticate] token %s has been revoked", issued.ID)
	}
	return issued, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, authapi.ErrorResponse{
		Error:   strings.ReplaceAll(strings.ToLower(http.StatusText(statusCode)), " ", "_"),
		Message: message,
	})
}
