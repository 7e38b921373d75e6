package authfake

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

// LoginHandler exchanges an external credential for a session token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			writeJSONError(w, "token is required", http.StatusBadRequest)
			return
		}

		user, err := s.verifier(req.Token)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Credential rejected")
			writeJSONError(w, "invalid credential", http.StatusUnauthorized)
			return
		}

		user.LastLogin = s.now()
		if err := s.users.Upsert(user); err != nil {
			s.logger.Err(err).Msg("Failed to store user")
			writeJSONError(w, "failed to store user", http.StatusInternalServerError)
			return
		}

		signed, err := s.issuer.Issue(user)
		if err != nil {
			s.logger.Err(err).Msg("Failed to issue token")
			writeJSONError(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, authapi.LoginResponse{
			Token: utils.Ptr(signed),
			User:  user,
		})
	}
}

// LogoutHandler revokes the presented token. Unknown or missing tokens are
// ignored.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if issued, err := s.issuer.Verify(bearerToken(r)); err == nil {
			s.revoked.Add(issued.ID, issued.ExpiresAt)
		}
		s.revoked.Cleanup(s.now())
		w.WriteHeader(http.StatusNoContent)
	}
}

// RefreshHandler swaps a valid token for a new one and revokes the old one.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		fail := s.failRefresh
		s.lock.Unlock()
		if fail {
			writeJSONError(w, "refresh disabled", http.StatusUnauthorized)
			return
		}

		var req authapi.TokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		raw := req.Token
		if raw == "" {
			raw = bearerToken(r)
		}

		issued, err := s.authenticate(raw)
		if err != nil {
			writeJSONError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		user, err := s.users.GetByID(issued.Subject)
		if err != nil {
			writeJSONError(w, "unknown user", http.StatusUnauthorized)
			return
		}

		signed, err := s.issuer.Issue(user)
		if err != nil {
			s.logger.Err(err).Msg("Failed to issue token")
			writeJSONError(w, "failed to issue token", http.StatusInternalServerError)
			return
		}
		s.revoked.Add(issued.ID, issued.ExpiresAt)

		writeJSON(w, http.StatusOK, authapi.RefreshResponse{Token: utils.Ptr(signed)})
	}
}

// SessionHandler reports whether the bearer token is still valid.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		_, err := s.authenticate(raw)
		writeJSON(w, http.StatusOK, authapi.SessionResponse{Valid: utils.Ptr(err == nil)})
	}
}

// UserHandler returns the profile of the token's subject.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issued, err := s.authenticate(bearerToken(r))
		if err != nil {
			writeJSONError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(issued.Subject)
		if err != nil {
			writeJSONError(w, "user not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, authapi.UserResponse{User: user})
	}
}
