package mockbackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-backoffice-session/backend"
	"github.com/jrsteele09/go-backoffice-session/users"
)

const contentTypeJSON = "application/json; charset=utf-8"

// LoginHandler exchanges credentials for a token pair, the profile and the
// reduced module list.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Logins++ })

		if status := s.currentFaults().loginStatus; status != 0 {
			writeJSONError(w, "login_unavailable", "login is failing on purpose", status)
			return
		}

		var credentials backend.Credentials
		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}
		if credentials.Identifier == "" || credentials.Secret == "" {
			writeJSONError(w, "invalid_request", "identifier and secret are required", http.StatusBadRequest)
			return
		}

		acc, ok := s.accounts[strings.ToLower(credentials.Identifier)]
		if !ok || !CheckPasswordHash(credentials.Secret, acc.passwordHash) {
			writeJSONError(w, "invalid_credentials", "Invalid identifier or secret", http.StatusUnauthorized)
			return
		}

		resp, err := s.issue(acc.profile)
		if err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Modules = ModulesFor(acc.profile.Role())
		writeJSON(w, resp)
	}
}

// RefreshHandler rotates a refresh token. The presented access token may be
// expired but must carry a valid signature and the same subject.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Refreshes++ })

		var req backend.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}

		claims, err := s.signer.VerifySignature(req.ExpiredToken)
		if err != nil {
			writeJSONError(w, "invalid_token", "access token is not recognised", http.StatusUnauthorized)
			return
		}
		subject, _ := claims.GetSubject()

		acc, err := s.consumeRefreshToken(req.RefreshToken, subject)
		if err != nil {
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusUnauthorized)
			return
		}

		resp, err := s.issue(acc.profile)
		if err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, resp)
	}
}

// NavigationHandler returns the full route list for the bearer's role.
func (s *Server) NavigationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Navigations++ })

		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, "invalid_token", "Missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := s.signer.Verify(parts[1], s.nowFunc)
		if err != nil {
			writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
			return
		}

		f := s.currentFaults()
		if f.navigationDelay > 0 {
			select {
			case <-time.After(f.navigationDelay):
			case <-r.Context().Done():
				return
			}
		}
		if f.navigationStatus != 0 {
			writeJSONError(w, "navigation_unavailable", "navigation is failing on purpose", f.navigationStatus)
			return
		}

		role, _ := claims["role"].(string)
		writeJSON(w, RoutesFor(users.RoleType(role)))
	}
}

func (s *Server) issue(profile users.Profile) (*backend.LoginResponse, error) {
	now := s.nowFunc()
	access, err := s.signer.Sign(jwt.MapClaims{
		"sub":  profile.ID,
		"role": profile.RoleName,
		"name": profile.DisplayName,
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessExpiry).Unix(),
		"jti":  uuid.New().String(),
	})
	if err != nil {
		return nil, err
	}

	refresh := uuid.New().String()
	s.lock.Lock()
	s.refreshSessions[refresh] = refreshSession{userID: profile.ID, expiresAt: now.Add(s.refreshExpiry)}
	s.lock.Unlock()

	return &backend.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         profile,
	}, nil
}

func (s *Server) consumeRefreshToken(refresh, subject string) (*account, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, ok := s.refreshSessions[refresh]
	if !ok {
		return nil, errors.New("refresh token is unknown or already used")
	}
	delete(s.refreshSessions, refresh)

	if s.nowFunc().After(session.expiresAt) {
		return nil, errors.New("refresh token expired")
	}
	if session.userID != subject {
		return nil, errors.New("refresh token does not belong to this subject")
	}
	for _, acc := range s.accounts {
		if acc.profile.ID == session.userID {
			return acc, nil
		}
	}
	return nil, errors.New("account no longer exists")
}

func (s *Server) count(fn func(*Stats)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	fn(&s.stats)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(backend.ErrorResponse{
		Error:   errorCode,
		Message: description,
	})
}
