package backend

import (
	"bytes"
	"encoding/json"

	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/users"
)

// Credentials are submitted once per login attempt and never persisted.
type Credentials struct {
	Identifier string `json:"identifier"` // Operator login name or email
	Secret     string `json:"secret"`     // Password, never logged
}

// LoginResponse is the body returned by POST /login and POST /refresh.
type LoginResponse struct {
	// AccessToken is the signed JWT used as "Authorization: Bearer <token>".
	// Claims: sub (operator id), role, name, exp, iat, jti.
	AccessToken string `json:"accessToken"`

	// RefreshToken is an opaque handle exchanged at POST /refresh.
	// Rotates on every refresh.
	RefreshToken string `json:"refreshToken"`

	// User is the operator profile.
	User users.Profile `json:"user"`

	// Modules is the navigation subset granted at login time. It is smaller
	// than GET /navigation and used when that call fails. Empty on refresh.
	Modules []navigation.Route `json:"modules,omitempty"`
}

// Pair returns the token material of the response.
func (r LoginResponse) Pair() token.Pair {
	return token.Pair{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	ExpiredToken string `json:"expiredToken"` // Last access token, may be expired
	RefreshToken string `json:"refreshToken"` // Current refresh handle
}

// NavigationResponse is the body of GET /navigation: a flat route list with
// parent links. The list may arrive bare or wrapped in {"routes": [...]}.
type NavigationResponse struct {
	Routes []navigation.Route `json:"routes"`
}

func (r *NavigationResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Routes)
	}
	type envelope NavigationResponse
	return json.Unmarshal(trimmed, (*envelope)(r))
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
