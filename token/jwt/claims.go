package jwt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/internal/utils"
)

// Claims is the identity carried by a back-office access token.
type Claims struct {
	SubjectID   string    `json:"sub"`            // Operator id
	Role        string    `json:"role,omitempty"` // Operator role
	DisplayName string    `json:"name,omitempty"` // Name shown in the UI
	ExpiresAt   time.Time `json:"-"`              // Zero when the token has no exp claim
	IssuedAt    time.Time `json:"-"`              // Zero when the token has no iat claim
}

// Expired reports whether the token had expired at now. Tokens without an
// expiry never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Decode extracts claims from an access token without verifying its
// signature. The client cannot verify tokens; the backend does on every
// call. Expired tokens still decode. Errors wrap ErrTokenDecode.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.Wrapf(apperrors.ErrTokenDecode, "empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenDecode, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrTokenDecode, "error extracting claims")
	}

	sub := stringClaim(claims["sub"])
	if sub == "" {
		return nil, apperrors.Wrapf(apperrors.ErrTokenDecode, "missing sub claim")
	}

	role := stringClaim(claims["role"])
	if role == "" {
		if roles, ok := claims["roles"].([]any); ok {
			role = utils.FirstNonEmpty(utils.ToStringSlice(roles)...)
		}
	}

	return &Claims{
		SubjectID:   sub,
		Role:        role,
		DisplayName: utils.FirstNonEmpty(stringClaim(claims["name"]), stringClaim(claims["display_name"])),
		ExpiresAt:   timeClaim(claims["exp"]),
		IssuedAt:    timeClaim(claims["iat"]),
	}, nil
}

// stringClaim accepts string and numeric claim values; numeric user ids are
// common in the backend payloads.
func stringClaim(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		return ""
	}
}

func timeClaim(v any) time.Time {
	switch val := v.(type) {
	case float64:
		return time.Unix(int64(val), 0).UTC()
	case int64:
		return time.Unix(val, 0).UTC()
	default:
		return time.Time{}
	}
}
