package mockbackend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// hmacSigner issues and verifies the HS256 access tokens of the mock backend.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (h *hmacSigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry against now.
func (h *hmacSigner) Verify(raw string, now func() time.Time) (jwt.MapClaims, error) {
	return h.parse(raw, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
}

// VerifySignature checks the signature only, so an expired token presented
// at /refresh can still identify its subject.
func (h *hmacSigner) VerifySignature(raw string) (jwt.MapClaims, error) {
	return h.parse(raw, jwt.WithoutClaimsValidation())
}

func (h *hmacSigner) parse(raw string, options ...jwt.ParserOption) (jwt.MapClaims, error) {
	options = append(options, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, h.verificationKey, options...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
