package config

import (
	"fmt"
	"time"
)

// BackendConfig configures the mock delivery platform backend.
type BackendConfig interface {
	GetPort() string
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetPort() string {
	port := GetEnv("PORT", "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Backend) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-secret")
}

func (Backend) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Backend) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
