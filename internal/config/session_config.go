package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

// GetBaseURL returns the delivery platform API base URL (e.g., "https://api.example.com")
func (Session) GetBaseURL() string {
	return GetEnv("BACKEND_URL", "http://localhost:8080")
}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
}

type Live struct{}

var _ LiveConfig = Live{}

// GetAMQPURL returns the broker URL for live notifications. Empty disables them.
func (Live) GetAMQPURL() string {
	return GetEnv("AMQP_URL", "")
}
