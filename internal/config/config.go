package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	CacheConfig
	LiveConfig
	BackendConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetStorageFile() string
}

type SessionConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
}

type LiveConfig interface {
	GetAMQPURL() string
}

type mainConfig struct {
	EnvVars
	Session
	Cache
	Live
	Backend
}

func New() Config {
	return mainConfig{}
}
