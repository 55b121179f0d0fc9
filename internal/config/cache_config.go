package config

import (
	"path/filepath"
	"strings"
	"time"
)

type CacheBackend string

const (
	CacheBackendSQLite CacheBackend = "sqlite"
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendNone   CacheBackend = "none"
)

type CacheConfig interface {
	GetNavigationCacheBackend() CacheBackend
	GetNavigationCachePath() string
	GetNavigationCacheMaxAge() time.Duration
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Cache struct{}

var _ CacheConfig = Cache{}

func (Cache) GetNavigationCacheBackend() CacheBackend {
	switch backend := CacheBackend(strings.ToLower(GetEnv("NAV_CACHE_BACKEND", string(CacheBackendSQLite)))); backend {
	case CacheBackendSQLite, CacheBackendRedis, CacheBackendNone:
		return backend
	default:
		return CacheBackendSQLite
	}
}

func (Cache) GetNavigationCachePath() string {
	return GetEnv("NAV_CACHE_PATH", filepath.Join(EnvVars{}.GetDataFolder(), "navigation.db"))
}

func (Cache) GetNavigationCacheMaxAge() time.Duration {
	return GetEnvDuration("NAV_CACHE_MAX_AGE", 24*time.Hour)
}

func (Cache) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Cache) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Cache) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
