// Package rediscache stores navigation cache entries in Redis, for operators
// sharing a workstation image where the cache should outlive the local disk.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "backoffice:navcache:"
	scanBatch        = 100
)

var _ navcache.Backend = (*Backend)(nil)

// Backend is a navcache.Backend over a go-redis client. Each entry is a JSON
// string under KeyPrefix+userID.
type Backend struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

type Option func(*Backend)

// WithKeyPrefix namespaces the keys, e.g. per environment.
func WithKeyPrefix(prefix string) Option {
	return func(b *Backend) {
		b.keyPrefix = prefix
	}
}

// WithTTL lets Redis expire entries on its own. Zero keeps them until
// DeleteOlderThan removes them.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.ttl = ttl
	}
}

func New(client redis.UniversalClient, options ...Option) *Backend {
	b := &Backend{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// NewClient builds a go-redis client. The connection is established lazily,
// so an unreachable server shows up as a failed Ping.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
	})
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorageUnavailable, "rediscache: ping: %v", err)
	}
	return nil
}

func (b *Backend) Put(ctx context.Context, entry navcache.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "rediscache: encoding entry for %s: %v", entry.UserID, err)
	}
	if err := b.client.Set(ctx, b.key(entry.UserID), payload, b.ttl).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "rediscache: set %s: %v", entry.UserID, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, userID string) (*navcache.Entry, error) {
	payload, err := b.client.Get(ctx, b.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCache, "rediscache: get %s: %v", userID, err)
	}
	return decode(payload)
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	if err := b.client.Del(ctx, b.key(userID)).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "rediscache: del %s: %v", userID, err)
	}
	return nil
}

// DeleteOlderThan scans the namespace and removes entries cached before
// cutoff. Undecodable entries are removed too.
func (b *Backend) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := b.scan(ctx, func(keys []string) error {
		values, err := b.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		var expired []string
		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				continue
			}
			entry, err := decode([]byte(raw))
			if err != nil || entry.CachedAt.Before(cutoff) {
				expired = append(expired, keys[i])
			}
		}
		if len(expired) == 0 {
			return nil
		}
		n, err := b.client.Del(ctx, expired...).Result()
		removed += int(n)
		return err
	})
	if err != nil {
		return removed, apperrors.Wrapf(apperrors.ErrCache, "rediscache: clean stale: %v", err)
	}
	return removed, nil
}

func (b *Backend) DeleteAll(ctx context.Context) error {
	err := b.scan(ctx, func(keys []string) error {
		return b.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "rediscache: delete all: %v", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) key(userID string) string {
	return b.keyPrefix + userID
}

func (b *Backend) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func decode(payload []byte) (*navcache.Entry, error) {
	var entry navcache.Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCache, "rediscache: decoding entry: %v", err)
	}
	return &entry, nil
}
