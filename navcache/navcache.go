package navcache

import (
	"context"
	"sync/atomic"
	"time"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAge is the staleness threshold used when none is configured.
const DefaultMaxAge = 24 * time.Hour

// Entry is one user's cached navigation tree.
type Entry struct {
	UserID         string            `json:"userId"`
	Role           string            `json:"role"`
	NavigationTree []navigation.Node `json:"navigationTree"`
	CachedAt       time.Time         `json:"cachedAt"`
}

// Backend is the persistent store behind the Cache. Implementations return
// errors; the Cache decides how to degrade.
type Backend interface {
	// Ping checks the store can be opened and used
	Ping(ctx context.Context) error

	// Put upserts the entry keyed by entry.UserID
	Put(ctx context.Context, entry Entry) error

	// Get returns the entry or an error wrapping ErrCacheNotFound
	Get(ctx context.Context, userID string) (*Entry, error)

	// Delete removes one entry; missing entries are not an error
	Delete(ctx context.Context, userID string) error

	// DeleteOlderThan removes entries cached strictly before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteAll removes every entry
	DeleteAll(ctx context.Context) error

	// Close releases the store
	Close() error
}

// Cache is the per-user navigation cache. It is an optimization only: every
// backend failure is logged and turned into a no-op or a miss, and an
// unavailable backend behaves like an empty cache.
type Cache struct {
	backend   Backend
	maxAge    time.Duration
	nowFunc   func() time.Time
	available atomic.Bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxAge sets the staleness threshold.
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Cache) {
		if maxAge > 0 {
			c.maxAge = maxAge
		}
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

// Open probes backend and, when it is usable, evicts stale entries before
// returning, so no read can see an entry left over from a long-gone session.
// A nil backend gives a permanently unavailable cache.
func Open(ctx context.Context, backend Backend, options ...Option) *Cache {
	c := &Cache{
		backend: backend,
		maxAge:  DefaultMaxAge,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.IsAvailable(ctx) {
		c.CleanStale(ctx, c.maxAge)
	}
	return c
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return Open(context.Background(), nil)
}

// MaxAge returns the staleness threshold.
func (c *Cache) MaxAge() time.Duration {
	return c.maxAge
}

// IsAvailable probes the backend and records the result.
func (c *Cache) IsAvailable(ctx context.Context) bool {
	if c.backend == nil {
		c.available.Store(false)
		return false
	}
	if err := c.backend.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("navigation cache unavailable")
		c.available.Store(false)
		return false
	}
	c.available.Store(true)
	return true
}

// CleanStale evicts every entry cached more than maxAge ago.
func (c *Cache) CleanStale(ctx context.Context, maxAge time.Duration) {
	if !c.usable() {
		return
	}
	cutoff := c.nowFunc().Add(-maxAge)
	removed, err := c.backend.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		c.warn(err, "", "clean stale")
		return
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Dur("max_age", maxAge).Msg("navigation cache: stale entries evicted")
	}
}

// SaveEntry upserts the tree for userID stamped with the current time. It
// reports whether the entry was stored.
func (c *Cache) SaveEntry(ctx context.Context, userID string, tree []navigation.Node, role string) bool {
	if !c.usable() {
		return false
	}
	if userID == "" {
		log.Warn().Msg("navigation cache: refusing entry without user id")
		return false
	}

	if tree == nil {
		tree = []navigation.Node{}
	}
	err := c.backend.Put(ctx, Entry{
		UserID:         userID,
		Role:           role,
		NavigationTree: navigation.Clone(tree),
		CachedAt:       c.nowFunc().UTC(),
	})
	if err != nil {
		c.warn(err, userID, "save")
		return false
	}
	return true
}

// GetEntry returns the entry for userID, or nil when absent, stale or the
// cache is unavailable.
func (c *Cache) GetEntry(ctx context.Context, userID string) *Entry {
	if !c.usable() || userID == "" {
		return nil
	}

	entry, err := c.backend.Get(ctx, userID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrCacheNotFound) {
			c.warn(err, userID, "get")
		}
		return nil
	}
	if c.stale(entry) {
		log.Debug().Str("user_id", userID).Time("cached_at", entry.CachedAt).Msg("navigation cache: ignoring stale entry")
		return nil
	}

	entry.NavigationTree = navigation.Clone(entry.NavigationTree)
	return entry
}

// DeleteEntry removes userID's entry.
func (c *Cache) DeleteEntry(ctx context.Context, userID string) {
	if !c.usable() || userID == "" {
		return
	}
	if err := c.backend.Delete(ctx, userID); err != nil {
		c.warn(err, userID, "delete")
	}
}

// Invalidate removes every entry.
func (c *Cache) Invalidate(ctx context.Context) {
	if !c.usable() {
		return
	}
	if err := c.backend.DeleteAll(ctx); err != nil {
		c.warn(err, "", "invalidate")
	}
}

// Close releases the backend.
func (c *Cache) Close() error {
	c.available.Store(false)
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) usable() bool {
	return c.backend != nil && c.available.Load()
}

func (c *Cache) stale(entry *Entry) bool {
	return c.nowFunc().Sub(entry.CachedAt) > c.maxAge
}

func (c *Cache) warn(err error, userID, op string) {
	event := log.Warn().Err(err).Str("op", op)
	if userID != "" {
		event = event.Str("user_id", userID)
	}
	event.Msg("navigation cache operation failed, continuing without cache")
}
