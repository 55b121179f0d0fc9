// Package sqlitecache stores navigation cache entries in a local SQLite file.
package sqlitecache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS navigation_cache (
	user_id   TEXT PRIMARY KEY,
	role      TEXT NOT NULL DEFAULT '',
	tree      TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS navigation_cache_cached_at ON navigation_cache (cached_at);
`

const defaultPoolSize = 2

var _ navcache.Backend = (*Backend)(nil)

// Backend is a navcache.Backend over a zombiezen SQLite pool.
type Backend struct {
	pool *sqlitex.Pool
	path string
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitecache: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorageUnavailable, "sqlitecache: creating directory for %s: %v", path, err)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    defaultPoolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorageUnavailable, "sqlitecache: opening %s: %v", path, err)
	}

	log.Debug().Str("path", path).Msg("navigation cache database opened")
	return &Backend{pool: pool, path: path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return sqlitex.ExecuteScript(conn, schema, nil)
}

// Path returns the database file location.
func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "SELECT 1", nil)
	})
}

func (b *Backend) Put(ctx context.Context, entry navcache.Entry) error {
	tree, err := json.Marshal(entry.NavigationTree)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "encoding tree for %s: %v", entry.UserID, err)
	}

	return b.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO navigation_cache (user_id, role, tree, cached_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET role = excluded.role, tree = excluded.tree, cached_at = excluded.cached_at`,
			&sqlitex.ExecOptions{
				Args: []any{entry.UserID, entry.Role, string(tree), entry.CachedAt.UnixMilli()},
			})
	})
}

func (b *Backend) Get(ctx context.Context, userID string) (*navcache.Entry, error) {
	var (
		found    bool
		role     string
		rawTree  string
		cachedAt int64
	)
	err := b.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT role, tree, cached_at FROM navigation_cache WHERE user_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					role = stmt.ColumnText(0)
					rawTree = stmt.ColumnText(1)
					cachedAt = stmt.ColumnInt64(2)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.ErrCacheNotFound
	}

	var tree []navigation.Node
	if err := json.Unmarshal([]byte(rawTree), &tree); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCache, "decoding tree for %s: %v", userID, err)
	}
	if tree == nil {
		tree = []navigation.Node{}
	}

	return &navcache.Entry{
		UserID:         userID,
		Role:           role,
		NavigationTree: tree,
		CachedAt:       time.UnixMilli(cachedAt).UTC(),
	}, nil
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	return b.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM navigation_cache WHERE user_id = ?", &sqlitex.ExecOptions{
			Args: []any{userID},
		})
	})
}

func (b *Backend) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := b.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM navigation_cache WHERE cached_at < ?", &sqlitex.ExecOptions{
			Args: []any{cutoff.UnixMilli()},
		})
		if err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	return removed, err
}

func (b *Backend) DeleteAll(ctx context.Context) error {
	return b.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "DELETE FROM navigation_cache", nil)
	})
}

func (b *Backend) Close() error {
	if err := b.pool.Close(); err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "sqlitecache: closing %s: %v", b.path, err)
	}
	return nil
}

func (b *Backend) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrStorageUnavailable, "sqlitecache: %s: %v", b.path, err)
	}
	defer b.pool.Put(conn)

	if err := fn(conn); err != nil {
		return apperrors.Wrapf(apperrors.ErrCache, "sqlitecache: %v", err)
	}
	return nil
}
