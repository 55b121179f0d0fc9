package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jrsteele09/go-backoffice-session/backend"
	"github.com/jrsteele09/go-backoffice-session/internal/config"
	"github.com/jrsteele09/go-backoffice-session/live"
	"github.com/jrsteele09/go-backoffice-session/live/amqplive"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navcache/rediscache"
	"github.com/jrsteele09/go-backoffice-session/navcache/sqlitecache"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/sessions"
	"github.com/jrsteele09/go-backoffice-session/storage/filestore"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/token/refresh"
	"github.com/rs/zerolog/log"
)

// session is the explicit session context of one CLI invocation.
type session struct {
	appName      string
	tokens       *token.Store
	cache        *navcache.Cache
	live         live.Notifier
	orchestrator *sessions.Orchestrator
	view         *sessions.View
}

func openSession(ctx context.Context, cfg config.Config, opts options) (*session, error) {
	store, err := filestore.Open(storagePath(cfg, opts))
	if err != nil {
		return nil, err
	}
	tokens := token.NewStore(store)

	client, err := backend.NewClient(opts.backendURL, backend.WithTimeout(cfg.GetRequestTimeout()))
	if err != nil {
		return nil, err
	}
	source := refresh.NewSource(tokens, client)

	var notifier live.Notifier = live.Nop{}
	if url := cfg.GetAMQPURL(); url != "" {
		notifier = amqplive.New(url)
	}

	s := &session{
		appName: cfg.GetAppName(),
		tokens:  tokens,
		cache:   openCache(ctx, cfg, opts),
		live:    notifier,
	}
	s.orchestrator, err = sessions.NewOrchestrator(sessions.Deps{
		Auth:       client,
		Navigation: client.WithTokenSource(source),
		Refresher:  source,
		Tokens:     tokens,
		Storage:    store,
		Cache:      s.cache,
		Live:       notifier,
	})
	if err != nil {
		_ = s.cache.Close()
		return nil, err
	}
	s.view = sessions.NewView(s.orchestrator)
	return s, nil
}

// storagePath honours STORAGE_FILE unless --data moved the data folder.
func storagePath(cfg config.Config, opts options) string {
	if opts.dataFolder != cfg.GetDataFolder() {
		return filepath.Join(opts.dataFolder, "storage.json")
	}
	return cfg.GetStorageFile()
}

func openCache(ctx context.Context, cfg config.Config, opts options) *navcache.Cache {
	cacheOptions := []navcache.Option{navcache.WithMaxAge(cfg.GetNavigationCacheMaxAge())}

	switch config.CacheBackend(opts.cache) {
	case config.CacheBackendNone:
		return navcache.Disabled()
	case config.CacheBackendRedis:
		client := rediscache.NewClient(cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB())
		return navcache.Open(ctx, rediscache.New(client), cacheOptions...)
	default:
		path := cfg.GetNavigationCachePath()
		if opts.dataFolder != cfg.GetDataFolder() {
			path = filepath.Join(opts.dataFolder, "navigation.db")
		}
		db, err := sqlitecache.Open(path)
		if err != nil {
			log.Warn().Err(err).Msg("navigation cache disabled")
			return navcache.Disabled()
		}
		return navcache.Open(ctx, db, cacheOptions...)
	}
}

func (s *session) Close() {
	s.view.Close()
	if err := s.live.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("live notifications disconnect failed")
	}
	if err := s.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("closing navigation cache failed")
	}
}

func printTree(out io.Writer, tree []navigation.Node) {
	navigation.Walk(tree, func(n navigation.Node, depth int) bool {
		label := n.Title
		if n.ExternalRouteID != "" {
			label = fmt.Sprintf("%s  [%s]", n.Title, n.ExternalRouteID)
		}
		fmt.Fprintf(out, "%*s%s\n", depth*2, "", label)
		return true
	})
}
