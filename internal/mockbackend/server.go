// Package mockbackend is an in-process stand-in for the delivery platform
// authentication and navigation endpoints. It backs the client tests and the
// mockbackend command.
package mockbackend

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-backoffice-session/internal/config"
	"github.com/rs/zerolog/log"
)

// Config is the subset of the application configuration the server reads.
type Config interface {
	GetEnv() string
	config.BackendConfig
}

type refreshSession struct {
	userID    string
	expiresAt time.Time
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string

	signer        *hmacSigner
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time

	accounts        map[string]*account
	seed            []Account
	refreshSessions map[string]refreshSession
	faults          faults
	stats           Stats
	lock            sync.RWMutex
}

// Stats counts requests by endpoint.
type Stats struct {
	Logins      int
	Refreshes   int
	Navigations int
}

type Option func(*Server)

// WithAccounts replaces DefaultAccounts.
func WithAccounts(accounts ...Account) Option {
	return func(s *Server) {
		s.seed = accounts
	}
}

// WithNowFunc sets the clock used for issuing and checking tokens.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithAccessTokenExpiry overrides the configured access token lifetime.
func WithAccessTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.accessExpiry = d
	}
}

func New(config Config, options ...Option) (*Server, error) {
	s := &Server{
		env:             config.GetEnv(),
		mux:             http.NewServeMux(),
		signer:          newHMACSigner(config.GetSigningSecret()),
		accessExpiry:    config.GetAccessTokenExpiry(),
		refreshExpiry:   config.GetRefreshTokenExpiry(),
		nowFunc:         time.Now,
		seed:            DefaultAccounts,
		refreshSessions: make(map[string]refreshSession),
	}
	for _, opt := range options {
		opt(s)
	}

	accounts, err := newAccounts(s.seed)
	if err != nil {
		return nil, fmt.Errorf("[mockbackend New] failed to seed accounts: %w", err)
	}
	s.accounts = accounts

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) initRoutes() {
	mw := s.APIMiddleware()
	s.RegisterRouteFunc(PatternLogin, ChainMiddleware(s.LoginHandler(), mw...))
	s.RegisterRouteFunc(PatternRefresh, ChainMiddleware(s.RefreshHandler(), mw...))
	s.RegisterRouteFunc(PatternNavigation, ChainMiddleware(s.NavigationHandler(), mw...))
	s.RegisterRouteFunc(PatternHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Stats returns the request counters.
func (s *Server) Stats() Stats {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.stats
}

// RevokeRefreshTokens drops every issued refresh token, forcing the next
// refresh to be rejected.
func (s *Server) RevokeRefreshTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshSessions = make(map[string]refreshSession)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msg(fmt.Sprintf("[%-19s] %s", colourMethod(method), path))
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
