package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-backoffice-session/backend"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Refresher exchanges an access/refresh pair for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, expiredToken, refreshToken string) (*backend.LoginResponse, error)
}

// Source is an oauth2.TokenSource reading the Token Store. When the stored
// access token is about to expire it renews it through the Refresher and
// saves the new pair before handing it out.
type Source struct {
	store     *token.Store
	refresher Refresher
	leeway    time.Duration
	nowFunc   func() time.Time
	lock      sync.Mutex
}

var _ oauth2.TokenSource = (*Source)(nil)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLeeway renews tokens that expire within d.
func WithLeeway(d time.Duration) SourceOption {
	return func(s *Source) {
		s.leeway = d
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.nowFunc = now
	}
}

// NewSource creates a Source over store.
func NewSource(store *token.Store, refresher Refresher, options ...SourceOption) *Source {
	s := &Source{
		store:     store,
		refresher: refresher,
		leeway:    30 * time.Second,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Token implements oauth2.TokenSource.
func (s *Source) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext returns a valid bearer token, refreshing it first if needed.
func (s *Source) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	pair := s.store.Pair()
	if pair == nil {
		return nil, apperrors.ErrNotLoggedIn
	}

	expiry := s.store.Expiry()
	if !s.expiring(expiry) {
		return s.oauthToken(pair, expiry), nil
	}

	refreshed, err := s.refresh(ctx, pair)
	if err != nil {
		return nil, err
	}
	return s.oauthToken(refreshed, s.store.Expiry()), nil
}

// Refresh renews the stored pair unconditionally.
func (s *Source) Refresh(ctx context.Context) (*token.Pair, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	pair := s.store.Pair()
	if pair == nil {
		return nil, apperrors.ErrNotLoggedIn
	}
	return s.refresh(ctx, pair)
}

// refresh must be called with s.lock held. Stored tokens are left untouched
// when the exchange fails.
func (s *Source) refresh(ctx context.Context, current *token.Pair) (*token.Pair, error) {
	resp, err := s.refresher.Refresh(ctx, current.AccessToken, current.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		return nil, err
	}

	next := resp.Pair()
	next.User = next.User.Merge(current.User)
	if err := s.store.Save(next); err != nil {
		return nil, err
	}

	log.Debug().Msg("token refreshed")
	return &next, nil
}

// expiring reports whether a token with the given expiry needs renewal.
// Unknown expiry is trusted; the backend rejects it if it is stale.
func (s *Source) expiring(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return !s.nowFunc().Add(s.leeway).Before(expiry)
}

func (s *Source) oauthToken(pair *token.Pair, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
}
