package token

import (
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/storage"
	"github.com/jrsteele09/go-backoffice-session/token/jwt"
	"github.com/jrsteele09/go-backoffice-session/users"
	"github.com/rs/zerolog/log"
)

// Persisted key layout
const (
	AccessTokenKey  = "ACCESS_TOKEN"
	RefreshTokenKey = "REFRESH_TOKEN"
	UserProfileKey  = "USER_PROFILE"
	TokenExpiryKey  = "TOKEN_EXPIRY"
)

// Keys lists every key owned by the Store.
var Keys = []string{AccessTokenKey, RefreshTokenKey, UserProfileKey, TokenExpiryKey}

// Pair is the authentication material returned by login and refresh.
type Pair struct {
	AccessToken  string        `json:"accessToken"`  // Signed, time-bound claim blob
	RefreshToken string        `json:"refreshToken"` // Opaque renewal handle
	User         users.Profile `json:"user"`         // Profile as reported by the backend
}

// Store is the single source of truth for persisted authentication material.
// Reads never fail: missing or corrupt data reads as empty.
type Store struct {
	kv storage.KeyValue

	mu      sync.RWMutex
	current string // in-memory mirror of the access token

	observersLock sync.Mutex
	observers     map[int]func()
	nextObserver  int
}

// NewStore creates a Store over kv and loads the in-memory mirror from it.
func NewStore(kv storage.KeyValue) *Store {
	s := &Store{
		kv:        kv,
		observers: make(map[int]func()),
	}
	s.Load()
	return s
}

// Load re-reads the in-memory mirror from durable storage.
func (s *Store) Load() {
	s.mu.Lock()
	s.current = s.read(AccessTokenKey)
	s.mu.Unlock()
	s.notify()
}

// Save persists the pair and its derived profile in one write. Readers see
// either the full new set or the full previous set. Errors wrap
// ErrPersistence and leave both storage and the mirror unchanged.
func (s *Store) Save(pair Pair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return apperrors.Wrapf(apperrors.ErrPersistence, "[Save] access and refresh tokens are both required")
	}

	profile := pair.User
	expiry := ""
	if claims, err := jwt.Decode(pair.AccessToken); err == nil {
		profile = profile.Merge(users.Profile{
			ID:          claims.SubjectID,
			RoleName:    claims.Role,
			DisplayName: claims.DisplayName,
		})
		if !claims.ExpiresAt.IsZero() {
			expiry = claims.ExpiresAt.Format(time.RFC3339)
		}
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "[Save] marshaling profile: %v", err)
	}

	s.mu.Lock()
	err = s.kv.SetMany(map[string]string{
		AccessTokenKey:  pair.AccessToken,
		RefreshTokenKey: pair.RefreshToken,
		UserProfileKey:  string(profileJSON),
		TokenExpiryKey:  expiry,
	})
	if err == nil {
		s.current = pair.AccessToken
	}
	s.mu.Unlock()

	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "[Save] writing tokens: %v", err)
	}
	s.notify()
	return nil
}

// AccessToken returns the persisted access token, or "" if absent.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(AccessTokenKey)
}

// RefreshToken returns the persisted refresh token, or "" if absent.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(RefreshTokenKey)
}

// UserProfile returns the persisted profile, or nil if absent or corrupt.
func (s *Store) UserProfile() *users.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile()
}

// Expiry returns the persisted access token expiry, zero when unknown.
func (s *Store) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.read(TokenExpiryKey)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Warn().Err(err).Msg("token store: unreadable token expiry")
		return time.Time{}
	}
	return t
}

// Pair returns all persisted material read under one lock, or nil when no
// complete pair is stored.
func (s *Store) Pair() *Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, refresh := s.read(AccessTokenKey), s.read(RefreshTokenKey)
	if access == "" || refresh == "" {
		return nil
	}
	pair := &Pair{AccessToken: access, RefreshToken: refresh}
	if p := s.profile(); p != nil {
		pair.User = *p
	}
	return pair
}

// HasToken reports whether an access token is held in memory.
func (s *Store) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != ""
}

// DecodeClaims parses the current access token. Malformed or missing tokens
// are logged and reported as nil.
func (s *Store) DecodeClaims() *jwt.Claims {
	raw := s.AccessToken()
	if raw == "" {
		return nil
	}
	claims, err := jwt.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("token store: cannot decode access token claims")
		return nil
	}
	return claims
}

// Clear removes every persisted field. It is idempotent. The in-memory mirror
// is always cleared, even when storage reports an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	err := s.kv.Delete(Keys...)
	s.current = ""
	s.mu.Unlock()

	s.notify()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "[Clear] removing tokens: %v", err)
	}
	return nil
}

// Subscribe registers fn to run after every change to the stored tokens.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.observersLock.Lock()
	defer s.observersLock.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	return func() {
		s.observersLock.Lock()
		defer s.observersLock.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify() {
	s.observersLock.Lock()
	observers := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.observersLock.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// read must be called with s.mu held.
func (s *Store) read(key string) string {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("token store: read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// profile must be called with s.mu held.
func (s *Store) profile() *users.Profile {
	raw := s.read(UserProfileKey)
	if raw == "" {
		return nil
	}
	var p users.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Warn().Err(err).Msg("token store: corrupt user profile")
		return nil
	}
	return &p
}
