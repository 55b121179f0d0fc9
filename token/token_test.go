package token_test

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/storage/storagefake"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/users"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = "u1"
	testRole    = "dispatcher"
	testRefresh = "R"
)

func accessToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":  sub,
		"role": role,
		"name": "Jo",
		"exp":  exp.Unix(),
	}).SignedString([]byte("1234"))
	require.NoError(t, err)
	return raw
}

func setupStore(t *testing.T) (*token.Store, *storagefake.FakeStorage) {
	t.Helper()
	kv := storagefake.NewFakeStorage()
	return token.NewStore(kv), kv
}

func TestStore_SaveAndRead(t *testing.T) {
	s, _ := setupStore(t)
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	access := accessToken(t, testUserID, testRole, exp)

	err := s.Save(token.Pair{
		AccessToken:  access,
		RefreshToken: testRefresh,
		User:         users.Profile{FullName: "Jo Bloggs", Email: "jo@example.com"},
	})
	require.NoError(t, err)

	require.Equal(t, access, s.AccessToken())
	require.Equal(t, testRefresh, s.RefreshToken())
	require.True(t, s.HasToken())
	require.True(t, exp.Equal(s.Expiry()))

	profile := s.UserProfile()
	require.NotNil(t, profile)
	require.Equal(t, testUserID, profile.ID)
	require.Equal(t, testRole, profile.RoleName)
	require.Equal(t, "Jo", profile.DisplayName)
	require.Equal(t, "Jo Bloggs", profile.FullName)

	pair := s.Pair()
	require.NotNil(t, pair)
	require.Equal(t, *profile, pair.User)

	claims := s.DecodeClaims()
	require.NotNil(t, claims)
	require.Equal(t, testUserID, claims.SubjectID)
}

func TestStore_SaveIsAllOrNothing(t *testing.T) {
	s, kv := setupStore(t)
	exp := time.Now().Add(time.Hour)
	first := token.Pair{AccessToken: accessToken(t, "u1", testRole, exp), RefreshToken: "R1"}
	require.NoError(t, s.Save(first))

	kv.FailWrites(errors.New("disk full"))
	err := s.Save(token.Pair{AccessToken: accessToken(t, "u2", "admin", exp), RefreshToken: "R2"})
	require.ErrorIs(t, err, apperrors.ErrPersistence)

	require.Equal(t, first.AccessToken, s.AccessToken())
	require.Equal(t, "R1", s.RefreshToken())
	require.Equal(t, "u1", s.UserProfile().ID)
}

func TestStore_SaveRejectsPartialPair(t *testing.T) {
	s, kv := setupStore(t)

	err := s.Save(token.Pair{AccessToken: "A"})
	require.ErrorIs(t, err, apperrors.ErrPersistence)
	require.Equal(t, 0, kv.Len())
	require.False(t, s.HasToken())
}

func TestStore_OpaqueTokenStillSaves(t *testing.T) {
	s, _ := setupStore(t)

	require.NoError(t, s.Save(token.Pair{AccessToken: "A", RefreshToken: "R", User: users.Profile{ID: "u1"}}))
	require.Equal(t, "A", s.AccessToken())
	require.Nil(t, s.DecodeClaims())
	require.True(t, s.Expiry().IsZero())
	require.Equal(t, "u1", s.UserProfile().ID)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	s, kv := setupStore(t)
	require.NoError(t, s.Save(token.Pair{AccessToken: "A", RefreshToken: "R"}))

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	require.Equal(t, "", s.AccessToken())
	require.Equal(t, "", s.RefreshToken())
	require.Nil(t, s.UserProfile())
	require.Nil(t, s.Pair())
	require.False(t, s.HasToken())
	require.Equal(t, 0, kv.Len())
}

func TestStore_ReadsNeverFail(t *testing.T) {
	s, kv := setupStore(t)

	kv.Put(token.UserProfileKey, "{corrupt")
	kv.Put(token.TokenExpiryKey, "yesterday")
	require.Nil(t, s.UserProfile())
	require.True(t, s.Expiry().IsZero())

	kv.FailReads(errors.New("io error"))
	require.Equal(t, "", s.AccessToken())
	require.Nil(t, s.DecodeClaims())
}

func TestStore_LoadsMirrorFromStorage(t *testing.T) {
	kv := storagefake.NewFakeStorage()
	kv.Put(token.AccessTokenKey, "A")

	s := token.NewStore(kv)
	require.True(t, s.HasToken())
}

func TestStore_Subscribe(t *testing.T) {
	s, _ := setupStore(t)

	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })

	require.NoError(t, s.Save(token.Pair{AccessToken: "A", RefreshToken: "R"}))
	require.NoError(t, s.Clear())
	require.Equal(t, 2, calls)

	unsubscribe()
	require.NoError(t, s.Clear())
	require.Equal(t, 2, calls)
}
