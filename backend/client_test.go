package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-backoffice-session/backend"
	"github.com/jrsteele09/go-backoffice-session/internal/config"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/internal/mockbackend"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setupClient(t *testing.T, options ...mockbackend.Option) (*backend.Client, *mockbackend.Server) {
	t.Helper()
	mock, err := mockbackend.New(config.New(), options...)
	require.NoError(t, err)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL+"/", backend.WithHTTPClient(srv.Client()), backend.WithTimeout(2*time.Second))
	require.NoError(t, err)
	return client, mock
}

func bearer(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func TestNewClient_RejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "://nope"} {
		_, err := backend.NewClient(raw)
		require.Error(t, err, raw)
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest), raw)
	}
}

func TestClient_Login(t *testing.T) {
	client, _ := setupClient(t)

	resp, err := client.Login(context.Background(), backend.Credentials{Identifier: "dispatch", Secret: "password"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "u1", resp.User.ID)
	require.Equal(t, mockbackend.ModulesFor(users.RoleDispatcher), resp.Modules)

	pair := resp.Pair()
	require.Equal(t, resp.AccessToken, pair.AccessToken)
	require.Equal(t, resp.User, pair.User)
}

func TestClient_LoginInvalidCredentials(t *testing.T) {
	client, _ := setupClient(t)

	_, err := client.Login(context.Background(), backend.Credentials{Identifier: "dispatch", Secret: "nope"})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))

	var httpErr *backend.HTTPError
	require.True(t, apperrors.As(err, &httpErr))
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	require.Equal(t, "Invalid identifier or secret", httpErr.Message)
}

func TestClient_LoginServerError(t *testing.T) {
	client, _ := setupClient(t, mockbackend.WithLoginFailure(http.StatusInternalServerError))

	_, err := client.Login(context.Background(), backend.Credentials{Identifier: "dispatch", Secret: "password"})
	require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
	require.False(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestClient_LoginUnreachable(t *testing.T) {
	client, err := backend.NewClient("http://127.0.0.1:1", backend.WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.Login(context.Background(), backend.Credentials{Identifier: "dispatch", Secret: "password"})
	require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
}

func TestClient_Refresh(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()
	first, err := client.Login(ctx, backend.Credentials{Identifier: "finance", Secret: "password"})
	require.NoError(t, err)

	second, err := client.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = client.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.True(t, apperrors.Is(err, apperrors.ErrRefreshRejected))
}

func TestClient_FetchNavigation(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()
	resp, err := client.Login(ctx, backend.Credentials{Identifier: "support", Secret: "password"})
	require.NoError(t, err)

	routes, err := client.WithTokenSource(bearer(resp.AccessToken)).FetchNavigation(ctx)
	require.NoError(t, err)
	require.Equal(t, mockbackend.RoutesFor(users.RoleSupport), routes)
}

func TestClient_FetchNavigationWithoutTokenSource(t *testing.T) {
	client, mock := setupClient(t)

	_, err := client.FetchNavigation(context.Background())
	require.True(t, apperrors.Is(err, apperrors.ErrNavigationFetch))
	require.True(t, apperrors.Is(err, apperrors.ErrNotLoggedIn))
	require.Equal(t, 0, mock.Stats().Navigations)
}

func TestClient_FetchNavigationFailures(t *testing.T) {
	client, mock := setupClient(t, mockbackend.WithNavigationFailure(http.StatusServiceUnavailable))
	ctx := context.Background()
	resp, err := client.Login(ctx, backend.Credentials{Identifier: "dispatch", Secret: "password"})
	require.NoError(t, err)
	authed := client.WithTokenSource(bearer(resp.AccessToken))

	_, err = authed.FetchNavigation(ctx)
	require.True(t, apperrors.Is(err, apperrors.ErrNavigationFetch))

	mock.SetNavigationFailure(0)
	_, err = client.WithTokenSource(bearer("garbage")).FetchNavigation(ctx)
	require.True(t, apperrors.Is(err, apperrors.ErrNavigationFetch))

	mock.SetNavigationDelay(5 * time.Second)
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = authed.FetchNavigation(timeoutCtx)
	require.True(t, apperrors.Is(err, apperrors.ErrNavigationFetch))
	require.True(t, apperrors.Is(err, context.DeadlineExceeded))
}

func navigationServer(t *testing.T, body string) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL, backend.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client.WithTokenSource(bearer("A"))
}

func TestClient_FetchNavigationResponseShapes(t *testing.T) {
	expected := []navigation.Route{
		{ID: 1, Title: "Orders"},
		{ID: 2, ParentID: 1, Title: "Open orders", ExternalRouteID: "orders.open"},
	}
	routes := `[{"id":1,"title":"Orders"},{"id":2,"parentId":1,"title":"Open orders","externalRouteId":"orders.open"}]`

	for name, body := range map[string]string{
		"bare list": "\n  " + routes,
		"envelope":  `{"routes":` + routes + `}`,
	} {
		got, err := navigationServer(t, body).FetchNavigation(context.Background())
		require.NoError(t, err, name)
		require.Equal(t, expected, got, name)
	}
}

func TestClient_FetchNavigationUndecodableBody(t *testing.T) {
	_, err := navigationServer(t, `"not a route list"`).FetchNavigation(context.Background())
	require.True(t, apperrors.Is(err, apperrors.ErrNavigationFetch))
	require.ErrorContains(t, err, "200 OK")
	require.ErrorContains(t, err, "decoding response")
}
