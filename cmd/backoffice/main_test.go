package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-backoffice-session/internal/config"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/internal/mockbackend"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) (func(args ...string) (string, error), *mockbackend.Server) {
	t.Helper()
	t.Setenv("AMQP_URL", "")
	t.Setenv(secretEnvVar, "")

	mock, err := mockbackend.New(config.New())
	require.NoError(t, err)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	base := []string{"--backend", srv.URL, "--data", t.TempDir(), "--cache", "sqlite"}
	return func(args ...string) (string, error) {
		var out bytes.Buffer
		err := run(context.Background(), append(append([]string{}, base...), args...), &out)
		return out.String(), err
	}, mock
}

func TestCLI_SessionLifecycle(t *testing.T) {
	cli, mock := setupCLI(t)

	out, err := cli("whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in")

	out, err = cli("--id", "dispatch", "--secret", "password", "--banner=false", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as Jo Bloggs (dispatcher)")

	out, err = cli("whoami")
	require.NoError(t, err)
	require.Contains(t, out, "jo@example.com")
	require.Contains(t, out, "token expires")

	out, err = cli("menu")
	require.NoError(t, err)
	require.Contains(t, out, "Live board  [dispatch.board]")
	require.Equal(t, 1, mock.Stats().Navigations, "menu is served from the navigation cache")

	out, err = cli("refresh")
	require.NoError(t, err)
	require.Contains(t, out, "Tokens refreshed for u1")

	_, err = cli("logout")
	require.NoError(t, err)

	out, err = cli("whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in")

	_, err = cli("menu")
	require.True(t, apperrors.Is(err, apperrors.ErrNotLoggedIn))
}

func TestCLI_LoginWithSecretFromEnvironment(t *testing.T) {
	cli, _ := setupCLI(t)
	t.Setenv(secretEnvVar, "password")

	out, err := cli("--id", "finance", "--banner=false", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Sam Ledger")
}

func TestCLI_LoginFallsBackWhenNavigationFails(t *testing.T) {
	cli, mock := setupCLI(t)
	mock.SetNavigationFailure(503)

	out, err := cli("--id", "support", "--secret", "password", "--banner=false", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Navigation is limited (fallback)")
}

func TestCLI_Errors(t *testing.T) {
	cli, _ := setupCLI(t)

	_, err := cli("--id", "dispatch", "--secret", "wrong", "login")
	require.ErrorContains(t, err, "login refused")

	_, err = cli("login")
	require.ErrorContains(t, err, "--id")

	_, err = cli("dance")
	require.ErrorContains(t, err, "unknown command")

	_, err = cli()
	require.Error(t, err)

	_, err = cli("refresh")
	require.True(t, apperrors.Is(err, apperrors.ErrNotLoggedIn))
}

func TestCLI_StorageFileFromEnvironment(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	t.Setenv(secretEnvVar, "")
	dataFolder := t.TempDir()
	storageFile := filepath.Join(t.TempDir(), "tokens", "operator.json")
	t.Setenv("DATA_FOLDER", dataFolder)
	t.Setenv("STORAGE_FILE", storageFile)

	mock, err := mockbackend.New(config.New())
	require.NoError(t, err)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	args := []string{"--backend", srv.URL, "--cache", "none", "--id", "dispatch", "--secret", "password", "--banner=false", "login"}
	require.NoError(t, run(context.Background(), args, &out))

	_, err = os.Stat(storageFile)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataFolder, "storage.json"))
	require.True(t, os.IsNotExist(err))

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"--backend", srv.URL, "--cache", "none", "whoami"}, &out))
	require.Contains(t, out.String(), "jo@example.com")
}
