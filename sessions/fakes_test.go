package sessions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-backoffice-session/backend"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navcache/cachefake"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/sessions"
	"github.com/jrsteele09/go-backoffice-session/storage/storagefake"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/users"
	"github.com/stretchr/testify/require"
)

var (
	fullRoutes = []navigation.Route{
		{ID: 1, Title: "Dashboard", ExternalRouteID: "dashboard"},
		{ID: 10, Title: "Orders", IsGroupHeader: true},
		{ID: 11, ParentID: 10, Title: "Open orders", ExternalRouteID: "orders.open"},
		{ID: 20, Title: "Dispatch", IsGroupHeader: true},
		{ID: 21, ParentID: 20, Title: "Live board", ExternalRouteID: "dispatch.board"},
	}
	modules = []navigation.Route{
		{ID: 1, Title: "Dashboard", ExternalRouteID: "dashboard"},
	}
)

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":  sub,
		"role": role,
		"name": "Jo",
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	}).SignedString([]byte("1234"))
	require.NoError(t, err)
	return raw
}

func loginResponse(t *testing.T, sub, role string) *backend.LoginResponse {
	t.Helper()
	return &backend.LoginResponse{
		AccessToken:  signedToken(t, sub, role),
		RefreshToken: "R-" + sub,
		User:         users.Profile{FullName: "Jo Bloggs", Email: sub + "@example.com"},
		Modules:      modules,
	}
}

type fakeAuth struct {
	resp  *backend.LoginResponse
	err   error
	calls int
	lock  sync.Mutex
}

func (fa *fakeAuth) Login(_ context.Context, _ backend.Credentials) (*backend.LoginResponse, error) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.calls++
	if fa.err != nil {
		return nil, fa.err
	}
	resp := *fa.resp
	return &resp, nil
}

func (fa *fakeAuth) respond(resp *backend.LoginResponse) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.resp = resp
}

type fakeNavigation struct {
	routes []navigation.Route
	err    error
	hook   func(ctx context.Context) // runs before answering
	calls  int
	lock   sync.Mutex
}

func (fn *fakeNavigation) FetchNavigation(ctx context.Context) ([]navigation.Route, error) {
	fn.lock.Lock()
	fn.calls++
	hook, routes, err := fn.hook, fn.routes, fn.err
	fn.lock.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return nil, err
	}
	return routes, nil
}

func (fn *fakeNavigation) Calls() int {
	fn.lock.Lock()
	defer fn.lock.Unlock()
	return fn.calls
}

type fakeNavigator struct {
	loaded    [][]navigation.Node
	redirects int
	lock      sync.Mutex
}

func (fn *fakeNavigator) LoadNavigation(tree []navigation.Node) {
	fn.lock.Lock()
	defer fn.lock.Unlock()
	fn.loaded = append(fn.loaded, tree)
}

func (fn *fakeNavigator) RedirectToLogin() {
	fn.lock.Lock()
	defer fn.lock.Unlock()
	fn.redirects++
}

type fakeLive struct {
	connected   []string
	disconnects int
	connectErr  error
	lock        sync.Mutex
}

func (fl *fakeLive) Connect(_ context.Context, userID string) error {
	fl.lock.Lock()
	defer fl.lock.Unlock()
	fl.connected = append(fl.connected, userID)
	return fl.connectErr
}

func (fl *fakeLive) Disconnect() error {
	fl.lock.Lock()
	defer fl.lock.Unlock()
	fl.disconnects++
	return nil
}

type fakeRefresher struct {
	store *token.Store
	next  *token.Pair
	err   error
}

func (fr *fakeRefresher) Refresh(_ context.Context) (*token.Pair, error) {
	if fr.err != nil {
		return nil, fr.err
	}
	if err := fr.store.Save(*fr.next); err != nil {
		return nil, err
	}
	return fr.next, nil
}

type fixture struct {
	orchestrator *sessions.Orchestrator
	view         *sessions.View
	auth         *fakeAuth
	nav          *fakeNavigation
	navigator    *fakeNavigator
	live         *fakeLive
	refresher    *fakeRefresher
	kv           *storagefake.FakeStorage
	tokens       *token.Store
	cache        *navcache.Cache
	cacheBackend *cachefake.FakeBackend
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:         &fakeAuth{resp: loginResponse(t, "u1", "dispatcher")},
		nav:          &fakeNavigation{routes: fullRoutes},
		navigator:    &fakeNavigator{},
		live:         &fakeLive{},
		kv:           storagefake.NewFakeStorage(),
		cacheBackend: cachefake.NewFakeBackend(),
	}
	f.tokens = token.NewStore(f.kv)
	f.cache = navcache.Open(context.Background(), f.cacheBackend)
	f.refresher = &fakeRefresher{store: f.tokens}
	f.orchestrator = f.newOrchestrator(t)
	f.view = sessions.NewView(f.orchestrator)
	t.Cleanup(f.view.Close)
	return f
}

// newOrchestrator builds another orchestrator over the same storage and
// cache, as a restarted process would.
func (f *fixture) newOrchestrator(t *testing.T) *sessions.Orchestrator {
	t.Helper()
	o, err := sessions.NewOrchestrator(sessions.Deps{
		Auth:       f.auth,
		Navigation: f.nav,
		Refresher:  f.refresher,
		Tokens:     f.tokens,
		Storage:    f.kv,
		Cache:      f.cache,
		Navigator:  f.navigator,
		Live:       f.live,
	})
	require.NoError(t, err)
	return o
}

var credentials = backend.Credentials{Identifier: "u1", Secret: "p"}
