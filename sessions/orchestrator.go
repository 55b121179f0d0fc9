// Package sessions drives the operator session: login with persistence,
// navigation loading and rollback, logout teardown, and the derived state
// the UI reads.
package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-backoffice-session/backend"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/internal/utils"
	"github.com/jrsteele09/go-backoffice-session/live"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/jrsteele09/go-backoffice-session/storage"
	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/token/jwt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Authenticator submits credentials to the authentication endpoint.
type Authenticator interface {
	Login(ctx context.Context, credentials backend.Credentials) (*backend.LoginResponse, error)
}

// NavigationFetcher requests the authoritative route list, authenticated
// with the stored access token.
type NavigationFetcher interface {
	FetchNavigation(ctx context.Context) ([]navigation.Route, error)
}

// TokenRefresher exchanges the stored pair for a new one and persists it.
type TokenRefresher interface {
	Refresh(ctx context.Context) (*token.Pair, error)
}

// Navigator is the router sink. It is called while Login, Logout or Restore
// is running and must not call back into the Orchestrator.
type Navigator interface {
	LoadNavigation(tree []navigation.Node)
	RedirectToLogin()
}

// Deps holds the collaborators of an Orchestrator. Navigator, Live and
// Refresher are optional.
type Deps struct {
	Auth       Authenticator
	Navigation NavigationFetcher
	Refresher  TokenRefresher
	Tokens     *token.Store
	Storage    storage.KeyValue // session-scoped keys are wiped through it
	Cache      *navcache.Cache
	Navigator  Navigator
	Live       live.Notifier
}

// NavigationOutcome reports the tree made available after login or restore
// and how it was obtained.
type NavigationOutcome struct {
	Source NavigationSource
	Tree   []navigation.Node
	Cached bool // the tree was written to the navigation cache
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Tokens     token.Pair
	Navigation NavigationOutcome
}

// Orchestrator runs login and logout. Login, Logout, Refresh and Restore are
// serialised, so a logout always runs after an in-flight login has finished
// writing.
type Orchestrator struct {
	deps   Deps
	logger zerolog.Logger

	opLock sync.Mutex

	stateLock sync.RWMutex
	state     State
	navLoaded bool
	tree      []navigation.Node

	observersLock sync.Mutex
	observers     map[int]func()
	nextObserver  int
	busy          bool // an operation holds opLock; notifications wait for it
	pending       bool
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Auth == nil {
		return nil, errors.New("[NewOrchestrator] Auth is required")
	}
	if deps.Navigation == nil {
		return nil, errors.New("[NewOrchestrator] Navigation is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewOrchestrator] Tokens is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("[NewOrchestrator] Storage is required")
	}
	if deps.Cache == nil {
		deps.Cache = navcache.Disabled()
	}
	if deps.Live == nil {
		deps.Live = live.Nop{}
	}

	o := &Orchestrator{
		deps:      deps,
		logger:    log.With().Str("component", "session").Logger(),
		observers: make(map[int]func()),
	}
	deps.Tokens.Subscribe(o.notify)
	return o, nil
}

// State returns the current step of the login state machine. A login
// rejected by the backend while a session is active leaves that session and
// its state in place.
func (o *Orchestrator) State() State {
	o.stateLock.RLock()
	defer o.stateLock.RUnlock()
	return o.state
}

// NavigationLoaded reports whether a navigation tree is loaded for the
// current session.
func (o *Orchestrator) NavigationLoaded() bool {
	o.stateLock.RLock()
	defer o.stateLock.RUnlock()
	return o.navLoaded
}

// Login authenticates, persists the tokens, loads navigation and only then
// reports the session ready.
//
// Authentication errors are returned as is and leave storage alone. A failed
// navigation fetch falls back to the modules of the login response. Any other
// failure after authentication (persistence, cancellation, panic) rolls the
// session back to logged out before the error is returned.
func (o *Orchestrator) Login(ctx context.Context, credentials backend.Credentials) (result *LoginResult, err error) {
	o.lockOp()
	defer o.unlockOp()

	logger := o.logger.With().Str("session_id", uuid.New().String()).Logger()

	previous := o.State()
	o.setState(logger, StateAuthenticating)
	resp, err := o.deps.Auth.Login(ctx, credentials)
	if err != nil {
		logger.Info().Err(err).Msg("login rejected")
		if o.deps.Tokens.HasToken() {
			o.setState(logger, previous)
		} else {
			o.setState(logger, StateFailed)
		}
		return nil, err
	}
	pair := resp.Pair()
	userID, role := identityOf(pair)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("login post-processing panicked")
			err = apperrors.Wrapf(apperrors.ErrLoginAborted, "panic: %v", r)
		}
		if err != nil {
			result = nil
			o.rollback(ctx, logger, userID)
		}
	}()

	o.setState(logger, StatePersisting)
	if err := o.clearPrevious(ctx, logger, userID); err != nil {
		return nil, err
	}
	if err := o.deps.Tokens.Save(pair); err != nil {
		logger.Error().Err(err).Msg("token persistence failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrLoginAborted, "after persisting: %v", err)
	}

	o.setState(logger, StateFetchingNavigation)
	outcome, err := o.loadNavigation(ctx, logger, resp.Modules)
	if err != nil {
		return nil, err
	}

	if userID == "" {
		logger.Warn().Msg("no operator id in token or profile, navigation not cached")
	} else {
		outcome.Cached = o.deps.Cache.SaveEntry(ctx, userID, outcome.Tree, role)
	}

	o.ready(ctx, logger, userID, outcome.Tree)
	logger.Info().
		Str("user_id", userID).
		Str("navigation_source", string(outcome.Source)).
		Int("navigation_entries", navigation.Count(outcome.Tree)).
		Bool("cached", outcome.Cached).
		Msg("login complete")

	return &LoginResult{Tokens: pair, Navigation: outcome}, nil
}

// loadNavigation fetches the authoritative tree, falling back to modules. It
// only fails when ctx itself is done.
func (o *Orchestrator) loadNavigation(ctx context.Context, logger zerolog.Logger, modules []navigation.Route) (NavigationOutcome, error) {
	routes, err := o.deps.Navigation.FetchNavigation(ctx)
	if err == nil {
		return NavigationOutcome{Source: SourceAuthoritative, Tree: navigation.BuildTree(routes)}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return NavigationOutcome{}, apperrors.Wrapf(apperrors.ErrLoginAborted, "fetching navigation: %v", ctxErr)
	}

	logger.Warn().Err(err).Int("modules", len(modules)).Msg("navigation fetch failed, using login modules")
	return NavigationOutcome{Source: SourceFallback, Tree: navigation.BuildTree(modules)}, nil
}

// clearPrevious drops what an earlier session left behind: session-scoped
// keys and, when the operator changes, the previous operator's cache entry.
func (o *Orchestrator) clearPrevious(ctx context.Context, logger zerolog.Logger, userID string) error {
	if previous := o.deps.Tokens.Pair(); previous != nil {
		if previousID, _ := identityOf(*previous); previousID != "" && previousID != userID {
			logger.Debug().Str("previous_user_id", previousID).Msg("dropping previous operator's navigation")
			o.deps.Cache.DeleteEntry(ctx, previousID)
		}
	}
	if err := o.deps.Storage.DeletePrefix(storage.SessionPrefix); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "clearing session data: %v", err)
	}
	return nil
}

func (o *Orchestrator) ready(ctx context.Context, logger zerolog.Logger, userID string, tree []navigation.Node) {
	o.stateLock.Lock()
	o.navLoaded = true
	o.tree = navigation.Clone(tree)
	o.stateLock.Unlock()
	o.setState(logger, StateReady)
	o.notify()

	if o.deps.Navigator != nil {
		o.deps.Navigator.LoadNavigation(navigation.Clone(tree))
	}
	if userID != "" {
		if err := o.deps.Live.Connect(ctx, userID); err != nil {
			logger.Warn().Err(err).Msg("live notifications unavailable")
		}
	}
}

// rollback returns to a logged out state after a failed login. It runs on a
// context detached from ctx's cancellation.
func (o *Orchestrator) rollback(ctx context.Context, logger zerolog.Logger, userID string) {
	ctx = context.WithoutCancel(ctx)
	logger.Warn().Str("user_id", userID).Msg("rolling back login")

	if userID != "" {
		o.deps.Cache.DeleteEntry(ctx, userID)
	}
	o.teardown(logger)
	o.setState(logger, StateFailed)
}

// Logout removes the current operator's cached navigation, disconnects live
// notifications, clears tokens and session-scoped keys and redirects to the
// login screen. It is idempotent. Storage errors are returned after every
// step has run; the in-memory state is cleared regardless.
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.lockOp()
	defer o.unlockOp()

	logger := o.logger
	userID := ""
	if pair := o.deps.Tokens.Pair(); pair != nil {
		userID, _ = identityOf(*pair)
	}
	if userID != "" {
		o.deps.Cache.DeleteEntry(ctx, userID)
	}

	err := o.teardown(logger)
	o.setState(logger, StateIdle)
	if o.deps.Navigator != nil {
		o.deps.Navigator.RedirectToLogin()
	}

	logger.Info().Str("user_id", userID).Msg("logged out")
	return err
}

// teardown clears everything a session owns except cache entries.
func (o *Orchestrator) teardown(logger zerolog.Logger) error {
	if err := o.deps.Live.Disconnect(); err != nil {
		logger.Warn().Err(err).Msg("live notifications disconnect failed")
	}

	var errs []error
	if err := o.deps.Tokens.Clear(); err != nil {
		logger.Error().Err(err).Msg("clearing tokens failed")
		errs = append(errs, err)
	}
	if err := o.deps.Storage.DeletePrefix(storage.SessionPrefix); err != nil {
		logger.Error().Err(err).Msg("clearing session data failed")
		errs = append(errs, apperrors.Wrapf(apperrors.ErrPersistence, "clearing session data: %v", err))
	}

	o.stateLock.Lock()
	o.navLoaded = false
	o.tree = nil
	o.stateLock.Unlock()
	o.notify()

	return apperrors.Join(errs...)
}

// Refresh renews the stored token pair. A rejected refresh leaves the stored
// tokens untouched.
func (o *Orchestrator) Refresh(ctx context.Context) (*token.Pair, error) {
	o.lockOp()
	defer o.unlockOp()

	if o.deps.Refresher == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Refresh] no refresher configured")
	}
	if !o.deps.Tokens.HasToken() {
		return nil, apperrors.ErrNotLoggedIn
	}

	pair, err := o.deps.Refresher.Refresh(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("token refresh failed")
		return nil, err
	}
	o.logger.Debug().Msg("tokens refreshed")
	return pair, nil
}

// Restore resumes a session persisted by an earlier process: the cached tree
// is used when fresh, otherwise navigation is fetched and cached.
func (o *Orchestrator) Restore(ctx context.Context) (*NavigationOutcome, error) {
	o.lockOp()
	defer o.unlockOp()

	pair := o.deps.Tokens.Pair()
	if pair == nil {
		return nil, apperrors.ErrNotLoggedIn
	}
	userID, role := identityOf(*pair)
	logger := o.logger.With().Str("user_id", userID).Logger()

	outcome := &NavigationOutcome{}
	if entry := o.deps.Cache.GetEntry(ctx, userID); entry != nil {
		outcome.Source = SourceCache
		outcome.Tree = entry.NavigationTree
		outcome.Cached = true
	} else {
		o.setState(logger, StateFetchingNavigation)
		routes, err := o.deps.Navigation.FetchNavigation(ctx)
		if err != nil {
			o.setState(logger, StateFailed)
			return nil, err
		}
		outcome.Source = SourceAuthoritative
		outcome.Tree = navigation.BuildTree(routes)
		if userID != "" {
			outcome.Cached = o.deps.Cache.SaveEntry(ctx, userID, outcome.Tree, role)
		}
	}

	o.ready(ctx, logger, userID, outcome.Tree)
	logger.Info().Str("navigation_source", string(outcome.Source)).Msg("session restored")
	return outcome, nil
}

// Navigation returns the loaded tree, or the cached one for the stored
// operator, or nil.
func (o *Orchestrator) Navigation(ctx context.Context) []navigation.Node {
	o.stateLock.RLock()
	if o.navLoaded {
		tree := navigation.Clone(o.tree)
		o.stateLock.RUnlock()
		return tree
	}
	o.stateLock.RUnlock()

	pair := o.deps.Tokens.Pair()
	if pair == nil {
		return nil
	}
	userID, _ := identityOf(*pair)
	if entry := o.deps.Cache.GetEntry(ctx, userID); entry != nil {
		return entry.NavigationTree
	}
	return nil
}

// Subscribe registers fn to run after the tokens or the loaded navigation
// change. Changes made by Login, Logout, Refresh and Restore are reported
// once the operation has returned, so fn may call back into the
// Orchestrator.
func (o *Orchestrator) Subscribe(fn func()) func() {
	o.observersLock.Lock()
	defer o.observersLock.Unlock()

	id := o.nextObserver
	o.nextObserver++
	o.observers[id] = fn

	return func() {
		o.observersLock.Lock()
		defer o.observersLock.Unlock()
		delete(o.observers, id)
	}
}

func (o *Orchestrator) lockOp() {
	o.opLock.Lock()
	o.observersLock.Lock()
	o.busy = true
	o.observersLock.Unlock()
}

// unlockOp releases opLock, then reports changes the operation made.
func (o *Orchestrator) unlockOp() {
	o.observersLock.Lock()
	fire := o.pending
	o.busy, o.pending = false, false
	o.observersLock.Unlock()
	o.opLock.Unlock()

	if fire {
		o.notify()
	}
}

func (o *Orchestrator) notify() {
	o.observersLock.Lock()
	if o.busy {
		o.pending = true
		o.observersLock.Unlock()
		return
	}
	observers := make([]func(), 0, len(o.observers))
	for _, fn := range o.observers {
		observers = append(observers, fn)
	}
	o.observersLock.Unlock()

	for _, fn := range observers {
		fn()
	}
}

func (o *Orchestrator) setState(logger zerolog.Logger, state State) {
	o.stateLock.Lock()
	from := o.state
	o.state = state
	o.stateLock.Unlock()

	if from != state {
		logger.Debug().Stringer("from", from).Stringer("to", state).Msg("session state")
	}
}

// identityOf derives the cache key and role of a pair: decoded claims first,
// then the profile reported by the backend.
func identityOf(pair token.Pair) (userID, role string) {
	if claims, err := jwt.Decode(pair.AccessToken); err == nil {
		userID, role = claims.SubjectID, claims.Role
	}
	return utils.FirstNonEmpty(userID, pair.User.ID), utils.FirstNonEmpty(role, pair.User.RoleName)
}
