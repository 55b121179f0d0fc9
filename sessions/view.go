package sessions

import (
	"sync"

	"github.com/jrsteele09/go-backoffice-session/token"
	"github.com/jrsteele09/go-backoffice-session/users"
)

// Snapshot is the derived session state read by the UI and route guards.
type Snapshot struct {
	TokenPresent     bool
	User             *users.Profile
	NavigationLoaded bool
}

// IsLoggedIn holds exactly when a token is present.
func (s Snapshot) IsLoggedIn() bool {
	return s.TokenPresent
}

// View projects the Token Store and the orchestrator into a Snapshot. It
// holds no state of its own and exposes no mutations.
type View struct {
	tokens       *token.Store
	orchestrator *Orchestrator

	observersLock sync.Mutex
	observers     map[int]func(Snapshot)
	nextObserver  int
	unsubscribe   []func()
}

// NewView builds a View over the orchestrator's Token Store.
func NewView(o *Orchestrator) *View {
	v := &View{
		tokens:       o.deps.Tokens,
		orchestrator: o,
		observers:    make(map[int]func(Snapshot)),
	}
	v.unsubscribe = []func(){o.Subscribe(v.changed)}
	return v
}

// Snapshot recomputes the state from its sources.
func (v *View) Snapshot() Snapshot {
	return Snapshot{
		TokenPresent:     v.tokens.HasToken(),
		User:             v.tokens.UserProfile(),
		NavigationLoaded: v.orchestrator.NavigationLoaded(),
	}
}

func (v *View) IsLoggedIn() bool {
	return v.tokens.HasToken()
}

func (v *View) UserDisplayName() string {
	return v.user().DisplayName
}

func (v *View) UserFullName() string {
	return v.user().FullName
}

func (v *View) UserRole() string {
	return v.user().RoleName
}

func (v *View) UserPhotoURL() string {
	return v.user().PhotoURL
}

func (v *View) UserEmail() string {
	return v.user().Email
}

// Subscribe registers fn to receive a fresh Snapshot after every token or
// navigation change. Changes made inside an orchestrator operation arrive
// after it returns.
func (v *View) Subscribe(fn func(Snapshot)) func() {
	v.observersLock.Lock()
	defer v.observersLock.Unlock()

	id := v.nextObserver
	v.nextObserver++
	v.observers[id] = fn

	return func() {
		v.observersLock.Lock()
		defer v.observersLock.Unlock()
		delete(v.observers, id)
	}
}

// Close detaches the View from its sources.
func (v *View) Close() {
	for _, unsubscribe := range v.unsubscribe {
		unsubscribe()
	}
	v.unsubscribe = nil
}

func (v *View) user() users.Profile {
	if p := v.tokens.UserProfile(); p != nil {
		return *p
	}
	return users.Profile{}
}

func (v *View) changed() {
	v.observersLock.Lock()
	observers := make([]func(Snapshot), 0, len(v.observers))
	for _, fn := range v.observers {
		observers = append(observers, fn)
	}
	v.observersLock.Unlock()

	if len(observers) == 0 {
		return
	}
	snapshot := v.Snapshot()
	for _, fn := range observers {
		fn(snapshot)
	}
}
