package sessions

// State is a step of the login state machine.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StatePersisting
	StateFetchingNavigation
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StatePersisting:
		return "persisting"
	case StateFetchingNavigation:
		return "fetching_navigation"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NavigationSource tells which path produced the navigation tree.
type NavigationSource string

const (
	SourceAuthoritative NavigationSource = "authoritative" // GET /navigation
	SourceFallback      NavigationSource = "fallback"      // modules of the login response
	SourceCache         NavigationSource = "cache"         // restored from the navigation cache
)
