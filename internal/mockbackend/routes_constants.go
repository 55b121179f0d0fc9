package mockbackend

import (
	"net/http"

	"github.com/jrsteele09/go-backoffice-session/backend"
)

// Route patterns served by the mock backend
const (
	PatternLogin      = http.MethodPost + " " + backend.RouteLogin
	PatternRefresh    = http.MethodPost + " " + backend.RouteRefresh
	PatternNavigation = http.MethodGet + " " + backend.RouteNavigation
	PatternHealth     = http.MethodGet + " /healthz"
)
