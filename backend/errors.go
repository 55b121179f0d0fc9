package backend

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
)

// HTTPError describes a failed backend call. It unwraps to the taxonomy
// sentinel for the operation (Kind) and to the transport error, if any.
type HTTPError struct {
	Op         string // "login", "refresh" or "navigation"
	StatusCode int    // 0 when the request never got a response
	Message    string // Server supplied message
	Kind       error  // Taxonomy sentinel
	Err        error  // Underlying error
}

func (e *HTTPError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s (%d %s)", e.Op, e.Message, e.StatusCode, http.StatusText(e.StatusCode))
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %d %s: %v", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *HTTPError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// classify maps an HTTP status to the error kind for op.
func classify(op string, status int) (kind error, detail error) {
	switch op {
	case opLogin:
		if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest {
			return apperrors.ErrAuthentication, apperrors.ErrInvalidCredentials
		}
		return apperrors.ErrAuthentication, nil
	case opRefresh:
		if status >= 400 && status < 500 {
			return apperrors.ErrRefreshRejected, nil
		}
		return apperrors.ErrAuthentication, nil
	default:
		return apperrors.ErrNavigationFetch, nil
	}
}

func transportKind(op string) error {
	switch op {
	case opLogin, opRefresh:
		return apperrors.ErrAuthentication
	default:
		return apperrors.ErrNavigationFetch
	}
}
