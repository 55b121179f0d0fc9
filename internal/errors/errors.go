package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session engine
var (
	// Authentication errors
	ErrAuthentication     = errors.New("authentication failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshRejected    = errors.New("refresh rejected")

	// Persistence errors
	ErrPersistence        = errors.New("token persistence failed")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Navigation errors
	ErrNavigationFetch = errors.New("navigation fetch failed")

	// Cache errors
	ErrCache         = errors.New("navigation cache error")
	ErrCacheNotFound = errors.New("navigation cache entry not found")

	// Token errors
	ErrTokenDecode = errors.New("token decode failed")
	ErrNotLoggedIn = errors.New("not logged in")

	// Session errors
	ErrLoginAborted = errors.New("login aborted")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join joins errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
