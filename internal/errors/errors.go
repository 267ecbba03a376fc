package errors

import "errors"

// Common error types for the console session layer
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Token errors
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrMalformedToken = errors.New("malformed token")

	// Session errors
	ErrSessionRestoreFailed = errors.New("session restore failed")

	// Workspace errors
	ErrWorkspaceSwitchFailed = errors.New("workspace switch failed")

	// Intent errors
	ErrIntentExpired = errors.New("auth intent expired")

	// Concurrency errors
	ErrStaleResponse = errors.New("stale response discarded")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
