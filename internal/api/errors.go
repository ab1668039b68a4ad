package api

import "errors"

// Failure taxonomy for service calls. Every error returned by the Client
// wraps exactly one of these sentinels together with the human-readable
// detail sent by the server, so callers branch with errors.Is and surface
// err.Error() directly.
var (
	// ErrValidation indicates locally preventable malformed input.
	ErrValidation = errors.New("invalid request")
	// ErrConflict indicates the contact identity is already registered.
	ErrConflict = errors.New("account already exists")
	// ErrInvalidCode indicates the one-time code did not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrExpiredCode indicates the one-time code is no longer usable.
	ErrExpiredCode = errors.New("verification code expired")
	// ErrAuthentication indicates an unknown identity or wrong secret.
	ErrAuthentication = errors.New("invalid credentials")
	// ErrUnverifiedAccount indicates login before contact verification.
	ErrUnverifiedAccount = errors.New("account not verified")
	// ErrUnauthorized indicates the session token was rejected. Observers
	// must treat it as a session teardown signal.
	ErrUnauthorized = errors.New("session rejected")
	// ErrPayload indicates the server rejected the uploaded file.
	ErrPayload = errors.New("upload rejected")
	// ErrNetwork indicates a transport-level failure with no response.
	ErrNetwork = errors.New("network error")
)
