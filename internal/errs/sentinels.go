// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or is not visible to the caller).
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation")

	// ErrAlreadyExists indicates a unique constraint violation (username/email taken, duplicate request).
	ErrAlreadyExists = errors.New("already exists")

	// ErrForbidden indicates the actor is not the owner/creator/addressee the operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the entity is not in a state that allows the transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidCredentials is returned for any failed login, whether or not the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
