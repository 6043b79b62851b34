package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoAccessToken      = errors.New("access token not received")
	ErrUserExists         = errors.New("user already exists")
)

// AuthenticationError reports that the credential exchange itself failed.
// Session state is fully cleared when it is returned.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// SessionInvalidError reports that the identity fetch failed for an accepted
// credential. The session has already been signed out when it is returned.
type SessionInvalidError struct {
	Err error
}

func (e *SessionInvalidError) Error() string {
	return fmt.Sprintf("session invalid: %v", e.Err)
}

func (e *SessionInvalidError) Unwrap() error { return e.Err }

// SynchronizationError reports a single failed polling cycle. It is never fatal.
type SynchronizationError struct {
	Generation uint64
	Err        error
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("status sync #%d failed: %v", e.Generation, e.Err)
}

func (e *SynchronizationError) Unwrap() error { return e.Err }
