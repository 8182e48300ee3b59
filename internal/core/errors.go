package core

import (
	"errors"
	"fmt"
)

// Error codes sent to clients in error events.
const (
	ErrCodeNotFriends   = "not_friends"
	ErrCodeStorageError = "storage_error"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInternal     = "internal_error"
)

// ErrNotFriends is returned when a message targets a user outside the sender's friend set.
var ErrNotFriends = errors.New("can only message friends")

// AuthErrorKind classifies a rejected credential.
type AuthErrorKind int

const (
	AuthMissingCredential AuthErrorKind = iota
	AuthInvalidCredential
	AuthIdentityNotFound
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthMissingCredential:
		return "missing_credential"
	case AuthInvalidCredential:
		return "invalid_credential"
	case AuthIdentityNotFound:
		return "identity_not_found"
	default:
		return "unknown"
	}
}

// AuthError is returned when a connection cannot be admitted.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Kind, e.Err)
	}
	return "authentication failed: " + e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err with the given kind.
func NewAuthError(kind AuthErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// StorageError reports a failed durable write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorFor maps an error to the code and message a client sees.
func ErrorFor(err error) *CoreError {
	var (
		ce *CoreError
		se *StorageError
		ae *AuthError
	)
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrNotFriends):
		return coreError(ErrCodeNotFriends, "can only message friends")
	case errors.As(err, &se):
		return coreError(ErrCodeStorageError, "failed to send message")
	case errors.As(err, &ae):
		return coreError(ErrCodeUnauthorized, "authentication failed")
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
