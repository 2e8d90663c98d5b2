package domain

import "errors"

var (
	// ErrUnauthenticated means no caller identity could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller's role is not entitled to the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation means the payload or selector is malformed.
	ErrValidation = errors.New("invalid payload")
	// ErrStoreUnavailable wraps transient backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict marks a uniqueness-constraint hit on a dedup path. Callers
	// on those paths treat it as "the invariant already holds".
	ErrConflict = errors.New("conflict")
)
