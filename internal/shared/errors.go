package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the current user may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrCSRFTokenMissing indicates no token accompanied a mutating request.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch indicates the token does not match the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
