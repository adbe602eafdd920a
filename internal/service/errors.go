package service

import "errors"

// Failure taxonomy for the access-control service. Handlers translate
// these into HTTP status codes; raw store errors never cross this
// boundary.
var (
	// ErrUnauthenticated covers every bad-credential case: missing
	// header, unknown secret, deleted key. Callers must not be able to
	// tell which one occurred.
	ErrUnauthenticated = errors.New("invalid or missing api key")

	// ErrForbidden is an authenticated but disallowed action: a banned
	// user, or a key owned by someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation rejects malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable wraps store timeouts and transient failures; the
	// caller may retry.
	ErrUnavailable = errors.New("service unavailable")
)
