package reminder

import "errors"

var (
	// ErrInvalidInput covers an empty title and any malformed date/time part.
	// The operation is aborted with no state change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIDCollision is returned when the ID generator keeps producing IDs
	// that already exist. Existing events are never overwritten.
	ErrIDCollision = errors.New("event id collision")

	// ErrPermissionUnavailable means the platform alert capability is absent
	// or denied. Not fatal: alerts degrade to the fallback path.
	ErrPermissionUnavailable = errors.New("alert permission unavailable")

	// ErrAlertDispatch wraps failures raised while playing a sound or
	// showing an alert. It is logged at the sink and never reaches Tick.
	ErrAlertDispatch = errors.New("alert dispatch failed")
)

// InputError names the offending field of a rejected request.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
