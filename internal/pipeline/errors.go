package pipeline

import "errors"

// UsageError marks an invalid invocation: bad configuration or an unusable
// root path. It is always detected before any job is dispatched.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return "usage error: " + e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// IsUsage reports whether err is (or wraps) a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
