package utils

import (
	"errors"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is a user-facing rejection. Handlers return its message
// verbatim with a 400; any other error is treated as internal.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func NewValidationError(msg string) error {
	return ValidationError{Msg: msg}
}

// IsNetworkError reports whether err looks like a database/network
// connectivity failure rather than an application error. Handlers use it to
// answer "Network unavailable" instead of leaking driver internals.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{
		"connection refused",
		"no such host",
		"i/o timeout",
		"broken pipe",
		"invalid connection",
		"bad connection",
		"dial tcp",
		"dial unix",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
