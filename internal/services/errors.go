package services

import (
	"errors"
	"fmt"
)

// ErrAccountNotUsable marks an authenticated account that cannot act:
// deactivated or not email-verified.
var ErrAccountNotUsable = errors.New("account not usable")

// ErrSelfActionForbidden is returned when an admin targets their own
// account on the restricted admin mutations (delete, role toggle).
var ErrSelfActionForbidden = errors.New("action not allowed on own account")

// ValidationError reports a field-shape violation in a request
// payload. The message is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
