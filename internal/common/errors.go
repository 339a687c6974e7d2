package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// SchemaError carries a server error code out of internal/schema so
// internal/session can translate it into an ERR packet without
// internal/schema needing to know about the wire encoding.
type SchemaError struct {
	Code    uint16
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s (errno %d)", e.Message, e.Code)
}

// MySQLError is the one error type that ever reaches the wire: every
// other error gets wrapped into one before being written as an ERR
// packet, per spec.md §7's propagation policy.
type MySQLError struct {
	Code    uint16
	Message string
}

func (e *MySQLError) Error() string {
	return fmt.Sprintf("%s (errno %d)", e.Message, e.Code)
}

// SQLState reports the five-character SQL state for this error's code.
func (e *MySQLError) SQLState() string { return SQLState(e.Code) }

// NewError builds a MySQLError from a code and a fmt-style message.
func NewError(code uint16, format string, args ...interface{}) *MySQLError {
	return &MySQLError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsMySQLError unwraps err into a *MySQLError, or wraps it as
// ER_UNKNOWN_ERROR if it isn't already one, matching spec.md §7's
// "generic fallback" rule. A *SchemaError is translated using its own
// code. errors.Cause unwinds any github.com/pkg/errors.Wrap layers
// (e.g. the "backend query" wrapper in internal/session) so a typed
// error raised deep inside a handler still surfaces its own code
// instead of falling back to ER_UNKNOWN_ERROR.
func AsMySQLError(err error) *MySQLError {
	if err == nil {
		return nil
	}
	switch e := errors.Cause(err).(type) {
	case *MySQLError:
		return e
	case *SchemaError:
		return &MySQLError{Code: e.Code, Message: e.Message}
	default:
		return &MySQLError{Code: ErUnknownError, Message: err.Error()}
	}
}
