// Package orcherr defines the orchestration engine's error taxonomy.
// Every failure surfaced across package boundaries is one of these
// typed errors so callers can switch on the Code field instead of
// string-matching.
package orcherr

import "fmt"

// Code identifies a taxonomy bucket.
type Code string

const (
	CodeValidationFailure  Code = "VALIDATION_FAILURE"
	CodeSecurityViolation  Code = "SECURITY_VIOLATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeUpstreamError      Code = "UPSTREAM_ERROR"
	CodeOperationTimeout   Code = "OPERATION_TIMEOUT"
	CodeIntegrityError     Code = "INTEGRITY_ERROR"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeHasCycles          Code = "HAS_CYCLES"
)

// recoverableByDefault records whether a code is retryable absent
// an override at construction time.
var recoverableByDefault = map[Code]bool{
	CodeValidationFailure:  false,
	CodeSecurityViolation:  false,
	CodeNotFound:           false,
	CodeConflict:           false,
	CodeUpstreamError:      true,
	CodeOperationTimeout:   true,
	CodeIntegrityError:     false,
	CodeInvariantViolation: false,
	CodeHasCycles:          false,
}

// Error is the engine's structured error shape: a taxonomy code, a
// human-readable message, an optional correlation id for cross-log
// tracing, and a recoverability flag the retry layer switches on.
type Error struct {
	Code          Code
	Message       string
	CorrelationID string
	recoverable   bool
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Recoverable reports whether the integration layer should retry.
func (e *Error) Recoverable() bool { return e.recoverable }

func newErr(code Code, component, op, msg string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     fmt.Sprintf("%s.%s: %s", component, op, msg),
		recoverable: recoverableByDefault[code],
		cause:       cause,
	}
}

func ValidationFailure(component, op, msg string, cause error) *Error {
	return newErr(CodeValidationFailure, component, op, msg, cause)
}

func SecurityViolation(component, op, msg string, cause error) *Error {
	return newErr(CodeSecurityViolation, component, op, msg, cause)
}

func NotFound(component, op, msg string, cause error) *Error {
	return newErr(CodeNotFound, component, op, msg, cause)
}

func Conflict(component, op, msg string, cause error) *Error {
	return newErr(CodeConflict, component, op, msg, cause)
}

func UpstreamError(component, op, msg string, cause error) *Error {
	return newErr(CodeUpstreamError, component, op, msg, cause)
}

func OperationTimeout(component, op, msg string, cause error) *Error {
	return newErr(CodeOperationTimeout, component, op, msg, cause)
}

func IntegrityError(component, op, msg string, cause error) *Error {
	return newErr(CodeIntegrityError, component, op, msg, cause)
}

func InvariantViolation(component, op, msg string, cause error) *Error {
	return newErr(CodeInvariantViolation, component, op, msg, cause)
}

func HasCycles(component, op, msg string) *Error {
	return newErr(CodeHasCycles, component, op, msg, nil)
}

// Is supports errors.Is matching on Code: errors.Is(err, target) holds
// when target is an *Error with the same Code. A type assertion to
// *Error and a switch on its Code field works as well.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
