// Package errors provides the closed, typed error model shared across
// the routing core. Every error surfaced from a public operation is a
// *RouterError carrying one of the Code values below; callers branch on
// code with errors.Is against the sentinel for that code.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies one of the error kinds named by the routing core's
// contract. The set is closed: it is not meant to grow without a
// matching update to the callers that branch on it.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeNoEligibleAgent  Code = "NO_ELIGIBLE_AGENT"
	CodeConfigError      Code = "CONFIG_ERROR"
	CodeIntegrityError   Code = "INTEGRITY_ERROR"
	CodeSignatureError   Code = "SIGNATURE_ERROR"
	CodeReplayDetected   Code = "REPLAY_DETECTED"
	CodeDriftExceeded    Code = "DRIFT_EXCEEDED"
	CodeTimeout          Code = "TIMEOUT"
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeTransient        Code = "TRANSIENT"
	CodeInternal         Code = "INTERNAL"
	CodeDuplicate        Code = "DUPLICATE_FEEDBACK"
)

// RouterError is the concrete error type returned by every public
// operation in this module.
type RouterError struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *RouterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *RouterError) Unwrap() error { return e.Err }

// WithDetail attaches a diagnostic key/value pair and returns the
// receiver for chaining.
func (e *RouterError) WithDetail(key string, value any) *RouterError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds a RouterError with no wrapped cause.
func New(code Code, message string) *RouterError {
	return &RouterError{Code: code, Message: message}
}

// Wrap builds a RouterError around an existing cause.
func Wrap(code Code, message string, err error) *RouterError {
	return &RouterError{Code: code, Message: message, Err: err}
}

// Sentinel values for errors.Is comparisons against a bare code, e.g.
// errors.Is(err, errors.ErrNotFound).
var (
	ErrNotFound         = New(CodeNotFound, "not found")
	ErrNoEligibleAgent  = New(CodeNoEligibleAgent, "no eligible agent")
	ErrConfigError      = New(CodeConfigError, "invalid configuration")
	ErrIntegrityError   = New(CodeIntegrityError, "checksum mismatch")
	ErrSignatureError   = New(CodeSignatureError, "signature mismatch")
	ErrReplayDetected   = New(CodeReplayDetected, "nonce already seen")
	ErrDriftExceeded    = New(CodeDriftExceeded, "timestamp drift exceeded")
	ErrTimeout          = New(CodeTimeout, "operation timed out")
	ErrCapacityExceeded = New(CodeCapacityExceeded, "capacity exceeded")
	ErrTransient        = New(CodeTransient, "transient upstream failure")
	ErrInternal         = New(CodeInternal, "internal error")
	ErrDuplicate        = New(CodeDuplicate, "duplicate feedback")
)

func (e *RouterError) Is(target error) bool {
	t, ok := target.(*RouterError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NotFound builds a CodeNotFound error naming the missing resource.
func NotFound(resource, id string) *RouterError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource)).WithDetail("id", id)
}

// NoEligibleAgent builds a CodeNoEligibleAgent error for an empty
// candidate set.
func NoEligibleAgent(inputType string) *RouterError {
	return New(CodeNoEligibleAgent, "no eligible agent for input type").WithDetail("input_type", inputType)
}

// ConfigError builds a CodeConfigError error for a bad configuration
// value discovered at init time.
func ConfigError(field, reason string) *RouterError {
	return New(CodeConfigError, "invalid configuration").WithDetail("field", field).WithDetail("reason", reason)
}

// IntegrityError builds a CodeIntegrityError error for a checksum
// mismatch in strict mode.
func IntegrityError(cause error) *RouterError {
	return Wrap(CodeIntegrityError, "checksum mismatch", cause)
}

// SignatureError builds a CodeSignatureError error for an HMAC mismatch.
func SignatureError(cause error) *RouterError {
	return Wrap(CodeSignatureError, "signature mismatch", cause)
}

// ReplayDetected builds a CodeReplayDetected error for a reused nonce.
func ReplayDetected(nonce string) *RouterError {
	return New(CodeReplayDetected, "nonce already seen").WithDetail("nonce", nonce)
}

// DriftExceeded builds a CodeDriftExceeded error for an out-of-window
// timestamp.
func DriftExceeded(driftSeconds float64) *RouterError {
	return New(CodeDriftExceeded, "timestamp drift exceeded bound").WithDetail("drift_seconds", driftSeconds)
}

// Timeout builds a CodeTimeout error naming the operation that missed
// its deadline.
func Timeout(operation string) *RouterError {
	return New(CodeTimeout, "operation timed out").WithDetail("operation", operation)
}

// CapacityExceeded builds a CodeCapacityExceeded error for subscribe-time
// rejection.
func CapacityExceeded(limit int) *RouterError {
	return New(CodeCapacityExceeded, "subscriber capacity exceeded").WithDetail("limit", limit)
}

// Internal builds a CodeInternal error, used for recovered panics and
// floating-point corruption that should never reach a caller raw.
func Internal(message string, cause error) *RouterError {
	return Wrap(CodeInternal, message, cause)
}

// Duplicate builds a CodeDuplicate error for a feedback event ID seen
// before; callers treat this as an idempotent no-op, not a hard failure.
func Duplicate(feedbackID string) *RouterError {
	return New(CodeDuplicate, "feedback already applied").WithDetail("feedback_id", feedbackID)
}

// Is reports whether err carries the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	var re *RouterError
	if stderrors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// As extracts the *RouterError from an error chain, if present.
func As(err error) (*RouterError, bool) {
	var re *RouterError
	ok := stderrors.As(err, &re)
	return re, ok
}
