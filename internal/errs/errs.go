// Package errs implements the engine's flat, serializable error taxonomy
// (spec §7). Every error the engine returns across the four external
// interface methods is an *EngineError so callers can branch on Kind without
// string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the engine's error taxonomy. Values are stable wire
// identifiers — do not renumber.
type Kind string

const (
	KindSchemaError        Kind = "SchemaError"
	KindUnknownUser        Kind = "UnknownUser"
	KindDuplicateEvent     Kind = "DuplicateEvent"
	KindGated              Kind = "Gated"
	KindCapReached         Kind = "CapReached"
	KindTransient          Kind = "Transient"
	KindNumericOverflow    Kind = "NumericOverflow"
	KindGraphCycle         Kind = "GraphCycle"
	KindInvariantViolation Kind = "InvariantViolation"
)

// EngineError is the single error type the engine returns. It wraps an
// optional inner cause the way the teacher's persistence and db layers wrap
// driver errors with fmt.Errorf("...: %w", err).
type EngineError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &errs.EngineError{Kind: errs.KindCapReached})
// style comparisons by kind: the target is a sentinel EngineError with only
// Kind set.
func (e *EngineError) Is(target error) bool {
	var other *EngineError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// AsEngineError unwraps err into an *EngineError, if any is present in its
// chain.
func AsEngineError(err error) (*EngineError, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTransient reports whether err (or anything it wraps) is a Transient
// EngineError — the only kind the recovery policy (spec §7) permits a
// caller to retry.
func IsTransient(err error) bool {
	e, ok := AsEngineError(err)
	return ok && e.Kind == KindTransient
}

// MaxRetryAttempts bounds caller-driven retries of Transient errors per the
// recovery policy.
const MaxRetryAttempts = 5

func SchemaError(format string, args ...interface{}) *EngineError {
	return New(KindSchemaError, fmt.Sprintf(format, args...))
}

func UnknownUser(userID string) *EngineError {
	return New(KindUnknownUser, fmt.Sprintf("user %q not found", userID))
}

func DuplicateEvent(eventID string) *EngineError {
	return New(KindDuplicateEvent, fmt.Sprintf("event %q already processed", eventID))
}

func Transient(op string, cause error) *EngineError {
	return Wrap(KindTransient, fmt.Sprintf("%s temporarily unavailable", op), cause)
}

func NumericOverflow(op string, cause error) *EngineError {
	return Wrap(KindNumericOverflow, fmt.Sprintf("overflow in %s", op), cause)
}

func GraphCycle(userID, referrerID string) *EngineError {
	return New(KindGraphCycle, fmt.Sprintf("referrer %q would form a cycle with %q", referrerID, userID))
}

func InvariantViolation(format string, args ...interface{}) *EngineError {
	return New(KindInvariantViolation, fmt.Sprintf(format, args...))
}
