package disruption

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Only KindInvalidContext surfaces to the
// caller as a hard failure; every other kind is absorbed by the fallback
// and degrade policy of the stage that produced it and recorded in the
// audit trail.
type Kind string

const (
	// KindInvalidContext marks a malformed snapshot rejected before a run
	// starts. The single fatal, pre-run failure.
	KindInvalidContext Kind = "invalid_context"
	// KindProviderTimeout marks a reasoning-provider call that exceeded its
	// deadline.
	KindProviderTimeout Kind = "provider_timeout"
	// KindProviderMalformedOutput marks provider output that could not be
	// parsed into the expected shape. Never retried.
	KindProviderMalformedOutput Kind = "provider_malformed_output"
	// KindSpecialistFailed marks a specialist that settled with a failure
	// after exhausting its retry budget.
	KindSpecialistFailed Kind = "specialist_failed"
	// KindVariantFanoutTimeout marks a variant whose fan-in barrier expired
	// before all specialists settled.
	KindVariantFanoutTimeout Kind = "variant_fanout_timeout"
	// KindRunTimeout marks expiry of the whole-run deadline.
	KindRunTimeout Kind = "run_timeout"
	// KindCallerCancelled marks caller-initiated cancellation.
	KindCallerCancelled Kind = "caller_cancelled"
	// KindPersistenceFailed marks a best-effort save that did not complete.
	// Never affects the returned plan.
	KindPersistenceFailed Kind = "persistence_failed"
)

// Error carries a failure kind alongside the underlying cause so call
// sites can classify with errors.As without string matching.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a failure kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf creates a classified error from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the failure kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsInvalidContext reports whether err is a pre-run context rejection.
func IsInvalidContext(err error) bool {
	return IsKind(err, KindInvalidContext)
}
