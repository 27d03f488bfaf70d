package sequence

import (
	"errors"
	"fmt"
)

// ViolationCode categorizes sequence violations.
type ViolationCode string

const (
	// ErrCodeMaxExceeded indicates a node was invoked more often than its range allows.
	ErrCodeMaxExceeded ViolationCode = "MAX_EXCEEDED"

	// ErrCodeAlreadyComplete indicates a node was invoked after it was asserted complete.
	ErrCodeAlreadyComplete ViolationCode = "ALREADY_COMPLETE"

	// ErrCodeIncomplete indicates a node had not met its range when a later
	// node was invoked, or when the enclosing sequence was closed.
	ErrCodeIncomplete ViolationCode = "INCOMPLETE"

	// ErrCodeUndeclared indicates an invocation of a step the active
	// sequence does not contain.
	ErrCodeUndeclared ViolationCode = "UNDECLARED"
)

// Violation is returned when recorded calls disagree with the declared
// shape of a sequence. Callers treat it as a test failure; it is never
// retried.
type Violation struct {
	// Code identifies the violation category.
	Code ViolationCode

	// Reason is the leading human-readable line.
	Reason string

	// Node is the label of the offending step or loop.
	Node string

	// Kind is "step" or "loop".
	Kind string

	// Expected is the declared range of the offending node.
	Expected Times

	// Actual is the node's call count when the violation was detected.
	Actual int
}

// Error implements the error interface.
func (e *Violation) Error() string {
	if e.Code == ErrCodeAlreadyComplete || e.Code == ErrCodeUndeclared {
		return e.Reason
	}
	subject := "invocation on the mock"
	if e.Kind == kindLoop {
		subject = "loop to be executed"
	}
	return fmt.Sprintf("%s\nExpected %s %s, but was %d times: %s",
		e.Reason, subject, e.Expected, e.Actual, e.Node)
}

// UsageCode categorizes structural misuse of the sequence API.
type UsageCode string

const (
	// ErrCodeNoActiveSequence indicates an operation that needs an active sequence ran without one.
	ErrCodeNoActiveSequence UsageCode = "NO_ACTIVE_SEQUENCE"

	// ErrCodeSequenceActive indicates a second sequence was created in a scope that already has one.
	ErrCodeSequenceActive UsageCode = "SEQUENCE_ALREADY_ACTIVE"

	// ErrCodeLoopNotClosed indicates a loop or sequence was closed while a nested loop was still open.
	ErrCodeLoopNotClosed UsageCode = "LOOP_NOT_CLOSED"

	// ErrCodeModeSwitch indicates the context mode was changed while sequences were open.
	ErrCodeModeSwitch UsageCode = "MODE_SWITCH_WHILE_OPEN"

	// ErrCodeSequenceClosed indicates an operation on a sequence that has already been closed.
	ErrCodeSequenceClosed UsageCode = "SEQUENCE_CLOSED"

	// ErrCodeInvalidArgument indicates a malformed argument such as a nil step.
	ErrCodeInvalidArgument UsageCode = "INVALID_ARGUMENT"
)

const usageHint = ` Recommended usage:

    ctx, seq, err := sequence.Create(ctx)
    if err != nil { ... }
    defer seq.Close()

    mocksequence.InSequence(ctx, t, m.On("Method1"))
    mocksequence.InSequence(ctx, t, m.On("Method2"), sequence.AtMostOnce())

    loop, _ := sequence.OpenLoop(ctx)
    mocksequence.InSequence(ctx, t, m.On("Method3"))
    mocksequence.InSequence(ctx, t, m.On("Method4"), sequence.Exactly(3))
    loop.Close()`

// UsageError is returned for misuse of the API that is independent of any
// recorded call, such as declaring a step with no active sequence.
type UsageError struct {
	Code    UsageCode
	Message string
}

// Error implements the error interface. The message ends with a short
// usage example.
func (e *UsageError) Error() string {
	return e.Message + usageHint
}

func newUsageError(code UsageCode, format string, args ...any) *UsageError {
	return &UsageError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsViolation returns true if err is or wraps a *Violation.
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}

// IsUsageError returns true if err is or wraps a *UsageError.
func IsUsageError(err error) bool {
	var u *UsageError
	return errors.As(err, &u)
}

// ViolationCodeOf returns the code of the *Violation in err's chain, or ""
// if there is none.
func ViolationCodeOf(err error) ViolationCode {
	var v *Violation
	if errors.As(err, &v) {
		return v.Code
	}
	return ""
}

// UsageCodeOf returns the code of the *UsageError in err's chain, or ""
// if there is none.
func UsageCodeOf(err error) UsageCode {
	var u *UsageError
	if errors.As(err, &u) {
		return u.Code
	}
	return ""
}
