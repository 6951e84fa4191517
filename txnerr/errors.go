// Package txnerr defines the error kinds the coordinator surfaces to
// its callers: IllegalState, TryAgain, Expired, and TimedOut/Network.
// Each kind wraps github.com/pkg/errors so callers
// can still unwrap a root cause while pattern-matching on kind via the
// Is* predicates below, rather than on error strings.
package txnerr

import (
	"github.com/pkg/errors"
)

type kind int

const (
	kindIllegalState kind = iota
	kindTryAgain
	kindExpired
	kindTimedOut
	kindNetwork
)

// Error is a kinded error. Cause() returns the wrapped root cause, if
// any, so github.com/pkg/errors.Cause continues to work on it.
type Error struct {
	kind  kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Cause implements the github.com/pkg/errors Causer interface.
func (e *Error) Cause() error {
	return e.cause
}

// Unwrap supports errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func newKind(k kind, msg string) *Error {
	return &Error{kind: k, msg: msg}
}

// NewIllegalState reports a violation of the transaction state
// machine's pre-conditions (commit of a child, commit requiring
// restart, operation after terminal state, finish-child on a parent,
// apply-child on a child).
func NewIllegalState(msg string) error {
	return newKind(kindIllegalState, msg)
}

// NewTryAgain wraps a batch-flush failure that must abort the
// transaction.
func NewTryAgain(cause error) error {
	return &Error{kind: kindTryAgain, msg: "try again", cause: cause}
}

// NewExpired reports that the status tablet no longer considers the
// transaction alive.
func NewExpired(cause error) error {
	return &Error{kind: kindExpired, msg: "transaction expired", cause: cause}
}

// NewTimedOut wraps an RPC deadline exceeded error.
func NewTimedOut(cause error) error {
	return &Error{kind: kindTimedOut, msg: "timed out", cause: cause}
}

// NewNetwork wraps a transport-level RPC failure.
func NewNetwork(cause error) error {
	return &Error{kind: kindNetwork, msg: "network error", cause: cause}
}

func kindOf(err error) (kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// IsIllegalState reports whether err (or something it wraps) is an
// IllegalState error.
func IsIllegalState(err error) bool {
	k, ok := kindOf(err)
	return ok && k == kindIllegalState
}

// IsTryAgain reports whether err is a TryAgain error.
func IsTryAgain(err error) bool {
	k, ok := kindOf(err)
	return ok && k == kindTryAgain
}

// IsExpired reports whether err is an Expired error.
func IsExpired(err error) bool {
	k, ok := kindOf(err)
	return ok && k == kindExpired
}

// IsTimedOut reports whether err is a TimedOut error.
func IsTimedOut(err error) bool {
	k, ok := kindOf(err)
	return ok && k == kindTimedOut
}

// IsNetwork reports whether err is a Network error.
func IsNetwork(err error) bool {
	k, ok := kindOf(err)
	return ok && k == kindNetwork
}

// Retryable reports whether err represents a transient RPC failure
// that the heartbeat loop should retry rather than give up on: every
// kind defined here except Expired. An error that is not one of these
// kinds reports false.
func Retryable(err error) bool {
	k, ok := kindOf(err)
	return ok && k != kindExpired
}
