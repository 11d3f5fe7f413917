package controller

import "fmt"

// requestTooLargeError signals a request whose footprint can never fit the
// usable budget; it is fatal for that request and never retried.
type requestTooLargeError struct {
	estimated int64
	usable    int64
}

func (e requestTooLargeError) Error() string {
	return fmt.Sprintf("request too large: needs %d bytes, usable budget is %d bytes", e.estimated, e.usable)
}

// IsRequestTooLarge reports whether err indicates an unsatisfiable request.
func IsRequestTooLarge(err error) bool {
	_, ok := err.(requestTooLargeError)
	return ok
}

// queueFullError signals backpressure: the wait queue is at max depth.
type queueFullError struct{ depth int }

func (e queueFullError) Error() string { return fmt.Sprintf("queue full: depth %d", e.depth) }

// IsQueueFull reports whether err indicates a full wait queue (503 mapping).
func IsQueueFull(err error) bool {
	_, ok := err.(queueFullError)
	return ok
}

// queueTimeoutError signals a queued request that expired before capacity
// freed up. Distinct from queueFullError so clients can tell "never had a
// chance" from "waited too long".
type queueTimeoutError struct{ id string }

func (e queueTimeoutError) Error() string { return "queue timeout: " + e.id }

// IsQueueTimeout reports whether err indicates queue-deadline expiry.
func IsQueueTimeout(err error) bool {
	_, ok := err.(queueTimeoutError)
	return ok
}

// sessionNotFoundError signals an unknown session id.
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

// ErrSessionNotFound constructs a sessionNotFoundError.
func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether the error indicates a missing session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// invalidTransitionError is an internal invariant violation (double
// completion, stale eviction). It is a programming-error class: logged with
// diagnostic detail, never surfaced as a normal rejection.
type invalidTransitionError struct {
	id   string
	from SessionState
	to   SessionState
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for session %s: %s -> %s", e.id, e.from, e.to)
}

// IsInvalidTransition reports whether err is a lifecycle invariant violation.
func IsInvalidTransition(err error) bool {
	_, ok := err.(invalidTransitionError)
	return ok
}
