package controller

import (
	"time"

	"forged/internal/profile"
)

// SessionState is the lifecycle state of a session. Transitions are
// forward-only; see Registry.Transition.
type SessionState string

const (
	StateQueued    SessionState = "queued"
	StateAdmitted  SessionState = "admitted"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateRejected  SessionState = "rejected"
	StateEvicted   SessionState = "evicted"
)

// stateRank orders the lifecycle. A transition is legal only when the rank
// strictly increases, which makes every terminal state final and forbids
// e.g. completed -> running.
var stateRank = map[SessionState]int{
	StateQueued:    0,
	StateAdmitted:  1,
	StateRunning:   2,
	StateCompleted: 3,
	StateRejected:  3,
	StateEvicted:   3,
}

// Terminal reports whether a state can never transition again.
func (s SessionState) Terminal() bool { return stateRank[s] == 3 }

// active reports whether a state holds a memory reservation.
func (s SessionState) active() bool { return s == StateAdmitted || s == StateRunning }

// Request is a normalized admission request. EstimatedKVBytes is derived
// once at submit time and never recomputed.
type Request struct {
	ContextTokens    int
	Priority         int
	Dtype            profile.KVCacheDtype
	EstimatedKVBytes int64
}

// Session is the canonical record owned by the Registry. Callers receive
// copies; only Registry.Transition mutates state.
type Session struct {
	ID               string
	State            SessionState
	ContextTokens    int
	EstimatedKVBytes int64
	Priority         int
	AdmittedAt       time.Time
	CompletedAt      time.Time
	// Reason carries terminal detail (eviction cause, rejection class).
	Reason string
}
