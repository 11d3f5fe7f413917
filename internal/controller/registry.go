package controller

import (
	"sort"
	"time"
)

// Registry owns the canonical Session set. It is not self-locking: the
// Controller serializes all access under its admission mutex so reservation
// accounting and eviction selection always see a consistent snapshot.
type Registry struct {
	sessions map[string]*Session
	reserved int64
	active   int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Insert adds a new session. The session must be in StateQueued; admission
// happens through Transition so reservation accounting has a single path.
func (r *Registry) Insert(s *Session) error {
	if s.State != StateQueued {
		return invalidTransitionError{id: s.ID, from: s.State, to: s.State}
	}
	if _, exists := r.sessions[s.ID]; exists {
		return invalidTransitionError{id: s.ID, from: r.sessions[s.ID].State, to: StateQueued}
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns a copy of the session; the registry keeps exclusive ownership
// of the canonical record.
func (r *Registry) Get(id string) (Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Transition moves a session forward in its lifecycle and keeps the
// reservation total in step. Any non-forward move fails with an
// invalidTransitionError, which guards against completion and eviction
// callbacks racing on the same id.
func (r *Registry) Transition(id string, next SessionState, now time.Time) error {
	s, ok := r.sessions[id]
	if !ok {
		return sessionNotFoundError{id: id}
	}
	if stateRank[next] <= stateRank[s.State] {
		return invalidTransitionError{id: id, from: s.State, to: next}
	}
	wasActive := s.State.active()
	s.State = next
	switch {
	case next == StateAdmitted:
		r.reserved += s.EstimatedKVBytes
		r.active++
		s.AdmittedAt = now
	case next.Terminal():
		if wasActive {
			r.reserved -= s.EstimatedKVBytes
			r.active--
		}
		s.CompletedAt = now
	}
	return nil
}

// SetReason records terminal detail on a session.
func (r *Registry) SetReason(id, reason string) {
	if s, ok := r.sessions[id]; ok {
		s.Reason = reason
	}
}

// Remove drops a session record entirely (terminal-state pruning).
func (r *Registry) Remove(id string) {
	if s, ok := r.sessions[id]; ok && s.State.Terminal() {
		delete(r.sessions, id)
	}
}

// ReservedTotal is the sum of estimated KV-cache bytes over sessions in
// {Admitted, Running}.
func (r *Registry) ReservedTotal() int64 { return r.reserved }

// ActiveCount is the number of sessions in {Admitted, Running}.
func (r *Registry) ActiveCount() int { return r.active }

// Active returns copies of the sessions currently holding reservations,
// ordered by id for a stable baseline.
func (r *Registry) Active() []Session {
	out := make([]Session, 0, r.active)
	for _, s := range r.sessions {
		if s.State.active() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns copies of every known session, ordered by id.
func (r *Registry) List() []Session {
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
