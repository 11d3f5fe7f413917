package engine

import (
	"context"
	"sync"
	"time"
)

// Simulated is a stand-in engine for development and tests. It tracks
// in-flight sessions and, when PerToken is set, completes each session after
// a latency proportional to its context length by invoking the completion
// callback, the same signal path a real runtime would use.
type Simulated struct {
	mu      sync.Mutex
	active  map[string]*time.Timer
	// Base is fixed startup latency per session; PerToken is generation
	// latency per context token. Zero values mean manual completion only.
	Base     time.Duration
	PerToken time.Duration

	onComplete func(sessionID string)
}

// NewSimulated returns a manual-completion engine (no timers).
func NewSimulated() *Simulated {
	return &Simulated{active: make(map[string]*time.Timer)}
}

// SetCompletionFunc installs the callback invoked when a simulated session
// finishes. Must be set before the first Dispatch when timers are enabled.
func (s *Simulated) SetCompletionFunc(fn func(sessionID string)) {
	s.mu.Lock()
	s.onComplete = fn
	s.mu.Unlock()
}

func (s *Simulated) Dispatch(ctx context.Context, req DispatchRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.Base + time.Duration(req.ContextTokens)*s.PerToken
	if d <= 0 || s.onComplete == nil {
		s.active[req.SessionID] = nil
		return nil
	}
	id := req.SessionID
	s.active[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, still := s.active[id]
		delete(s.active, id)
		fn := s.onComplete
		s.mu.Unlock()
		if still && fn != nil {
			fn(id)
		}
	})
	return nil
}

func (s *Simulated) Abort(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[sessionID]; ok {
		if t != nil {
			t.Stop()
		}
		delete(s.active, sessionID)
	}
	return nil
}

// InFlight reports the number of sessions the engine believes are running.
func (s *Simulated) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
