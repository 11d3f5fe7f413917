package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"forged/internal/engine"
	"forged/internal/profile"
)

// Controller is the hardware-adaptive admission gatekeeper. One mutex
// serializes the registry, the wait queue, and policy resolution so two
// concurrent submits can never both observe stale headroom and over-admit.
// Engine dispatch and abort always happen outside that lock.
type Controller struct {
	mu      sync.Mutex
	profile profile.Profile
	policy  Policy
	reg     *Registry
	queue   *waitQueue

	eng       engine.Engine
	publisher EventPublisher

	queueTimeout  time.Duration
	sweepInterval time.Duration
	retention     time.Duration

	// Monotonic totals mirrored into /status.
	admissions uint64
	rejections uint64
	evictions  uint64
	timeouts   uint64

	now       func() time.Time
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Outcome is the structured result of Submit for the non-error paths.
type Outcome struct {
	SessionID string
	Queued    bool
	// Position is the 1-based queue position when Queued is true.
	Position int
}

// Profile returns the active hardware profile. Immutable for the life of
// the process.
func (c *Controller) Profile() profile.Profile { return c.profile }

// Start launches the background sweep that expires queued entries past
// deadline and prunes old terminal session records.
func (c *Controller) Start() {
	go c.sweepLoop()
}

// Close stops the background sweep. Idempotent.
func (c *Controller) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// Submit decides the fate of a new session request: admit, queue, or
// reject. Rejections come back as typed errors (IsRequestTooLarge,
// IsQueueFull) so the HTTP layer can map them to statuses.
func (c *Controller) Submit(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if req.Dtype == "" {
		req.Dtype = c.profile.DefaultKVCacheDtype
	}
	if req.EstimatedKVBytes == 0 {
		req.EstimatedKVBytes = EstimateKVBytes(req.ContextTokens, req.Dtype, c.profile.TokensPerBlock)
	}
	now := c.now()
	id := uuid.NewString()
	s := &Session{
		ID:               id,
		State:            StateQueued,
		ContextTokens:    req.ContextTokens,
		EstimatedKVBytes: req.EstimatedKVBytes,
		Priority:         req.Priority,
	}

	c.mu.Lock()
	// Expiry can remove a blocking queue head, so drain before deciding the
	// new request; waiting entries are older and get first claim.
	drained, expired := c.drainLocked(now)

	// A request that can never fit is rejected outright, regardless of
	// policy and current load.
	usable := c.profile.UsableBytes()
	if req.EstimatedKVBytes > usable {
		err := requestTooLargeError{estimated: req.EstimatedKVBytes, usable: usable}
		_ = c.reg.Insert(s)
		_ = c.reg.Transition(id, StateRejected, now)
		c.reg.SetReason(id, err.Error())
		c.rejections++
		rejectionsTotal.WithLabelValues(reasonRequestTooLarge).Inc()
		c.updateGauges()
		c.mu.Unlock()
		c.publishTimeouts(expired)
		c.startDispatches(drained)
		c.publisher.Publish(Event{Name: "rejected", SessionID: id, Fields: map[string]any{"reason": reasonRequestTooLarge}})
		return Outcome{}, err
	}

	// Fast path: free slot, enough headroom, and nobody already waiting.
	// Skipping the queue while it is non-empty would let a small newcomer
	// jump an earlier, larger request.
	if c.queue.len() == 0 && c.fitsLocked(req.EstimatedKVBytes) {
		_ = c.reg.Insert(s)
		_ = c.reg.Transition(id, StateAdmitted, now)
		c.admissions++
		admissionsTotal.Inc()
		admitted, _ := c.reg.Get(id)
		c.updateGauges()
		c.mu.Unlock()
		c.publishTimeouts(expired)
		c.startDispatches(drained)
		c.publisher.Publish(Event{Name: "admitted", SessionID: id, Fields: map[string]any{"bytes": req.EstimatedKVBytes}})
		c.startDispatches([]Session{admitted})
		return Outcome{SessionID: id}, nil
	}

	// Over budget or over the session cap: let the policy decide.
	res := c.policy.Resolve(req, c.reg, c.profile)
	if len(res.Evict) > 0 {
		evictedIDs := c.evictLocked(res.Evict, now, fmt.Sprintf("evicted: memory reclaimed for higher-priority session %s", id))
		_ = c.reg.Insert(s)
		_ = c.reg.Transition(id, StateAdmitted, now)
		c.admissions++
		admissionsTotal.Inc()
		admitted, _ := c.reg.Get(id)
		// Eviction frees at least what the winner needs, sometimes more; the
		// surplus goes to the queue head like any other freed capacity.
		surplus, _ := c.drainLocked(now)
		c.updateGauges()
		c.mu.Unlock()
		c.publishTimeouts(expired)
		c.startDispatches(drained)
		for _, eid := range evictedIDs {
			_ = c.eng.Abort(eid)
			c.publisher.Publish(Event{Name: "evicted", SessionID: eid, Fields: map[string]any{"for": id}})
		}
		c.publisher.Publish(Event{Name: "admitted", SessionID: id, Fields: map[string]any{"bytes": req.EstimatedKVBytes, "evictions": len(evictedIDs)}})
		c.startDispatches([]Session{admitted})
		c.startDispatches(surplus)
		return Outcome{SessionID: id}, nil
	}

	// Queue-or-reject.
	if c.queue.full() {
		err := queueFullError{depth: c.queue.maxDepth}
		_ = c.reg.Insert(s)
		_ = c.reg.Transition(id, StateRejected, now)
		c.reg.SetReason(id, err.Error())
		c.rejections++
		rejectionsTotal.WithLabelValues(reasonQueueFull).Inc()
		c.updateGauges()
		c.mu.Unlock()
		c.publishTimeouts(expired)
		c.startDispatches(drained)
		c.publisher.Publish(Event{Name: "rejected", SessionID: id, Fields: map[string]any{"reason": reasonQueueFull}})
		return Outcome{}, err
	}
	_ = c.reg.Insert(s)
	pos := c.queue.push(&queueEntry{
		id:         id,
		req:        req,
		enqueuedAt: now,
		deadline:   now.Add(c.queueTimeout),
	})
	c.updateGauges()
	c.mu.Unlock()
	c.publishTimeouts(expired)
	c.startDispatches(drained)
	c.publisher.Publish(Event{Name: "queued", SessionID: id, Fields: map[string]any{"position": pos}})
	return Outcome{SessionID: id, Queued: true, Position: pos}, nil
}

// Complete releases a session's reservation on the engine completion
// callback and drains the queue head-first into the freed capacity.
func (c *Controller) Complete(id string) error {
	now := c.now()
	c.mu.Lock()
	if err := c.reg.Transition(id, StateCompleted, now); err != nil {
		c.mu.Unlock()
		return err
	}
	dispatches, expired := c.drainLocked(now)
	c.updateGauges()
	c.mu.Unlock()
	c.publisher.Publish(Event{Name: "completed", SessionID: id, Fields: map[string]any{}})
	c.publishTimeouts(expired)
	c.startDispatches(dispatches)
	return nil
}

// Cancel handles a client disconnect. A still-queued request is removed
// without touching the reservation accounting; a running session goes
// through the same release path as a normal completion, plus an engine
// abort.
func (c *Controller) Cancel(id string) error {
	now := c.now()
	c.mu.Lock()
	s, ok := c.reg.Get(id)
	if !ok {
		c.mu.Unlock()
		return sessionNotFoundError{id: id}
	}
	switch {
	case s.State == StateQueued:
		c.queue.remove(id)
		_ = c.reg.Transition(id, StateRejected, now)
		c.reg.SetReason(id, "canceled by client")
		c.rejections++
		rejectionsTotal.WithLabelValues(reasonCanceled).Inc()
		c.updateGauges()
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "canceled", SessionID: id, Fields: map[string]any{"state": string(StateQueued)}})
		return nil
	case s.State.active():
		_ = c.reg.Transition(id, StateCompleted, now)
		c.reg.SetReason(id, "canceled by client")
		dispatches, expired := c.drainLocked(now)
		c.updateGauges()
		c.mu.Unlock()
		_ = c.eng.Abort(id)
		c.publisher.Publish(Event{Name: "canceled", SessionID: id, Fields: map[string]any{"state": string(s.State)}})
		c.publishTimeouts(expired)
		c.startDispatches(dispatches)
		return nil
	default:
		c.mu.Unlock()
		return invalidTransitionError{id: id, from: s.State, to: StateCompleted}
	}
}

// GetSession returns a copy of a session record.
func (c *Controller) GetSession(id string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Get(id)
}

// Sessions returns copies of every known session.
func (c *Controller) Sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.List()
}

// QueuePosition returns the 1-based queue position for a session, or 0 if
// it is not queued.
func (c *Controller) QueuePosition(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.position(id)
}

// fitsLocked is the direct-admission check: a free session slot and enough
// headroom for the reservation.
func (c *Controller) fitsLocked(est int64) bool {
	return c.reg.ActiveCount() < c.profile.MaxConcurrentSessions &&
		Headroom(c.profile, c.reg) >= est
}

// evictLocked executes an eviction plan and returns the evicted ids, in
// plan order, for engine aborts outside the lock.
func (c *Controller) evictLocked(plan []Session, now time.Time, reason string) []string {
	ids := make([]string, 0, len(plan))
	for _, victim := range plan {
		if err := c.reg.Transition(victim.ID, StateEvicted, now); err != nil {
			// Raced with a completion in a prior unlock window; the plan
			// entry is stale, skip it.
			continue
		}
		c.reg.SetReason(victim.ID, reason)
		c.evictions++
		evictionsTotalCtr.Inc()
		ids = append(ids, victim.ID)
	}
	return ids
}

// drainLocked re-attempts admission for the queue strictly head-first.
// The head blocks the drain even when a later entry would fit.
func (c *Controller) drainLocked(now time.Time) (dispatches []Session, expired []string) {
	expired = c.expireLocked(now)
	for {
		e := c.queue.head()
		if e == nil || !c.fitsLocked(e.req.EstimatedKVBytes) {
			break
		}
		c.queue.popHead()
		_ = c.reg.Transition(e.id, StateAdmitted, now)
		c.admissions++
		admissionsTotal.Inc()
		s, _ := c.reg.Get(e.id)
		dispatches = append(dispatches, s)
	}
	return dispatches, expired
}

// expireLocked moves queue entries past deadline to Rejected with a timeout
// reason. Expiry is cooperative: deadline comparison only, no interrupts.
func (c *Controller) expireLocked(now time.Time) []string {
	var ids []string
	for _, e := range c.queue.expire(now) {
		_ = c.reg.Transition(e.id, StateRejected, now)
		c.reg.SetReason(e.id, queueTimeoutError{id: e.id}.Error())
		c.timeouts++
		c.rejections++
		queueTimeoutsTotal.Inc()
		rejectionsTotal.WithLabelValues(reasonQueueTimeout).Inc()
		ids = append(ids, e.id)
	}
	return ids
}

func (c *Controller) publishTimeouts(ids []string) {
	for _, id := range ids {
		c.publisher.Publish(Event{Name: "queue_timeout", SessionID: id, Fields: map[string]any{}})
	}
}

// startDispatches hands admitted sessions to the engine, each on its own
// goroutine, outside the admission lock.
func (c *Controller) startDispatches(sessions []Session) {
	for _, s := range sessions {
		if len(sessions) > 1 {
			c.publisher.Publish(Event{Name: "admitted", SessionID: s.ID, Fields: map[string]any{"drained": true}})
		}
		go c.dispatchSession(s)
	}
}

func (c *Controller) dispatchSession(s Session) {
	err := c.eng.Dispatch(context.Background(), engine.DispatchRequest{
		SessionID:     s.ID,
		ContextTokens: s.ContextTokens,
		Priority:      s.Priority,
	})
	now := c.now()
	c.mu.Lock()
	if err != nil {
		// A failed dispatch releases the reservation like a completion.
		if terr := c.reg.Transition(s.ID, StateCompleted, now); terr == nil {
			c.reg.SetReason(s.ID, "dispatch failed: "+err.Error())
		}
		dispatches, expired := c.drainLocked(now)
		c.updateGauges()
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "dispatch_failed", SessionID: s.ID, Fields: map[string]any{"error": err.Error()}})
		c.publishTimeouts(expired)
		c.startDispatches(dispatches)
		return
	}
	terr := c.reg.Transition(s.ID, StateRunning, now)
	c.updateGauges()
	c.mu.Unlock()
	if terr != nil {
		// Evicted or canceled while the dispatch was in flight; make sure
		// the engine stops it.
		_ = c.eng.Abort(s.ID)
	}
}

func (c *Controller) sweepLoop() {
	t := time.NewTicker(c.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			now := c.now()
			c.mu.Lock()
			// Drain, not just expire: an expired head may have been the only
			// thing blocking a fitting successor.
			dispatches, expired := c.drainLocked(now)
			c.pruneLocked(now)
			c.updateGauges()
			c.mu.Unlock()
			c.publishTimeouts(expired)
			c.startDispatches(dispatches)
		}
	}
}

// pruneLocked drops terminal session records older than the retention
// window so the registry does not grow without bound.
func (c *Controller) pruneLocked(now time.Time) {
	for _, s := range c.reg.List() {
		if s.State.Terminal() && !s.CompletedAt.IsZero() && now.Sub(s.CompletedAt) > c.retention {
			c.reg.Remove(s.ID)
		}
	}
}
