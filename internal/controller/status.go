package controller

import (
	"time"

	"forged/pkg/types"
)

// Status builds a point-in-time snapshot for GET /status. The snapshot is
// taken under the admission lock so the numbers are mutually consistent.
func (c *Controller) Status() types.StatusResponse {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := c.reg.List()
	out := types.StatusResponse{
		SKUID:              c.profile.SKUID,
		UsableBytes:        c.profile.UsableBytes(),
		ReservedBytes:      c.reg.ReservedTotal(),
		HeadroomBytes:      Headroom(c.profile, c.reg),
		ActiveSessions:     c.reg.ActiveCount(),
		QueueDepth:         c.queue.len(),
		MaxQueueDepth:      c.profile.MaxQueueDepth,
		Sessions:           make([]types.SessionStatus, 0, len(sessions)),
		AdmissionsTotal:    c.admissions,
		EvictionsTotal:     c.evictions,
		RejectionsTotal:    c.rejections,
		QueueTimeoutsTotal: c.timeouts,
		UptimeSeconds:      int64(now.Sub(c.startTime) / time.Second),
		ServerTimeUnix:     now.Unix(),
	}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, SessionStatusOf(s))
	}
	return out
}

// SessionStatusOf converts one session to its API representation.
func SessionStatusOf(s Session) types.SessionStatus {
	ss := types.SessionStatus{
		ID:              s.ID,
		State:           string(s.State),
		ContextTokens:   s.ContextTokens,
		EstKVCacheBytes: s.EstimatedKVBytes,
		Priority:        s.Priority,
		Reason:          s.Reason,
	}
	if !s.AdmittedAt.IsZero() {
		ss.AdmittedAtUnix = s.AdmittedAt.Unix()
	}
	if !s.CompletedAt.IsZero() {
		ss.CompletedAtUnix = s.CompletedAt.Unix()
	}
	return ss
}
