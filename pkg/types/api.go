package types

// SessionRequest is the payload for POST /v1/sessions.
type SessionRequest struct {
	// Requested context length in tokens; drives the KV-cache reservation.
	// example: 4096
	ContextTokens int `json:"context_tokens" example:"4096"`
	// Scheduling priority. Lower-priority sessions are evicted first under
	// the max_utilization policy. Defaults to 0.
	// example: 10
	Priority int `json:"priority,omitempty" example:"10"`
	// Optional KV-cache dtype override (fp32|fp16|fp8). Empty uses the
	// active profile's default.
	// example: fp8
	KVCacheDtype string `json:"kv_cache_dtype,omitempty" example:"fp8"`
}

// SessionResponse is returned when a session is admitted.
type SessionResponse struct {
	// example: 7b09a2f4-1c3d-4e5f-9a8b-0c1d2e3f4a5b
	SessionID string `json:"session_id"`
	// example: admitted
	State string `json:"state"`
}

// QueuedResponse is returned with HTTP 202 when a request is queued.
type QueuedResponse struct {
	SessionID string `json:"session_id"`
	// 1-based position in the wait queue.
	// example: 3
	Position int `json:"position"`
	// example: queued
	State string `json:"state"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: queue full
	Error string `json:"error" example:"queue full"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
}

// SessionStatus summarizes one session for /status and /v1/sessions.
type SessionStatus struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	ContextTokens int    `json:"context_tokens"`
	// Estimated KV-cache reservation in bytes.
	EstKVCacheBytes int64 `json:"est_kv_cache_bytes"`
	Priority        int   `json:"priority"`
	AdmittedAtUnix  int64 `json:"admitted_at_unix,omitempty"`
	CompletedAtUnix int64 `json:"completed_at_unix,omitempty"`
	// Terminal detail, e.g. why a session was evicted or rejected.
	Reason string `json:"reason,omitempty"`
}

// SessionsResponse wraps GET /v1/sessions.
type SessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// PerformanceTargets is returned by GET /v1/performance/targets.
type PerformanceTargets struct {
	// Target time-to-first-token in milliseconds.
	// example: 100
	TargetTTFTMs float64 `json:"target_ttft_ms" example:"100"`
	// Target tokens per second.
	// example: 50
	TargetTPS float64 `json:"target_tps" example:"50"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active hardware profile id.
	// example: rtx_4000_pro
	SKUID string `json:"sku_id"`
	// Bytes usable for KV-caches (total memory x threshold).
	UsableBytes int64 `json:"usable_bytes"`
	// Bytes currently reserved by admitted and running sessions.
	ReservedBytes int64 `json:"reserved_bytes"`
	// UsableBytes minus ReservedBytes.
	HeadroomBytes int64 `json:"headroom_bytes"`
	// Sessions currently admitted or running.
	ActiveSessions int `json:"active_sessions"`
	// Requests waiting in the admission queue.
	QueueDepth int `json:"queue_depth"`
	// Maximum queue depth before QueueFull rejections.
	MaxQueueDepth int `json:"max_queue_depth"`
	// All known sessions, including terminal ones not yet pruned.
	Sessions []SessionStatus `json:"sessions"`
	// Monotonic totals since process start.
	AdmissionsTotal    uint64 `json:"admissions_total"`
	EvictionsTotal     uint64 `json:"evictions_total"`
	RejectionsTotal    uint64 `json:"rejections_total"`
	QueueTimeoutsTotal uint64 `json:"queue_timeouts_total"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
