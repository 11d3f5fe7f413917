package profile

import "fmt"

// KVCacheDtype selects the precision of per-token attention state.
type KVCacheDtype string

const (
	DtypeFP32 KVCacheDtype = "fp32"
	DtypeFP16 KVCacheDtype = "fp16"
	DtypeFP8  KVCacheDtype = "fp8"
)

// SchedulerPolicy names the admission behavior under memory pressure.
type SchedulerPolicy string

const (
	// PolicyGuaranteedNoEvict never interrupts an in-flight session.
	PolicyGuaranteedNoEvict SchedulerPolicy = "guaranteed_no_evict"
	// PolicyMaxUtilization evicts lower-priority sessions to admit new work.
	PolicyMaxUtilization SchedulerPolicy = "max_utilization"
)

// Profile is the immutable per-SKU tuning record. Exactly one profile is
// selected at process start; switching profiles requires a restart.
type Profile struct {
	SKUID                 string          `json:"sku_id" yaml:"sku_id"`
	TotalMemoryBytes      int64           `json:"total_memory_bytes" yaml:"total_memory_bytes"`
	MemoryThreshold       float64         `json:"memory_threshold" yaml:"memory_threshold"`
	MaxConcurrentSessions int             `json:"max_concurrent_sessions" yaml:"max_concurrent_sessions"`
	MaxQueueDepth         int             `json:"max_queue_depth" yaml:"max_queue_depth"`
	DefaultKVCacheDtype   KVCacheDtype    `json:"default_kv_cache_dtype" yaml:"default_kv_cache_dtype"`
	TokensPerBlock        int             `json:"tokens_per_block" yaml:"tokens_per_block"`
	SchedulerPolicy       SchedulerPolicy `json:"scheduler_policy" yaml:"scheduler_policy"`
	// SLO targets are informational; exposed via the API and metrics but
	// never enforced by the admission path.
	TargetTTFTMs float64 `json:"target_ttft_ms" yaml:"target_ttft_ms"`
	TargetTPS    float64 `json:"target_tps" yaml:"target_tps"`
}

// UsableBytes is the portion of total memory the admission controller may
// hand out as KV-cache reservations.
func (p Profile) UsableBytes() int64 {
	return int64(float64(p.TotalMemoryBytes) * p.MemoryThreshold)
}

// Validate checks numeric ranges and enum values.
func (p Profile) Validate() error {
	if p.SKUID == "" {
		return fmt.Errorf("profile: sku_id is required")
	}
	if p.TotalMemoryBytes < 0 {
		return fmt.Errorf("profile %s: total_memory_bytes must be >= 0", p.SKUID)
	}
	if p.MemoryThreshold <= 0 || p.MemoryThreshold > 1 {
		return fmt.Errorf("profile %s: memory_threshold must be in (0,1], got %v", p.SKUID, p.MemoryThreshold)
	}
	if p.MaxConcurrentSessions < 1 {
		return fmt.Errorf("profile %s: max_concurrent_sessions must be >= 1", p.SKUID)
	}
	if p.MaxQueueDepth < 0 {
		return fmt.Errorf("profile %s: max_queue_depth must be >= 0", p.SKUID)
	}
	if p.TokensPerBlock <= 0 {
		return fmt.Errorf("profile %s: tokens_per_block must be > 0", p.SKUID)
	}
	switch p.DefaultKVCacheDtype {
	case DtypeFP32, DtypeFP16, DtypeFP8:
	default:
		return fmt.Errorf("profile %s: unknown default_kv_cache_dtype %q", p.SKUID, p.DefaultKVCacheDtype)
	}
	switch p.SchedulerPolicy {
	case PolicyGuaranteedNoEvict, PolicyMaxUtilization:
	default:
		return fmt.Errorf("profile %s: unknown scheduler_policy %q", p.SKUID, p.SchedulerPolicy)
	}
	return nil
}

// ParseDtype validates a request-level dtype override.
func ParseDtype(s string) (KVCacheDtype, error) {
	switch KVCacheDtype(s) {
	case DtypeFP32, DtypeFP16, DtypeFP8:
		return KVCacheDtype(s), nil
	default:
		return "", fmt.Errorf("unknown kv_cache_dtype %q", s)
	}
}
