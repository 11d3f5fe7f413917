package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"forged/internal/engine"
	"forged/internal/profile"
)

// rtxProfile mirrors the discrete-GPU SKU with power-of-two sizes so the
// arithmetic in assertions stays exact: fp16 at 4096 tokens prices to
// exactly 2 GiB, and the usable budget fits exactly eight such sessions.
func rtxProfile() profile.Profile {
	return profile.Profile{
		SKUID:                 "rtx_4000_pro",
		TotalMemoryBytes:      20 << 30,
		MemoryThreshold:       0.8,
		MaxConcurrentSessions: 8,
		MaxQueueDepth:         5,
		DefaultKVCacheDtype:   profile.DtypeFP16,
		TokensPerBlock:        16,
		SchedulerPolicy:       profile.PolicyGuaranteedNoEvict,
		TargetTTFTMs:          100,
		TargetTPS:             50,
	}
}

// thorProfile mirrors the unified-memory SKU running max_utilization.
func thorProfile() profile.Profile {
	return profile.Profile{
		SKUID:                 "jetson_thor",
		TotalMemoryBytes:      64 << 30,
		MemoryThreshold:       0.4,
		MaxConcurrentSessions: 20,
		MaxQueueDepth:         16,
		DefaultKVCacheDtype:   profile.DtypeFP8,
		TokensPerBlock:        32,
		SchedulerPolicy:       profile.PolicyMaxUtilization,
		TargetTTFTMs:          150,
		TargetTPS:             40,
	}
}

// testClock is safe for concurrent use; dispatch goroutines read it while
// the test advances it.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (tc *testClock) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

func (tc *testClock) Advance(d time.Duration) {
	tc.mu.Lock()
	tc.now = tc.now.Add(d)
	tc.mu.Unlock()
}

// newTestController builds a controller with a manual-completion engine and
// a fake clock, without the background sweep.
func newTestController(t *testing.T, p profile.Profile, cfg Config) (*Controller, *engine.Simulated, *testClock) {
	t.Helper()
	eng := engine.NewSimulated()
	cfg.Profile = p
	cfg.Engine = eng
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clk := newTestClock()
	c.now = clk.Now
	return c, eng, clk
}

func mustAdmit(t *testing.T, c *Controller, req Request) string {
	t.Helper()
	out, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Queued {
		t.Fatalf("expected admission, got queued at position %d", out.Position)
	}
	return out.SessionID
}

// waitState polls until the session reaches the wanted state; dispatch to
// the engine runs on its own goroutine, so Admitted -> Running is async.
func waitState(t *testing.T, c *Controller, id string, want SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := c.GetSession(id); ok && s.State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	s, _ := c.GetSession(id)
	t.Fatalf("session %s never reached %s (state %s)", id, want, s.State)
}
