package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	cat := Defaults()
	if err := cat.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, sku := range []string{SKUJetsonThor, SKURTX4000Pro, GenericSKU} {
		if _, ok := cat.Get(sku); !ok {
			t.Fatalf("missing default profile %s", sku)
		}
	}
}

func TestDefaultPoliciesPerSKU(t *testing.T) {
	cat := Defaults()
	thor, _ := cat.Get(SKUJetsonThor)
	if thor.SchedulerPolicy != PolicyMaxUtilization {
		t.Fatalf("thor policy = %s", thor.SchedulerPolicy)
	}
	rtx, _ := cat.Get(SKURTX4000Pro)
	if rtx.SchedulerPolicy != PolicyGuaranteedNoEvict {
		t.Fatalf("rtx policy = %s", rtx.SchedulerPolicy)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "sku_profiles.yaml", `
profiles:
  rtx_4000_pro:
    total_memory_bytes: 20000000000
    memory_threshold: 0.8
    max_concurrent_sessions: 8
    max_queue_depth: 5
    default_kv_cache_dtype: fp16
    tokens_per_block: 16
    scheduler_policy: guaranteed_no_evict
    target_ttft_ms: 100
    target_tps: 50
`)
	cat, err := LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rtx, _ := cat.Get(SKURTX4000Pro)
	if rtx.TotalMemoryBytes != 20000000000 {
		t.Fatalf("override lost: %d", rtx.TotalMemoryBytes)
	}
	// SKUs the file does not mention keep compiled-in values.
	if _, ok := cat.Get(SKUJetsonThor); !ok {
		t.Fatalf("default jetson_thor lost after merge")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	d := t.TempDir()
	bad := writeTempFile(t, d, "bad.yaml", `
profiles:
  rtx_4000_pro:
    memory_threshold: 1.5
    max_concurrent_sessions: 8
    max_queue_depth: 5
    default_kv_cache_dtype: fp16
    tokens_per_block: 16
    scheduler_policy: guaranteed_no_evict
`)
	if _, err := LoadFile(bad); err == nil {
		t.Fatalf("expected validation error for threshold > 1")
	}
	mismatch := writeTempFile(t, d, "mismatch.yaml", `
profiles:
  rtx_4000_pro:
    sku_id: something_else
`)
	if _, err := LoadFile(mismatch); err == nil {
		t.Fatalf("expected error for key/sku_id disagreement")
	}
	if _, err := LoadFile(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFileEmptyPathUsesDefaults(t *testing.T) {
	cat, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.SKUs()) != 3 {
		t.Fatalf("skus = %v", cat.SKUs())
	}
}

func TestProfileValidate(t *testing.T) {
	base := func() Profile {
		p, _ := Defaults().Get(GenericSKU)
		return p
	}
	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"empty sku", func(p *Profile) { p.SKUID = "" }},
		{"negative memory", func(p *Profile) { p.TotalMemoryBytes = -1 }},
		{"zero threshold", func(p *Profile) { p.MemoryThreshold = 0 }},
		{"threshold above one", func(p *Profile) { p.MemoryThreshold = 1.01 }},
		{"zero sessions", func(p *Profile) { p.MaxConcurrentSessions = 0 }},
		{"negative queue", func(p *Profile) { p.MaxQueueDepth = -1 }},
		{"zero block", func(p *Profile) { p.TokensPerBlock = 0 }},
		{"bad dtype", func(p *Profile) { p.DefaultKVCacheDtype = "int4" }},
		{"bad policy", func(p *Profile) { p.SchedulerPolicy = "best_effort" }},
	}
	for _, tc := range cases {
		p := base()
		tc.mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
}

func TestUsableBytes(t *testing.T) {
	p := Profile{TotalMemoryBytes: 1000, MemoryThreshold: 0.8}
	if got := p.UsableBytes(); got != 800 {
		t.Fatalf("usable = %d, want 800", got)
	}
}

func TestParseDtype(t *testing.T) {
	for _, s := range []string{"fp32", "fp16", "fp8"} {
		if _, err := ParseDtype(s); err != nil {
			t.Errorf("ParseDtype(%s): %v", s, err)
		}
	}
	if _, err := ParseDtype("bf16"); err == nil {
		t.Fatalf("expected error for unsupported dtype")
	}
}
