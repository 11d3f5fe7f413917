package profile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Well-known SKU ids. GenericSKU is the fallback when detection fails.
const (
	SKUJetsonThor = "jetson_thor"
	SKURTX4000Pro = "rtx_4000_pro"
	GenericSKU    = "generic"
)

const (
	gib = int64(1) << 30
)

// Catalog is the set of named profiles loaded at startup.
type Catalog struct {
	profiles map[string]Profile
}

// Defaults returns the compiled-in catalog covering both appliance SKUs and
// the generic fallback.
func Defaults() Catalog {
	return Catalog{profiles: map[string]Profile{
		SKUJetsonThor: {
			SKUID:                 SKUJetsonThor,
			TotalMemoryBytes:      64 * gib, // unified memory
			MemoryThreshold:       0.4,
			MaxConcurrentSessions: 20,
			MaxQueueDepth:         16,
			DefaultKVCacheDtype:   DtypeFP8,
			TokensPerBlock:        32,
			SchedulerPolicy:       PolicyMaxUtilization,
			TargetTTFTMs:          150,
			TargetTPS:             40,
		},
		SKURTX4000Pro: {
			SKUID:                 SKURTX4000Pro,
			TotalMemoryBytes:      20 * gib,
			MemoryThreshold:       0.8,
			MaxConcurrentSessions: 8,
			MaxQueueDepth:         5,
			DefaultKVCacheDtype:   DtypeFP16,
			TokensPerBlock:        16,
			SchedulerPolicy:       PolicyGuaranteedNoEvict,
			TargetTTFTMs:          100,
			TargetTPS:             50,
		},
		GenericSKU: {
			SKUID:                 GenericSKU,
			TotalMemoryBytes:      16 * gib,
			MemoryThreshold:       0.5,
			MaxConcurrentSessions: 4,
			MaxQueueDepth:         8,
			DefaultKVCacheDtype:   DtypeFP16,
			TokensPerBlock:        16,
			SchedulerPolicy:       PolicyGuaranteedNoEvict,
			TargetTTFTMs:          250,
			TargetTPS:             20,
		},
	}}
}

type catalogFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadFile reads a sku_profiles.yaml and merges it over the compiled-in
// defaults. File entries win; unnamed SKUs keep their defaults. Every
// resulting profile is validated.
func LoadFile(path string) (Catalog, error) {
	cat := Defaults()
	if path == "" {
		return cat, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read profile catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Catalog{}, fmt.Errorf("parse profile catalog %s: %w", path, err)
	}
	for sku, p := range f.Profiles {
		if p.SKUID == "" {
			p.SKUID = sku
		}
		if p.SKUID != sku {
			return Catalog{}, fmt.Errorf("profile catalog: key %q disagrees with sku_id %q", sku, p.SKUID)
		}
		cat.profiles[sku] = p
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Get returns the profile for a SKU id.
func (c Catalog) Get(sku string) (Profile, bool) {
	p, ok := c.profiles[sku]
	return p, ok
}

// SKUs lists catalog keys in sorted order.
func (c Catalog) SKUs() []string {
	out := make([]string, 0, len(c.profiles))
	for k := range c.profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks every profile in the catalog and requires the generic
// fallback to exist.
func (c Catalog) Validate() error {
	if _, ok := c.profiles[GenericSKU]; !ok {
		return fmt.Errorf("profile catalog: missing %q fallback profile", GenericSKU)
	}
	for _, sku := range c.SKUs() {
		if err := c.profiles[sku].Validate(); err != nil {
			return err
		}
	}
	return nil
}
