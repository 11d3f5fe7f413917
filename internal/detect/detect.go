package detect

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"forged/internal/profile"
)

// Detector classifies the local device into a SKU id. Implementations must
// not cache across processes; detection runs exactly once at startup.
type Detector interface {
	DetectSKU() (string, error)
}

// Fixed is a detector that always returns a preconfigured SKU id.
type Fixed string

func (f Fixed) DetectSKU() (string, error) { return string(f), nil }

// NvidiaSMI detects the SKU by querying nvidia-smi and matching the GPU
// name, with a Tegra device-tree check for the Jetson platform.
type NvidiaSMI struct {
	// run executes nvidia-smi and returns its stdout; overridable in tests.
	run func() (string, error)
	// readFile reads platform indicator files; overridable in tests.
	readFile func(string) ([]byte, error)
}

// NewNvidiaSMI returns the production detector.
func NewNvidiaSMI() *NvidiaSMI {
	return &NvidiaSMI{run: runNvidiaSMI, readFile: os.ReadFile}
}

func runNvidiaSMI() (string, error) {
	cmd := exec.Command("nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("nvidia-smi: %w", err)
	}
	return string(out), nil
}

// tegraIndicators are files whose presence marks a Jetson platform.
var tegraIndicators = []string{
	"/etc/nv_tegra_release",
	"/proc/device-tree/compatible",
}

func (d *NvidiaSMI) isJetson() bool {
	for _, p := range tegraIndicators {
		b, err := d.readFile(p)
		if err != nil {
			continue
		}
		s := strings.ToLower(string(b))
		if p == "/etc/nv_tegra_release" || strings.Contains(s, "tegra") || strings.Contains(s, "jetson") {
			return true
		}
	}
	return false
}

// DetectSKU maps the GPU name to a SKU id. Unknown GPUs map to the generic
// profile; errors are returned so callers can log before falling back.
func (d *NvidiaSMI) DetectSKU() (string, error) {
	if d.isJetson() {
		return profile.SKUJetsonThor, nil
	}
	out, err := d.run()
	if err != nil {
		return "", err
	}
	name := strings.ToLower(strings.TrimSpace(strings.SplitN(out, ",", 2)[0]))
	if name == "" {
		return "", fmt.Errorf("nvidia-smi returned no GPU name")
	}
	switch {
	case strings.Contains(name, "thor"):
		return profile.SKUJetsonThor, nil
	case strings.Contains(name, "rtx") && (strings.Contains(name, "pro") || strings.Contains(name, "4000")):
		return profile.SKURTX4000Pro, nil
	default:
		return profile.GenericSKU, nil
	}
}

// Options captures the startup-time selection inputs. Both overrides come
// from the immutable service config, never from ambient state.
type Options struct {
	// ForcedSKU skips detection entirely when non-empty.
	ForcedSKU string
	// Autodetect enables the detector; when false the generic profile is
	// used unless ForcedSKU is set.
	Autodetect bool
}

// Logger is the minimal logging surface ResolveProfile needs.
type Logger interface {
	Printf(format string, v ...any)
}

// ResolveProfile picks the active profile once at startup. Detection
// failures never abort startup; they fall back to the generic profile.
func ResolveProfile(cat profile.Catalog, det Detector, opts Options, logf Logger) (profile.Profile, error) {
	if opts.ForcedSKU != "" {
		p, ok := cat.Get(opts.ForcedSKU)
		if !ok {
			return profile.Profile{}, fmt.Errorf("forced sku %q not in profile catalog", opts.ForcedSKU)
		}
		return p, nil
	}
	sku := profile.GenericSKU
	if opts.Autodetect {
		start := time.Now()
		detected, err := det.DetectSKU()
		if err != nil {
			if logf != nil {
				logf.Printf("hardware detection failed after %s, falling back to %s: %v", time.Since(start), profile.GenericSKU, err)
			}
		} else {
			sku = detected
		}
	}
	p, ok := cat.Get(sku)
	if !ok {
		// Detector returned a SKU the catalog does not know; same fallback
		// as a detection failure.
		if logf != nil {
			logf.Printf("detected sku %q not in profile catalog, falling back to %s", sku, profile.GenericSKU)
		}
		p, ok = cat.Get(profile.GenericSKU)
		if !ok {
			return profile.Profile{}, fmt.Errorf("profile catalog has no %q fallback", profile.GenericSKU)
		}
	}
	return p, nil
}
