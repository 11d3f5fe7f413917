package detect

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"forged/internal/profile"
)

func fakeDetector(smiOut string, smiErr error, files map[string]string) *NvidiaSMI {
	return &NvidiaSMI{
		run: func() (string, error) { return smiOut, smiErr },
		readFile: func(path string) ([]byte, error) {
			if c, ok := files[path]; ok {
				return []byte(c), nil
			}
			return nil, os.ErrNotExist
		},
	}
}

func TestDetectSKUFromGPUName(t *testing.T) {
	cases := []struct {
		name string
		out  string
		want string
	}{
		{"thor", "Jetson AGX Thor, 65536", profile.SKUJetsonThor},
		{"rtx pro", "NVIDIA RTX PRO 4000 Blackwell, 20480", profile.SKURTX4000Pro},
		{"rtx 4000", "RTX 4000 Ada, 20480", profile.SKURTX4000Pro},
		{"dev gpu", "Tesla P40, 24576", profile.GenericSKU},
		{"consumer", "NVIDIA GeForce RTX 3060, 12288", profile.GenericSKU},
	}
	for _, tc := range cases {
		d := fakeDetector(tc.out, nil, nil)
		got, err := d.DetectSKU()
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDetectSKUJetsonIndicators(t *testing.T) {
	d := fakeDetector("", errors.New("nvidia-smi not found"), map[string]string{
		"/proc/device-tree/compatible": "nvidia,tegra234",
	})
	got, err := d.DetectSKU()
	if err != nil || got != profile.SKUJetsonThor {
		t.Fatalf("got %s, %v", got, err)
	}
	d = fakeDetector("", errors.New("no smi"), map[string]string{
		"/etc/nv_tegra_release": "# R36 (release)",
	})
	got, err = d.DetectSKU()
	if err != nil || got != profile.SKUJetsonThor {
		t.Fatalf("got %s, %v", got, err)
	}
}

func TestDetectSKUErrors(t *testing.T) {
	d := fakeDetector("", errors.New("exec failed"), nil)
	if _, err := d.DetectSKU(); err == nil {
		t.Fatalf("expected error when nvidia-smi fails off-Jetson")
	}
	d = fakeDetector("   ", nil, nil)
	if _, err := d.DetectSKU(); err == nil {
		t.Fatalf("expected error on empty GPU name")
	}
}

type testLog struct{ lines []string }

func (l *testLog) Printf(format string, v ...any) { l.lines = append(l.lines, fmt.Sprintf(format, v...)) }

func TestResolveProfileForcedSKU(t *testing.T) {
	cat := profile.Defaults()
	p, err := ResolveProfile(cat, fakeDetector("", errors.New("unused"), nil), Options{ForcedSKU: profile.SKUJetsonThor, Autodetect: true}, nil)
	if err != nil || p.SKUID != profile.SKUJetsonThor {
		t.Fatalf("got %s, %v", p.SKUID, err)
	}
	if _, err := ResolveProfile(cat, Fixed("x"), Options{ForcedSKU: "unknown_sku"}, nil); err == nil {
		t.Fatalf("expected error for forced sku not in catalog")
	}
}

func TestResolveProfileFallsBackToGeneric(t *testing.T) {
	cat := profile.Defaults()
	lg := &testLog{}
	// Detection failure never aborts startup.
	p, err := ResolveProfile(cat, fakeDetector("", errors.New("boom"), nil), Options{Autodetect: true}, lg)
	if err != nil || p.SKUID != profile.GenericSKU {
		t.Fatalf("got %s, %v", p.SKUID, err)
	}
	if len(lg.lines) == 0 {
		t.Fatalf("fallback not logged")
	}
	// Detector naming an unknown SKU falls back the same way.
	p, err = ResolveProfile(cat, Fixed("prototype_board"), Options{Autodetect: true}, lg)
	if err != nil || p.SKUID != profile.GenericSKU {
		t.Fatalf("got %s, %v", p.SKUID, err)
	}
}

func TestResolveProfileAutodetectDisabled(t *testing.T) {
	cat := profile.Defaults()
	p, err := ResolveProfile(cat, Fixed(profile.SKUJetsonThor), Options{Autodetect: false}, nil)
	if err != nil || p.SKUID != profile.GenericSKU {
		t.Fatalf("got %s, %v: detector must not run when autodetect is off", p.SKUID, err)
	}
}
