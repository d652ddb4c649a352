package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/integrators"
	"github.com/san-kum/qshpost/internal/tracing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Trace.Niter != DefaultNiter {
		t.Errorf("expected niter %d, got %d", DefaultNiter, cfg.Trace.Niter)
	}
	if cfg.Circular() != field.DefaultCircular() {
		t.Errorf("expected default circular model, got %+v", cfg.Circular())
	}
	if len(cfg.Points()) != 1 {
		t.Errorf("expected one start point, got %d", len(cfg.Points()))
	}
}

func TestTraceOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trace.Mode = "interpolate"
	cfg.Trace.Parametrization = "length"
	cfg.Trace.OneLength = 2
	cfg.Trace.Method = "rk23"

	opts, err := cfg.TraceOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mode != field.ModeInterpolated {
		t.Errorf("mode = %v, want interpolate", opts.Mode)
	}
	if opts.Parametrization != tracing.ArcLength {
		t.Errorf("parametrization = %v, want length", opts.Parametrization)
	}
	if opts.Solver.Method != integrators.BogackiShampine {
		t.Errorf("method = %v, want rk23", opts.Solver.Method)
	}
	if opts.Solver.RTol != DefaultTol {
		t.Errorf("rtol = %g, want %g", opts.Solver.RTol, DefaultTol)
	}
}

func TestTraceOptionsUnknown(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"mode", func(c *Config) { c.Trace.Mode = "guess" }},
		{"parametrization", func(c *Config) { c.Trace.Parametrization = "time" }},
		{"method", func(c *Config) { c.Trace.Method = "lsoda" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.edit(cfg)
		if _, err := cfg.TraceOptions(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestCurveFitOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.CurveFitOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Orderer != (fourier.NearestNeighbor{Seed: fourier.SeedOutboard}) {
		t.Errorf("unexpected default orderer %#v", opts.Orderer)
	}

	cfg.Fit.Orderer = "angular"
	opts, err = cfg.CurveFitOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Orderer != (fourier.AngularSort{MaxZScore: DefaultMaxZScore}) {
		t.Errorf("unexpected orderer %#v", opts.Orderer)
	}

	cfg.Fit.Orderer = "random"
	if _, err := cfg.CurveFitOptions(); err == nil {
		t.Error("expected error for unknown orderer")
	}
}

func TestBifurcationOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.BifurcationOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Niter != 10 || opts.IterLine != 6 || opts.Nstep != 4 {
		t.Errorf("unexpected bisection settings %+v", opts)
	}
	if opts.Trace.Solver.RTol != 1e-9 {
		t.Errorf("rtol = %g, want 1e-9", opts.Trace.Solver.RTol)
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Start = []StartPoint{{S: 0.2, Theta: 1}, {S: 0.7, Zeta: 0.5}}
	cfg.Fit.Full = true
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if d := cmp.Diff(cfg, got); d != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", d)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := "trace:\n  niter: 7\nstart:\n  - s: 0.4\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Trace.Niter != 7 {
		t.Errorf("expected niter 7, got %d", cfg.Trace.Niter)
	}
	if cfg.Trace.Nstep != DefaultNstep {
		t.Errorf("unset nstep should keep default, got %d", cfg.Trace.Nstep)
	}
	if len(cfg.Start) != 1 || cfg.Start[0].S != 0.4 {
		t.Errorf("unexpected start points %+v", cfg.Start)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("trace", "quick")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Trace.Niter != 32 {
		t.Errorf("expected niter 32, got %d", cfg.Trace.Niter)
	}
	if cfg.Fit.Mpol != DefaultMpol {
		t.Errorf("preset should keep default mpol, got %d", cfg.Fit.Mpol)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("trace", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "quick") != nil {
		t.Error("expected nil for nonexistent group")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("bifurcation")
	sort.Strings(presets)
	if d := cmp.Diff([]string{"coarse", "fine"}, presets); d != "" {
		t.Errorf("presets mismatch (-want +got):\n%s", d)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent group")
	}
}

func TestPresetsValid(t *testing.T) {
	for group, presets := range Presets {
		for name, cfg := range presets {
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", group, name, err)
			}
		}
	}
}
