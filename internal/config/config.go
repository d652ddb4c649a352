package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/bifurcation"
	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/integrators"
	"github.com/san-kum/qshpost/internal/lsq"
	"github.com/san-kum/qshpost/internal/tracing"
)

const (
	DefaultNiter     = 128
	DefaultNstep     = 32
	DefaultTol       = 1e-10
	DefaultMpol      = 8
	DefaultNtor      = 4
	DefaultGridNS    = 65
	DefaultGridNT    = 64
	DefaultGridNZ    = 16
	DefaultStoreDir  = ".qshpost"
	DefaultMaxZScore = 3.0
)

type Config struct {
	Model       ModelConfig       `yaml:"model"`
	Grid        field.GridSpec    `yaml:"grid"`
	Start       []StartPoint      `yaml:"start"`
	Trace       TraceConfig       `yaml:"trace"`
	Fit         FitConfig         `yaml:"fit"`
	Bifurcation BifurcationConfig `yaml:"bifurcation"`
	Store       string            `yaml:"store"`
}

// ModelConfig parametrizes the analytic circular equilibrium.
type ModelConfig struct {
	R0      float64 `yaml:"r0"`
	A       float64 `yaml:"a"`
	B0      float64 `yaml:"b0"`
	Iota    float64 `yaml:"iota"`
	Shear   float64 `yaml:"shear"`
	SMin    float64 `yaml:"smin"`
	Periods int     `yaml:"periods"`
}

type StartPoint struct {
	S     float64 `yaml:"s"`
	Theta float64 `yaml:"theta"`
	Zeta  float64 `yaml:"zeta"`
}

type TraceConfig struct {
	Niter           int     `yaml:"niter"`
	Nstep           int     `yaml:"nstep"`
	Mode            string  `yaml:"mode"`
	Parametrization string  `yaml:"parametrization"`
	OneLength       float64 `yaml:"one_length"`
	Method          string  `yaml:"method"`
	RTol            float64 `yaml:"rtol"`
	ATol            float64 `yaml:"atol"`
	MaxSteps        int     `yaml:"max_steps"`
	Workers         int     `yaml:"workers"`
}

type FitConfig struct {
	Mpol      int     `yaml:"mpol"`
	Ntor      int     `yaml:"ntor"`
	Full      bool    `yaml:"full"`
	Orderer   string  `yaml:"orderer"`
	MaxZScore float64 `yaml:"max_zscore"`
	MaxIter   int     `yaml:"max_iter"`
}

type BifurcationConfig struct {
	Niter    int     `yaml:"niter"`
	IterLine int     `yaml:"iter_line"`
	Nstep    int     `yaml:"nstep"`
	RTol     float64 `yaml:"rtol"`
	ATol     float64 `yaml:"atol"`
}

func DefaultConfig() *Config {
	c := field.DefaultCircular()
	return &Config{
		Model: ModelConfig{
			R0: c.R0, A: c.A, B0: c.B0, Iota: c.Iota, Shear: c.Shear, SMin: c.SMin, Periods: c.Periods,
		},
		Grid: field.GridSpec{
			NS: DefaultGridNS, NTheta: DefaultGridNT, NZeta: DefaultGridNZ,
			SMin: c.SMin, SMax: 1, NFP: c.Periods,
		},
		Start: []StartPoint{{S: 0.5}},
		Trace: TraceConfig{
			Niter:           DefaultNiter,
			Nstep:           DefaultNstep,
			Mode:            field.ModeDirect.String(),
			Parametrization: tracing.Toroidal.String(),
			Method:          integrators.DormandPrince.String(),
			RTol:            DefaultTol,
			ATol:            DefaultTol,
			MaxSteps:        integrators.DefaultOptions().MaxSteps,
			Workers:         1,
		},
		Fit: FitConfig{
			Mpol:      DefaultMpol,
			Ntor:      DefaultNtor,
			Orderer:   "nearest",
			MaxZScore: DefaultMaxZScore,
			MaxIter:   lsq.DefaultSettings().MaxIter,
		},
		Bifurcation: BifurcationConfig{
			Niter: 10, IterLine: 6, Nstep: 4, RTol: 1e-9, ATol: 1e-9,
		},
		Store: DefaultStoreDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Circular() field.Circular {
	m := c.Model
	return field.Circular{R0: m.R0, A: m.A, B0: m.B0, Iota: m.Iota, Shear: m.Shear, SMin: m.SMin, Periods: m.Periods}
}

func (c *Config) Points() equil.Points {
	pts := make(equil.Points, len(c.Start))
	for i, p := range c.Start {
		pts[i] = equil.Point3{S: p.S, Theta: p.Theta, Zeta: p.Zeta}
	}
	return pts
}

func (c *Config) solverOptions(method string, rtol, atol float64) (integrators.Options, error) {
	m, err := integrators.ParseMethod(method)
	if err != nil {
		return integrators.Options{}, err
	}
	opts := integrators.DefaultOptions()
	opts.Method = m
	opts.RTol = rtol
	opts.ATol = atol
	if c.Trace.MaxSteps > 0 {
		opts.MaxSteps = c.Trace.MaxSteps
	}
	return opts, nil
}

func (c *Config) TraceOptions() (tracing.Options, error) {
	t := c.Trace
	mode, err := field.ParseMode(t.Mode)
	if err != nil {
		return tracing.Options{}, err
	}
	param, err := tracing.ParseParametrization(t.Parametrization)
	if err != nil {
		return tracing.Options{}, err
	}
	solver, err := c.solverOptions(t.Method, t.RTol, t.ATol)
	if err != nil {
		return tracing.Options{}, err
	}
	return tracing.Options{
		Niter:           t.Niter,
		Nstep:           t.Nstep,
		Mode:            mode,
		Parametrization: param,
		OneLength:       t.OneLength,
		Solver:          solver,
		Workers:         t.Workers,
	}, nil
}

func (c *Config) settings() lsq.Settings {
	s := lsq.DefaultSettings()
	if c.Fit.MaxIter > 0 {
		s.MaxIter = c.Fit.MaxIter
	}
	return s
}

func (c *Config) CurveFitOptions() (fourier.FitOptions, error) {
	opts := fourier.DefaultFitOptions()
	opts.Full = c.Fit.Full
	opts.Settings = c.settings()
	switch c.Fit.Orderer {
	case "", "nearest":
		opts.Orderer = fourier.NearestNeighbor{Seed: fourier.SeedOutboard}
	case "angular":
		opts.Orderer = fourier.AngularSort{MaxZScore: c.Fit.MaxZScore}
	default:
		return opts, equil.Preconditionf("unknown orderer %q", c.Fit.Orderer)
	}
	return opts, nil
}

func (c *Config) AxisFitOptions() axis.FitOptions {
	return axis.FitOptions{Settings: c.settings()}
}

func (c *Config) BifurcationOptions() (bifurcation.Options, error) {
	trace, err := c.TraceOptions()
	if err != nil {
		return bifurcation.Options{}, err
	}
	b := c.Bifurcation
	trace.Solver, err = c.solverOptions(c.Trace.Method, b.RTol, b.ATol)
	if err != nil {
		return bifurcation.Options{}, err
	}
	return bifurcation.Options{Niter: b.Niter, IterLine: b.IterLine, Nstep: b.Nstep, Trace: trace}, nil
}

// Validate checks the parts every command shares.
func (c *Config) Validate() error {
	if err := c.Circular().Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if _, err := c.TraceOptions(); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if _, err := c.CurveFitOptions(); err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	return nil
}
