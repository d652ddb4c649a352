package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/bifurcation"
	"github.com/san-kum/qshpost/internal/config"
	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/export"
	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/flux"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/solverlog"
	"github.com/san-kum/qshpost/internal/storage"
	"github.com/san-kum/qshpost/internal/tracing"
	"github.com/san-kum/qshpost/internal/transform"
	"github.com/san-kum/qshpost/internal/viz"
)

func buildTracer(cfg *config.Config) (*tracing.Tracer, field.Circular, error) {
	model := cfg.Circular()
	var (
		grid *field.Grid
		err  error
	)
	if gridFile != "" {
		grid, err = storage.ReadGrid(gridFile)
	} else {
		grid, err = field.Sample(cfg.Grid, model)
	}
	if err != nil {
		return nil, model, fmt.Errorf("grid: %w", err)
	}
	if grid.NFP() != model.NFP() {
		slog.Warn("grid and model field periods differ", "grid", grid.NFP(), "model", model.NFP())
	}
	return tracing.New(grid, model), model, nil
}

func traceLines(ctx context.Context, cfg *config.Config, title string) ([]*tracing.FieldLine, field.Circular, error) {
	tracer, model, err := buildTracer(cfg)
	if err != nil {
		return nil, model, err
	}
	opts, err := cfg.TraceOptions()
	if err != nil {
		return nil, model, err
	}
	pts := cfg.Points()
	slog.Info("tracing", "lines", len(pts), "niter", opts.Niter, "nstep", opts.Nstep,
		"mode", opts.Mode, "param", opts.Parametrization, "method", opts.Solver.Method)

	start := time.Now()
	var lines []*tracing.FieldLine
	if useTUI {
		err = viz.RunProgress(ctx, title, len(pts), opts.Niter, func(ctx context.Context, obs tracing.Observer) error {
			opts.Observer = obs
			var err error
			lines, err = tracer.Trace(ctx, pts, opts)
			return err
		})
	} else {
		lines, err = tracer.Trace(ctx, pts, opts)
	}
	if err != nil {
		var te *equil.TraceError
		if errors.As(err, &te) {
			slog.Error("trace failed", "line", te.Line, "period", te.Period, "step", te.Step, "point", te.Point)
		}
		return nil, model, err
	}
	slog.Debug("traced", "elapsed", time.Since(start))
	return lines, model, nil
}

func openRun(cfg *config.Config, command string) (*storage.Run, error) {
	st := storage.New(cfg.Store)
	if err := st.Init(); err != nil {
		return nil, err
	}
	run, err := st.Create(command)
	if err != nil {
		return nil, err
	}
	run.SetParam("mode", cfg.Trace.Mode)
	run.SetParam("param", cfg.Trace.Parametrization)
	run.SetParam("method", cfg.Trace.Method)
	run.SetParam("niter", strconv.Itoa(cfg.Trace.Niter))
	run.SetParam("nstep", strconv.Itoa(cfg.Trace.Nstep))
	return run, nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	lines, _, err := traceLines(cmd.Context(), cfg, "trace")
	if err != nil {
		return err
	}

	run, err := openRun(cfg, "trace")
	if err != nil {
		return err
	}
	if err := run.SaveLines(lines); err != nil {
		return err
	}
	if err := run.Close(); err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", run.Meta.ID)
	for i, l := range lines {
		last := l.At(l.Len() - 1)
		fmt.Println(viz.Summary(fmt.Sprintf("line %d", i),
			viz.Float("s0", l.Start().S),
			viz.Row{Label: "samples", Value: strconv.Itoa(l.Len())},
			viz.Float("s end", last.S),
			viz.Float("theta end", last.Theta),
			viz.Float("zeta end", last.Zeta)))
	}
	return nil
}

func runAxis(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "axis")
	if err != nil {
		return err
	}
	if len(cfg.Start) != 1 {
		return fmt.Errorf("axis fit needs exactly one start point, got %d", len(cfg.Start))
	}
	lines, model, err := traceLines(cmd.Context(), cfg, "axis")
	if err != nil {
		return err
	}
	xn, err := axis.ToroidalModes(cfg.Fit.Ntor, model.NFP())
	if err != nil {
		return err
	}
	a, err := axis.Fit(xn, lines[0], cfg.AxisFitOptions())
	if err != nil {
		return err
	}

	run, err := openRun(cfg, "axis")
	if err != nil {
		return err
	}
	run.SetParam("ntor", strconv.Itoa(cfg.Fit.Ntor))
	if err := run.SaveAxis("axis", a); err != nil {
		return err
	}
	if err := run.Close(); err != nil {
		return err
	}
	if axisOut != "" {
		if err := storage.WriteAxis(axisOut, a); err != nil {
			return err
		}
	}

	rows := make([]viz.Row, 0, 2*len(xn))
	rac, zas := a.RAC(), a.ZAS()
	for i, n := range xn {
		rows = append(rows,
			viz.Float(fmt.Sprintf("rac[%d]", n), rac[i]),
			viz.Float(fmt.Sprintf("zas[%d]", n), zas[i]))
	}
	fmt.Printf("run id: %s\n", run.Meta.ID)
	fmt.Println(viz.Summary("axis", rows...))
	return nil
}

func runCross(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "cross")
	if err != nil {
		return err
	}
	opts, err := cfg.CurveFitOptions()
	if err != nil {
		return err
	}
	fit := fourier.FitFirstCross
	switch cross {
	case "first":
	case "second":
		fit = fourier.FitSecondCross
	default:
		return fmt.Errorf("unknown cross method: %s (available: first, second)", cross)
	}

	lines, _, err := traceLines(cmd.Context(), cfg, "cross")
	if err != nil {
		return err
	}
	run, err := openRun(cfg, "cross")
	if err != nil {
		return err
	}
	run.SetParam("mpol", strconv.Itoa(cfg.Fit.Mpol))
	run.SetParam("cross", cross)

	for i, l := range lines {
		c, err := fit(l, cfg.Fit.Mpol, opts)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		if err := run.SaveCurve(fmt.Sprintf("cross_%d", i), c); err != nil {
			return err
		}
		rc, zs := c.RC(), c.ZS()
		rows := make([]viz.Row, 0, 2*c.Modes())
		for j, m := range c.XM() {
			rows = append(rows, viz.Float(fmt.Sprintf("rc[%d]", m), rc[j]), viz.Float(fmt.Sprintf("zs[%d]", m), zs[j]))
		}
		fmt.Println(viz.Summary(fmt.Sprintf("cross %d (s0=%.6g)", i, l.Start().S), rows...))
	}
	if err := run.Close(); err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", run.Meta.ID)
	return nil
}

func runIota(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	var ax *axis.Axis
	if axisFile != "" {
		if ax, err = storage.ReadAxis(axisFile); err != nil {
			return err
		}
	}
	lines, model, err := traceLines(cmd.Context(), cfg, "iota")
	if err != nil {
		return err
	}

	for i, l := range lines {
		direct, err := transform.Direct(l)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		rows := []viz.Row{viz.Float("s0", l.Start().S), viz.Float("direct", direct)}
		if ax != nil {
			rel, err := transform.AxisRelative(l, ax)
			if err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			rows = append(rows, viz.Float("axis relative", rel))
		}
		if gridFile == "" {
			rows = append(rows, viz.Float("model", model.IotaAt(l.Start().S)))
		}
		fmt.Println(viz.Summary(fmt.Sprintf("iota %d", i), rows...))
		if chart {
			fmt.Println(viz.SeriesChart(runningIota(l), fmt.Sprintf("iota of line %d per period", i)))
		}
	}
	return nil
}

// runningIota is the direct estimate using the first k+1 section points.
func runningIota(l *tracing.FieldLine) []float64 {
	sec := l.Poincare()
	out := make([]float64, 0, len(sec))
	for _, smp := range sec[1:] {
		out = append(out, (smp.Theta-sec[0].Theta)/(smp.Zeta-sec[0].Zeta))
	}
	return out
}

func runBifurcation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "bifurcation")
	if err != nil {
		return err
	}
	first, err := storage.ReadAxis(firstAxis)
	if err != nil {
		return fmt.Errorf("first axis: %w", err)
	}
	second, err := storage.ReadAxis(secondAxis)
	if err != nil {
		return fmt.Errorf("second axis: %w", err)
	}
	tracer, _, err := buildTracer(cfg)
	if err != nil {
		return err
	}
	opts, err := cfg.BifurcationOptions()
	if err != nil {
		return err
	}
	opts.Observer = func(st bifurcation.Step) {
		slog.Info("bisection", "s", st.MidS, "R", st.MidR, "bracket", st.Bracket.String())
	}

	res, err := bifurcation.Locate(cmd.Context(), first, second, tracer, opts)
	if err != nil {
		var te *bifurcation.TopologyError
		if errors.As(err, &te) {
			slog.Error("orbit left the bracket", "iteration", te.Iteration, "s", te.MidS, "R", te.MidR)
		}
		return err
	}

	run, err := openRun(cfg, "bifurcation")
	if err != nil {
		return err
	}
	run.SetParam("first", firstAxis)
	run.SetParam("second", secondAxis)
	run.SetResult("left", res.Bracket.Left)
	run.SetResult("right", res.Bracket.Right)
	if err := run.Close(); err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", run.Meta.ID)
	fmt.Println(viz.Summary("bifurcation",
		viz.Float("left", res.Bracket.Left),
		viz.Float("right", res.Bracket.Right),
		viz.Float("width", res.Bracket.Width()),
		viz.Float("first R", res.FirstR),
		viz.Float("second R", res.SecondR)))
	if plot := viz.BracketChart(res.Steps); plot != "" {
		fmt.Println(plot)
	}
	return nil
}

func runWrithe(cmd *cobra.Command, args []string) error {
	a, err := storage.ReadAxis(args[0])
	if err != nil {
		return err
	}
	w, err := a.Writhe(quadPts)
	if err != nil {
		return err
	}
	fmt.Println(viz.Summary("writhe",
		viz.Float("value", w.Value),
		viz.Float("error", w.ErrorEstimate)))
	return nil
}

func runFlux(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	fitOpts, err := cfg.CurveFitOptions()
	if err != nil {
		return err
	}
	lines, model, err := traceLines(cmd.Context(), cfg, "flux")
	if err != nil {
		return err
	}

	for i, l := range lines {
		sc, err := flux.FitSCurve(l, cfg.Fit.Mpol, fitOpts.Settings)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		phi, err := flux.Toroidal(model, sc, quadPts)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		fmt.Println(viz.Summary(fmt.Sprintf("flux %d", i),
			viz.Float("s0", l.Start().S),
			viz.Float("toroidal flux", phi),
			viz.Float("model", model.ToroidalFlux(l.Start().S))))
	}

	if edge {
		p, err := flux.PinchReversal(model, 1, model.A, model.ToroidalFlux(1), quadPts)
		if err != nil {
			return err
		}
		fmt.Println(viz.Summary("edge",
			viz.Float("pinch", p.Pinch),
			viz.Float("reversal", p.Reversal)))
	}
	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	start := time.Now()
	grid, err := field.Sample(cfg.Grid, cfg.Circular())
	if err != nil {
		return err
	}
	if err := storage.WriteGrid(gridOut, grid); err != nil {
		return err
	}
	sp := grid.Spec()
	slog.Debug("grid written", "elapsed", time.Since(start))
	fmt.Println(viz.Summary("grid "+gridOut,
		viz.Row{Label: "nodes", Value: fmt.Sprintf("%d x %d x %d", sp.NS, sp.NTheta, sp.NZeta)},
		viz.Row{Label: "s range", Value: fmt.Sprintf("[%g, %g]", sp.SMin, sp.SMax)},
		viz.Row{Label: "nfp", Value: strconv.Itoa(sp.NFP)}))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.Store).List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tTIME\tMODE\tMETHOD\tFILES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			run.ID,
			run.Command,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Params["mode"],
			run.Params["method"],
			len(run.Files),
		)
	}

	return w.Flush()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "trace")
	if err != nil {
		return err
	}
	st := storage.New(cfg.Store)
	out := cmd.OutOrStdout()
	switch {
	case curveName != "":
		c, err := st.LoadCurve(args[0], curveName)
		if err != nil {
			return err
		}
		return export.WriteCurve(out, c, curvePoints, 1)
	case axisName != "":
		a, err := st.LoadAxis(args[0], axisName)
		if err != nil {
			return err
		}
		return export.WriteCurve(out, a, curvePoints, 1)
	}

	lines, err := st.LoadLines(args[0])
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no data to export")
	}
	return export.WriteLines(out, lines, poincare)
}

func checkLog(cmd *cobra.Command, args []string) error {
	report, err := solverlog.Scan(args)
	if err != nil {
		return err
	}

	out := os.Stdout
	if logOut != "" {
		f, err := os.Create(logOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if _, err := report.WriteTo(out); err != nil {
		return err
	}

	if successes != "" {
		f, err := os.Create(successes)
		if err != nil {
			return err
		}
		if err := report.WriteSuccesses(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	ok := len(report.Successes())
	fmt.Fprintf(os.Stderr, "%s %d of %d cases\n", viz.Status(ok == len(report.Cases)), ok, len(report.Cases))
	return nil
}
