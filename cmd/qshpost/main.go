package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/qshpost/internal/config"
)

var (
	dataDir    string
	configFile string
	preset     string
	gridFile   string
	verbose    bool
	useTUI     bool
	// Tracing
	niter     int
	nstep     int
	mode      string
	param     string
	method    string
	rtol      float64
	atol      float64
	workers   int
	oneLength float64
	startS    []float64
	startT    float64
	startZ    float64
	// Fitting
	mpol    int
	ntor    int
	full    bool
	orderer string
	cross   string
	// Bifurcation
	bisect     int
	iterLine   int
	firstAxis  string
	secondAxis string
	// Output
	gridOut     string
	axisOut     string
	logOut      string
	axisFile    string
	quadPts     int
	successes   string
	poincare    bool
	edge        bool
	chart       bool
	curveName   string
	axisName    string
	curvePoints int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Registering flags resets the flag
// variables to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qshpost",
		Short:         "post-processing of stepped-pressure equilibria",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultStoreDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "trace field lines and store them as a run",
		RunE:  runTrace,
	}
	addTraceFlags(traceCmd)

	axisCmd := &cobra.Command{
		Use:   "axis",
		Short: "fit a magnetic axis to a traced line",
		RunE:  runAxis,
	}
	addTraceFlags(axisCmd)
	axisCmd.Flags().IntVar(&ntor, "ntor", config.DefaultNtor, "toroidal modes")
	axisCmd.Flags().StringVarP(&axisOut, "out", "o", "", "also write the axis to this file")

	crossCmd := &cobra.Command{
		Use:   "cross",
		Short: "fit Fourier cross-sections to traced lines",
		RunE:  runCross,
	}
	addTraceFlags(crossCmd)
	crossCmd.Flags().IntVar(&mpol, "mpol", config.DefaultMpol, "poloidal modes")
	crossCmd.Flags().BoolVar(&full, "full", false, "fit cosine and sine terms for both R and Z")
	crossCmd.Flags().StringVar(&orderer, "orderer", "nearest", "point ordering for reconstruction (nearest, angular)")
	crossCmd.Flags().StringVar(&cross, "cross", "first", "fit method (first: parametrized, second: reconstructed)")

	iotaCmd := &cobra.Command{
		Use:   "iota",
		Short: "estimate the rotational transform of traced lines",
		RunE:  runIota,
	}
	addTraceFlags(iotaCmd)
	iotaCmd.Flags().StringVar(&axisFile, "axis", "", "axis file for the axis-relative estimate")
	iotaCmd.Flags().BoolVar(&chart, "chart", false, "plot the running estimate per field period")

	bifurcationCmd := &cobra.Command{
		Use:   "bifurcation",
		Short: "bisect for the separatrix between two axes",
		RunE:  runBifurcation,
	}
	addSolverFlags(bifurcationCmd)
	bifurcationCmd.Flags().StringVar(&firstAxis, "first", "", "inner axis file")
	bifurcationCmd.Flags().StringVar(&secondAxis, "second", "", "outer axis file")
	bifurcationCmd.Flags().IntVar(&bisect, "steps", 10, "bisection steps")
	bifurcationCmd.Flags().IntVar(&iterLine, "iter-line", 6, "field periods per midpoint")
	bifurcationCmd.Flags().IntVar(&nstep, "nstep", 4, "sub-steps per field period")
	_ = bifurcationCmd.MarkFlagRequired("first")
	_ = bifurcationCmd.MarkFlagRequired("second")

	writheCmd := &cobra.Command{
		Use:   "writhe [axis_file]",
		Short: "compute the writhe of a fitted axis",
		Args:  cobra.ExactArgs(1),
		RunE:  runWrithe,
	}
	writheCmd.Flags().IntVar(&quadPts, "points", 64, "quadrature points per dimension")

	fluxCmd := &cobra.Command{
		Use:   "flux",
		Short: "toroidal flux through traced surfaces",
		RunE:  runFlux,
	}
	addTraceFlags(fluxCmd)
	fluxCmd.Flags().IntVar(&mpol, "mpol", config.DefaultMpol, "poloidal modes of the s(θ) fit")
	fluxCmd.Flags().IntVar(&quadPts, "points", 64, "quadrature points")
	fluxCmd.Flags().BoolVar(&edge, "edge", false, "also report pinch and reversal parameters")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "sample the model onto a grid file",
		RunE:  runGrid,
	}
	gridCmd.Flags().StringVarP(&gridOut, "out", "o", "grid.json.zst", "output file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export traced lines, a cross-section or an axis of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().BoolVar(&poincare, "poincare", false, "only one sample per field period")
	exportCSVCmd.Flags().StringVar(&curveName, "curve", "", "export the named cross-section (e.g. cross_0)")
	exportCSVCmd.Flags().StringVar(&axisName, "axis", "", "export the named axis (e.g. axis)")
	exportCSVCmd.Flags().IntVar(&curvePoints, "samples", 128, "angles sampled on a curve or axis")
	exportCSVCmd.MarkFlagsMutuallyExclusive("curve", "axis")

	checkLogCmd := &cobra.Command{
		Use:   "check-log [inputs...]",
		Short: "scan solver logs for successful runs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  checkLog,
	}
	checkLogCmd.Flags().StringVarP(&logOut, "out", "o", "", "write the combined log here instead of stdout")
	checkLogCmd.Flags().StringVar(&successes, "successes", "", "write successful inputs, one per line")

	presetsCmd := &cobra.Command{
		Use:   "presets [group]",
		Short: "list available presets for a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(traceCmd, axisCmd, crossCmd, iotaCmd, bifurcationCmd, writheCmd, fluxCmd,
		gridCmd, listCmd, exportCSVCmd, checkLogCmd, presetsCmd)
	return rootCmd
}

func addSolverFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&gridFile, "grid", "", "grid file (default: sample the model)")
	cmd.Flags().StringVar(&mode, "mode", "calculate", "field mode (calculate, interpolate)")
	cmd.Flags().StringVar(&method, "method", "dopri5", "integrator (dopri5, rk23, rk4, euler)")
	cmd.Flags().Float64Var(&rtol, "rtol", config.DefaultTol, "relative tolerance")
	cmd.Flags().Float64Var(&atol, "atol", config.DefaultTol, "absolute tolerance")
}

func addTraceFlags(cmd *cobra.Command) {
	addSolverFlags(cmd)
	cmd.Flags().IntVar(&niter, "niter", config.DefaultNiter, "field periods per line")
	cmd.Flags().IntVar(&nstep, "nstep", config.DefaultNstep, "sub-steps per field period")
	cmd.Flags().StringVar(&param, "param", "zeta", "parametrization (zeta, length)")
	cmd.Flags().Float64Var(&oneLength, "one-length", 0, "arc length of one period (length parametrization)")
	cmd.Flags().IntVar(&workers, "workers", 1, "lines traced in parallel")
	cmd.Flags().Float64SliceVar(&startS, "s", nil, "initial s of each line")
	cmd.Flags().Float64Var(&startT, "theta", 0, "initial θ of every line")
	cmd.Flags().Float64Var(&startZ, "zeta", 0, "initial ζ of every line")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress")
}

// loadConfig merges preset, config file and explicitly set flags, in
// increasing priority.
func loadConfig(cmd *cobra.Command, group string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(group, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(group))
		}
		c := *p
		c.Start = append([]config.StartPoint(nil), p.Start...)
		cfg = &c
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("niter") {
		cfg.Trace.Niter = niter
	}
	if flags.Changed("nstep") {
		cfg.Trace.Nstep = nstep
		cfg.Bifurcation.Nstep = nstep
	}
	if flags.Changed("mode") {
		cfg.Trace.Mode = mode
	}
	if flags.Changed("param") {
		cfg.Trace.Parametrization = param
	}
	if flags.Changed("one-length") {
		cfg.Trace.OneLength = oneLength
	}
	if flags.Changed("method") {
		cfg.Trace.Method = method
	}
	if flags.Changed("rtol") {
		cfg.Trace.RTol = rtol
		cfg.Bifurcation.RTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Trace.ATol = atol
		cfg.Bifurcation.ATol = atol
	}
	if flags.Changed("workers") {
		cfg.Trace.Workers = workers
	}
	if flags.Changed("s") {
		cfg.Start = make([]config.StartPoint, len(startS))
		for i, s := range startS {
			cfg.Start[i] = config.StartPoint{S: s, Theta: startT, Zeta: startZ}
		}
	} else if flags.Changed("theta") || flags.Changed("zeta") {
		for i := range cfg.Start {
			if flags.Changed("theta") {
				cfg.Start[i].Theta = startT
			}
			if flags.Changed("zeta") {
				cfg.Start[i].Zeta = startZ
			}
		}
	}
	if flags.Changed("mpol") {
		cfg.Fit.Mpol = mpol
	}
	if flags.Changed("ntor") {
		cfg.Fit.Ntor = ntor
	}
	if flags.Changed("full") {
		cfg.Fit.Full = full
	}
	if flags.Changed("orderer") {
		cfg.Fit.Orderer = orderer
	}
	if flags.Changed("steps") {
		cfg.Bifurcation.Niter = bisect
	}
	if flags.Changed("iter-line") {
		cfg.Bifurcation.IterLine = iterLine
	}
	if flags.Changed("data") {
		cfg.Store = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config", "preset", preset, "file", configFile, "lines", len(cfg.Start), "store", cfg.Store)
	return cfg, nil
}
