package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/connor-mcnaboe/state-propogator/internal/config"
	"github.com/connor-mcnaboe/state-propogator/internal/export"
	"github.com/connor-mcnaboe/state-propogator/internal/metrics"
	"github.com/connor-mcnaboe/state-propogator/internal/sim"
)

var (
	logLevel string
	format   string

	// propagate
	configFile  string
	preset      string
	state       []float64
	mu          float64
	tStart      float64
	tEnd        float64
	initialStep float64
	rtol        float64
	atol        float64
	maxSteps    int
	minStep     float64
	maxStep     float64
	maxSamples  int
	rows        int
	plot        bool

	// batch
	workers int

	logger log.Logger = log.NewNopLogger()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags bind to the package variables,
// which are reset to their defaults on every call.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "propagator",
		Short:         "two-body orbital state propagator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(cmd.ErrOrStderr(), logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	propagateCmd := &cobra.Command{
		Use:   "propagate",
		Short: "propagate one initial state",
		Args:  cobra.NoArgs,
		RunE:  runPropagate,
	}
	defaults := config.DefaultScenario()
	f := propagateCmd.Flags()
	f.StringVar(&configFile, "config", "", "scenario file (yaml)")
	f.StringVar(&preset, "preset", "", "use a named scenario (see presets)")
	f.Float64SliceVar(&state, "state", nil, "initial state x,y,z,vx,vy,vz (km, km/s)")
	f.Float64Var(&mu, "mu", defaults.Mu, "gravitational parameter (km^3/s^2)")
	f.Float64Var(&tStart, "t-start", defaults.TStart, "start time (s)")
	f.Float64Var(&tEnd, "t-end", defaults.TEnd, "end time (s)")
	f.Float64Var(&initialStep, "h0", defaults.InitialStep, "initial step size (s)")
	f.Float64Var(&rtol, "rtol", defaults.RTol, "relative tolerance")
	f.Float64Var(&atol, "atol", defaults.ATol, "absolute tolerance")
	f.IntVar(&maxSteps, "max-steps", defaults.MaxSteps, "maximum accepted steps")
	f.Float64Var(&minStep, "min-step", 0, "step size floor (s), 0 scales with the span")
	f.Float64Var(&maxStep, "max-step", 0, "step size ceiling (s), 0 means the span")
	f.IntVar(&maxSamples, "max-samples", 0, "thin the trajectory to at most this many samples")
	f.StringVar(&format, "format", "table", "output format (table, csv, json)")
	f.IntVar(&rows, "rows", 20, "samples shown in table output")
	f.BoolVar(&plot, "plot", false, "plot radius and speed against time")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "propagate every scenario of a batch file in parallel",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "parallel propagations (0 uses the file, then GOMAXPROCS)")
	batchCmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")

	plotCmd := &cobra.Command{
		Use:   "plot [csv]",
		Short: "plot a trajectory written with --format csv (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlot,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list named scenarios",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(propagateCmd, batchCmd, plotCmd, presetsCmd)
	return rootCmd
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "none":
		opt = level.AllowNone()
	default:
		return nil, fmt.Errorf("unknown log level: %s", lvl)
	}

	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, opt), nil
}

// resolveScenario applies, in increasing priority: defaults, preset, config
// file, flags set on the command line. The config file only overrides the
// keys it contains.
func resolveScenario(cmd *cobra.Command) (*config.Scenario, error) {
	sc := config.DefaultScenario()

	if preset != "" {
		sc = config.GetPreset(preset)
		if sc == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, sc)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		sc = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("state") {
		if len(state) != 6 {
			return nil, fmt.Errorf("--state needs 6 components, got %d", len(state))
		}
		copy(sc.State[:], state)
		sc.Name = "cli"
	}
	if flags.Changed("mu") {
		sc.Mu = mu
	}
	if flags.Changed("t-start") {
		sc.TStart = tStart
	}
	if flags.Changed("t-end") {
		sc.TEnd = tEnd
	}
	if flags.Changed("h0") {
		sc.InitialStep = initialStep
	}
	if flags.Changed("rtol") {
		sc.RTol = rtol
	}
	if flags.Changed("atol") {
		sc.ATol = atol
	}
	if flags.Changed("max-steps") {
		sc.MaxSteps = maxSteps
	}
	if flags.Changed("min-step") {
		sc.MinStep = minStep
	}
	if flags.Changed("max-step") {
		sc.MaxStep = maxStep
	}
	if flags.Changed("max-samples") {
		sc.MaxSamples = maxSamples
	}

	if sc.State == ([6]float64{}) {
		return nil, errors.New("no initial state: use --state, --preset or --config")
	}
	return sc, sc.Validate()
}

func runPropagate(cmd *cobra.Command, args []string) error {
	sc, err := resolveScenario(cmd)
	if err != nil {
		return err
	}

	dyn := sc.Dynamics()
	p := sim.New(dyn,
		sim.WithLogger(log.With(logger, "scenario", sc.Name)),
		sim.WithMetrics(metrics.Orbital(dyn)...),
	)
	res, runErr := p.Run(sc.InitialState(), sc.SimConfig())

	out := cmd.OutOrStdout()
	switch format {
	case "csv":
		if err := export.WriteCSV(out, res.Trajectory); err != nil {
			return err
		}
	case "json":
		if err := export.WriteJSON(out, export.NewDocument(metaOf(sc), res, runErr)); err != nil {
			return err
		}
	case "table":
		printSummary(out, sc, res, runErr)
		printSamples(out, res.Trajectory, rows)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if plot {
		printPlots(out, res.Trajectory)
	}
	return runErr
}

func runBatch(cmd *cobra.Command, args []string) error {
	bf, err := config.LoadBatch(args[0])
	if err != nil {
		return err
	}
	for i := range bf.Scenarios {
		if err := bf.Scenarios[i].Validate(); err != nil {
			return err
		}
	}

	n := bf.Workers
	if cmd.Flags().Changed("workers") {
		n = workers
	}

	if len(bf.Scenarios) == 0 {
		return errors.New("batch file has no scenarios")
	}
	dyn := bf.Scenarios[0].Dynamics()
	b := sim.NewBatch(dyn, n,
		sim.WithBatchLogger(logger),
		sim.WithMetricFactory(func() []metrics.Metric { return metrics.Orbital(dyn) }),
	)

	results, err := b.Run(cmd.Context(), bf.Jobs())

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		docs := make([]export.Document, 0, len(results))
		for i, jr := range results {
			if jr.Result == nil {
				continue
			}
			docs = append(docs, export.NewDocument(metaOf(&bf.Scenarios[i]), jr.Result, jr.Err))
		}
		if err := export.WriteJSONBatch(out, docs); err != nil {
			return err
		}
	case "table":
		printBatch(out, results)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if err != nil {
		return err
	}
	for _, jr := range results {
		if jr.Err != nil {
			return fmt.Errorf("%d of %d scenarios failed", countFailed(results), len(results))
		}
	}
	return nil
}

func runPlot(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	traj, err := export.ReadCSV(in)
	if err != nil {
		return err
	}
	if traj.Len() < 2 {
		return errors.New("no data to plot")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "samples: %d\n\n", traj.Len())
	printPlots(cmd.OutOrStdout(), traj)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	printPresets(cmd.OutOrStdout())
	return nil
}

func metaOf(sc *config.Scenario) export.Meta {
	return export.Meta{
		Scenario: sc.Name,
		Mu:       sc.Mu,
		TStart:   sc.TStart,
		TEnd:     sc.TEnd,
		RTol:     sc.RTol,
		ATol:     sc.ATol,
	}
}

func countFailed(results []sim.JobResult) int {
	n := 0
	for _, jr := range results {
		if jr.Err != nil {
			n++
		}
	}
	return n
}
