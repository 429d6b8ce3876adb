package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/magsim/internal/analysis"
	"github.com/san-kum/magsim/internal/checkpoint"
	"github.com/san-kum/magsim/internal/config"
	"github.com/san-kum/magsim/internal/experiment"
	"github.com/san-kum/magsim/internal/logx"
	"github.com/san-kum/magsim/internal/storage"
	"github.com/san-kum/magsim/internal/sweep"
	"github.com/san-kum/magsim/internal/viz"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	configFile string
	preset     string
	program    string
	integrator string
	seed       int64
	workers    int
	accel      bool
	spinCount  int
	temp       float64
	dt         float64
	hMin       float64
	hMax       float64
	hInc       float64
	live       bool

	ckptStore    string
	ckptPath     string
	ckptKey      string
	load         bool
	cont         bool
	save         bool
	continuous   bool
	allowMissing bool

	pngPath     string
	chartWidth  int
	chartHeight int
)

// main registers the commands and exits with status 1 if the executed
// command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "magsim",
		Short:         "atomistic magnetization dynamics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run output directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a program",
		RunE:  runExperiment,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "show live loop view")
	runCmd.Flags().StringVar(&ckptStore, "store", "file", "checkpoint store (file, sqlite, memory)")
	runCmd.Flags().StringVar(&ckptPath, "checkpoint", "checkpoint.json", "checkpoint path")
	runCmd.Flags().StringVar(&ckptKey, "key", "default", "checkpoint key (sqlite)")
	runCmd.Flags().BoolVar(&load, "load", false, "load spins from checkpoint")
	runCmd.Flags().BoolVar(&cont, "continue", false, "resume sweep from checkpoint")
	runCmd.Flags().BoolVar(&save, "save", false, "save checkpoint at the end")
	runCmd.Flags().BoolVar(&continuous, "continuous", false, "save checkpoint after every point")
	runCmd.Flags().BoolVar(&allowMissing, "allow-missing", false, "cold start when the checkpoint is missing")

	dispatchCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "show integrator routing for the detected backends",
		RunE:  showDispatch,
	}
	addConfigFlags(dispatchCmd)

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "inspect checkpoints",
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "print the stored resume state",
		RunE:  showCheckpoint,
	}
	showCmd.Flags().StringVar(&ckptStore, "store", "file", "checkpoint store (file, sqlite)")
	showCmd.Flags().StringVar(&ckptPath, "checkpoint", "checkpoint.json", "checkpoint path")
	showCmd.Flags().StringVar(&ckptKey, "key", "default", "checkpoint key (sqlite)")
	checkpointCmd.AddCommand(showCmd)

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the magnetisation loop of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "write the loop to an image file")
	plotCmd.Flags().IntVar(&chartWidth, "width", 60, "chart width")
	plotCmd.Flags().IntVar(&chartHeight, "height", 12, "chart height")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "loop or spectrum analysis of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [program]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	addConfigFlags(configCmd)

	rootCmd.AddCommand(runCmd, dispatchCmd, checkpointCmd, runsCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report logs the error that ended the command and returns the exit status.
func report(w io.Writer, err error) int {
	log, lerr := logx.New(w, logLevel, logFormat)
	if lerr != nil {
		log, _ = logx.New(w, "", "")
	}
	log.WithError(err).Error("magsim failed")
	return 1
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&program, "program", "hysteresis", "program (hysteresis, time-series, benchmark)")
	cmd.Flags().StringVar(&integrator, "integrator", "llg-heun", "integrator")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "distributed workers (<2 disables)")
	cmd.Flags().BoolVar(&accel, "accelerator", false, "use the accelerator when available")
	cmd.Flags().IntVar(&spinCount, "spins", config.DefaultSpins, "number of spins")
	cmd.Flags().Float64Var(&temp, "temperature", config.DefaultTemperature, "temperature (K)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep (s)")
	cmd.Flags().Float64Var(&hMin, "h-min", -config.DefaultHMax, "sweep lower bound (T)")
	cmd.Flags().Float64Var(&hMax, "h-max", config.DefaultHMax, "sweep upper bound (T)")
	cmd.Flags().Float64Var(&hInc, "h-inc", config.DefaultHInc, "sweep increment (T)")
}

// resolveConfig layers defaults, then a preset, then a config file, then
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	flags := cmd.Flags()

	if preset != "" {
		name := program
		p := config.GetPreset(name, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available for %s: %v)", preset, name, config.ListPresets(name))
		}
		cfg = p
	}
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}

	if flags.Changed("program") || (preset == "" && configFile == "") {
		cfg.Program = program
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Backend.Workers = workers
	}
	if flags.Changed("accelerator") {
		cfg.Backend.Accelerator = accel
	}
	if flags.Changed("spins") {
		cfg.System.Spins = spinCount
	}
	if flags.Changed("temperature") {
		cfg.System.Temperature = temp
	}
	if flags.Changed("dt") {
		cfg.System.Dt = dt
	}
	if flags.Changed("h-min") {
		cfg.Sweep.HMin = hMin
	}
	if flags.Changed("h-max") {
		cfg.Sweep.HMax = hMax
	}
	if flags.Changed("h-inc") {
		cfg.Sweep.HInc = hInc
	}
	if f := flags.Lookup("store"); f != nil {
		if f.Changed {
			cfg.Checkpoint.Store = ckptStore
		}
		if flags.Changed("checkpoint") {
			cfg.Checkpoint.Path = ckptPath
		}
		if flags.Changed("key") {
			cfg.Checkpoint.Key = ckptKey
		}
		if flags.Changed("load") {
			cfg.Checkpoint.Load = load
		}
		if flags.Changed("continue") {
			cfg.Checkpoint.Continue = cont
			cfg.Checkpoint.Load = cfg.Checkpoint.Load || cont
		}
		if flags.Changed("save") {
			cfg.Checkpoint.Save = save
		}
		if flags.Changed("continuous") {
			cfg.Checkpoint.Continuous = continuous
		}
		if flags.Changed("allow-missing") {
			cfg.Checkpoint.AllowMissing = allowMissing
		}
	}
	if flags.Changed("live") {
		cfg.Output.Live = live
	}
	if flags.Changed("data") {
		cfg.Output.Dir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) (*logrus.Logger, error) {
	return logx.New(w, cfg.Log.Level, cfg.Log.Format)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Output.Live {
		return runLive(ctx, cfg)
	}

	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	res, err := experiment.New(cfg, experiment.Options{Log: log}).Run(ctx)
	if res != nil {
		printResult(res)
	}
	return err
}

// runLive drives the loop view while the experiment runs in the
// background. Logs go to magsim.log in the output directory.
func runLive(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.Output.Dir, "magsim.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log, err := newLogger(cfg, logFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lo, hi := liveWindow(cfg)
	model := viz.NewSweepModel(cfg.Program, expectedPoints(cfg), lo, hi)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	feed := viz.Feed{Program: p}

	type outcome struct {
		res *experiment.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := experiment.New(cfg, experiment.Options{
			Log:       log,
			Observers: []experiment.Observer{feed},
		}).Run(ctx)
		feed.Finish(err)
		done <- outcome{res, err}
	}()

	_, uiErr := p.Run()
	// Quitting the view stops the run.
	cancel()
	out := <-done
	if out.res != nil {
		printResult(out.res)
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return errors.Join(out.err, uiErr)
	}
	return out.err
}

func liveWindow(cfg *config.Config) (float64, float64) {
	lo, hi := cfg.Sweep.HMin, cfg.Sweep.HMax
	if cfg.Program != "hysteresis" {
		lo, hi = -cfg.Sweep.HEq, cfg.Sweep.HEq
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}

func expectedPoints(cfg *config.Config) int {
	switch cfg.Program {
	case "hysteresis":
		b, err := sweep.NewBounds(cfg.Sweep.HMin, cfg.Sweep.HMax, cfg.Sweep.HInc)
		if err != nil {
			return 0
		}
		return 2 * b.Points()
	case "time-series":
		if cfg.Sweep.PartialTime == 0 {
			return 0
		}
		return int(cfg.Sweep.TotalTime / cfg.Sweep.PartialTime)
	}
	return 0
}

func printResult(res *experiment.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", res.RunID)
	fmt.Fprintf(w, "program\t%s\n", res.Program)
	fmt.Fprintf(w, "route\t%s\n", res.Route)
	fmt.Fprintf(w, "start\t%s\n", res.Mode)
	fmt.Fprintf(w, "steps\t%d\n", res.Steps)
	fmt.Fprintf(w, "time\t%d\n", res.Time)
	fmt.Fprintf(w, "points\t%d\n", res.Points)
	if res.MC != nil {
		fmt.Fprintf(w, "acceptance\t%.4f\n", res.MC.AcceptanceRate())
	}
	if sps, ok := res.Metrics["steps_per_sec"]; ok {
		fmt.Fprintf(w, "steps/s\t%.0f\n", sps)
	}
	fmt.Fprintf(w, "elapsed\t%s\n", res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "output\t%s\n", res.RunDir)
	w.Flush()
}

func showDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	backends := experiment.DetectCapabilities(cfg.Backend)
	defer backends.Cleanup()

	_, route, caps, err := experiment.New(cfg, experiment.Options{Backends: &backends}).Plan()
	fmt.Println(viz.DispatchTable(caps))
	if err != nil {
		return err
	}
	fmt.Printf("\n%s -> %s\n", cfg.Integrator, route)
	return nil
}

func showCheckpoint(cmd *cobra.Command, args []string) error {
	bridge, closeFn, err := checkpoint.Open(cmd.Context(), ckptStore, ckptPath, ckptKey)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, ok, err := bridge.LoadResumeState(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no checkpoint found")
		return nil
	}

	state := "in progress"
	switch {
	case rec.Polarity == checkpoint.PolarityDone:
		state = "done"
	case !rec.Resume:
		state = "not resumable"
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "state\t%s\n", state)
	fmt.Fprintf(w, "step counter\t%d\n", rec.StepCounter)
	fmt.Fprintf(w, "polarity\t%d\n", rec.Polarity)
	fmt.Fprintf(w, "field\t%d uT\n", rec.Field)
	if rec.Polarity == -1 || rec.Polarity == 1 {
		fmt.Fprintf(w, "next H\t%+.6f T\n", sweep.Tesla(rec.Field, rec.Polarity))
	}
	fmt.Fprintf(w, "spins\t%d\n", len(rec.Spins))
	if !rec.SavedAt.IsZero() {
		fmt.Fprintf(w, "saved\t%s\n", rec.SavedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROGRAM\tTIME\tINTEG\tBACKEND\tSTART\tSTEPS\tPOINTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.Program,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Integrator,
			run.Backend,
			run.StartMode,
			run.Steps,
			run.Points,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadPoints(runID)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s %s (%s)", meta.Program, meta.Integrator, shortID(meta.ID))
	if pngPath != "" {
		if err := viz.SaveLoopPNG(rows, title, pngPath); err != nil {
			return err
		}
		fmt.Println("wrote", pngPath)
		return nil
	}

	chart, err := viz.LoopChart(rows, chartWidth, chartHeight)
	if err != nil {
		return err
	}
	fmt.Println(title)
	fmt.Println(chart)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	rows, err := st.LoadPoints(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if meta.Program == "hysteresis" {
		s, err := analysis.Loop(rows)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "BRANCH\tPOINTS\tHC (T)\tMR\tM MIN\tM MAX")
		for _, b := range []analysis.Branch{s.Negative, s.Positive} {
			fmt.Fprintf(w, "%+d\t%d\t%+.4f\t%+.4f\t%+.4f\t%+.4f\n",
				b.Polarity, b.Points, b.Coercivity, b.Remanence, b.MMin, b.MMax)
		}
		fmt.Fprintf(w, "\narea\t%.4f T\n", s.Area)
		return w.Flush()
	}

	trace, interval, err := analysis.Trace(rows, meta.Dt)
	if err != nil {
		return err
	}
	bins, err := analysis.Spectrum(trace, interval)
	if err != nil {
		return err
	}
	peak, _ := analysis.Peak(bins)
	fmt.Fprintf(w, "samples\t%d\n", len(trace))
	fmt.Fprintf(w, "interval\t%.3e s\n", interval)
	fmt.Fprintf(w, "peak\t%.4e Hz\n", peak.Frequency)
	fmt.Fprintf(w, "power\t%.4e\n", peak.Power)
	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func listPresets(cmd *cobra.Command, args []string) error {
	programs := config.ListPrograms()
	if len(args) == 1 {
		programs = args
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROGRAM\tPRESETS")
	for _, p := range programs {
		names := config.ListPresets(p)
		if names == nil {
			return fmt.Errorf("%w: %s", experiment.ErrUnknownProgram, p)
		}
		fmt.Fprintf(w, "%s\t%s\n", p, strings.Join(names, ", "))
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Println("wrote", args[0])
	return nil
}
