// Package commands implements CLI command handlers for serenity.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nabbelbabbel/serenity/internal/checkpoint"
	"github.com/nabbelbabbel/serenity/internal/config"
	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/internal/observability"
	"github.com/nabbelbabbel/serenity/internal/report"
	"github.com/nabbelbabbel/serenity/internal/sysio"
	"github.com/nabbelbabbel/serenity/pkg/version"
)

type observabilityInitFunc func(observability.Config) (observability.Providers, error)

// ErrNoSystem is returned when neither a system file nor a synthetic
// size is given.
var ErrNoSystem = errors.New("a system file argument or --synthetic size is required")

// Shape of the model system served by the --synthetic flag.
const (
	syntheticDomain          = 4
	syntheticCoupling        = 0.01
	syntheticDistantFrom     = 3
	syntheticVeryDistantFrom = 5
	syntheticSeed            = 42
)

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	settingsPath    string
	format          string
	plotPath        string
	metricsAddr     string
	workers         int
	synthetic       int
	checkpointDir   string
	clearCheckpoint bool

	obsInit observabilityInitFunc
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(observability.Init)
}

func newRunCommandWithDeps(obsInit observabilityInitFunc) *cobra.Command {
	rc := &RunCommand{obsInit: obsInit}

	cmd := &cobra.Command{
		Use:   "run [system.yaml]",
		Short: "Run the pair correction",
		Long:  "Run the second-order pair correction on a system file and print the report.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.settingsPath, "settings", "", "Settings file path (default: search .serenity.yaml in CWD and $HOME)")
	cmd.Flags().StringVar(&rc.format, "format", "", "Report format: table, yaml, json (default: settings value)")
	cmd.Flags().StringVar(&rc.plotPath, "plot", "", "Write a convergence plot to this HTML file")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address while running")
	cmd.Flags().IntVar(&rc.workers, "workers", 0, "Number of residual workers (0 = settings value, then CPU count)")
	cmd.Flags().IntVar(&rc.synthetic, "synthetic", 0, "Synthesize a system with this many occupied orbitals instead of reading a file")

	cmd.Flags().Bool("checkpoint", false, "Persist amplitudes between cycles for crash recovery")
	cmd.Flags().StringVar(&rc.checkpointDir, "checkpoint-dir", "", "Checkpoint directory (default: ~/.serenity/checkpoints)")
	cmd.Flags().Bool("resume", true, "Resume from a matching checkpoint if present")
	cmd.Flags().BoolVar(&rc.clearCheckpoint, "clear-checkpoint", false, "Clear any existing checkpoint before the run")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	if rc.synthetic == 0 && len(args) == 0 {
		return ErrNoSystem
	}

	cfg, err := config.Load(rc.settingsPath)
	if err != nil {
		return err
	}

	format := rc.format
	if format == "" {
		format = cfg.Report.Format
	}

	// Reject a bad format before the solve, not after.
	err = checkFormat(format)
	if err != nil {
		return err
	}

	mode, err := lmp2.ParseMode(cfg.Solver.Mode)
	if err != nil {
		return err
	}

	quiet := isQuiet(cmd)

	providers, err := rc.obsInit(buildObservabilityConfig(cfg, quiet))
	if err != nil {
		return err
	}

	logger := providers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	solverMetrics, closeMetrics, err := rc.setupMetrics(cfg, providers, logger)
	if err != nil {
		return err
	}
	defer closeMetrics()

	ctrl, err := rc.buildController(args, cfg)
	if err != nil {
		return err
	}

	mgr, err := rc.setupCheckpoint(cmd, cfg, ctrl, logger)
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if rc.workers > 0 {
		workers = rc.workers
	}

	history := &lmp2.History{}

	// The convergence table streams to stderr while the solver runs, so
	// machine formats on stdout stay clean.
	var trace lmp2.TraceWriter = history
	if !quiet {
		trace = lmp2.MultiTrace(history, lmp2.NewStreamTrace(cmd.ErrOrStderr()))
	}

	opts := lmp2.Options{
		Mode:    mode,
		Workers: workers,
		Trace:   trace,
		Logger:  logger,
		Metrics: solverMetrics,
	}
	if mgr != nil {
		opts.Snapshot = mgr
		opts.SnapshotEvery = cfg.Checkpoint.Every
	}

	corr, err := lmp2.New(ctrl, opts)
	if err != nil {
		return err
	}

	start := time.Now()

	ctx, finish := startSpan(cmd.Context(), providers)

	energies, runErr := corr.Run(ctx)

	finish(runErr)

	if runErr != nil {
		return runErr
	}

	rep := report.Build(ctrl, energies, history, report.Options{
		Mode:     mode,
		Workers:  workers,
		Duration: time.Since(start),
	})

	err = rep.Render(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}

	if plotPath := rc.resolvePlotPath(cfg); plotPath != "" {
		err = report.WritePlot(plotPath, history.Cycles(), rep)
		if err != nil {
			return err
		}

		logger.Info("convergence plot written", "path", plotPath)
	}

	return nil
}

func (rc *RunCommand) buildController(args []string, cfg *config.Config) (*localcorr.Controller, error) {
	th := cfg.Thresholds()

	if rc.synthetic != 0 {
		return localcorr.Synthesize(localcorr.SyntheticSpec{
			Occupied:        rc.synthetic,
			Domain:          syntheticDomain,
			Coupling:        syntheticCoupling,
			DistantFrom:     syntheticDistantFrom,
			VeryDistantFrom: syntheticVeryDistantFrom,
			Seed:            syntheticSeed,
		}, th)
	}

	return sysio.Load(args[0], th)
}

// setupMetrics builds the solver instruments, either on the Prometheus
// scrape server when an address is configured or on the OTel meter.
// The returned close function stops the scrape server.
func (rc *RunCommand) setupMetrics(
	cfg *config.Config,
	providers observability.Providers,
	logger *slog.Logger,
) (*observability.SolverMetrics, func(), error) {
	noClose := func() {}

	addr := rc.metricsAddr
	if addr == "" && cfg.Observability.PrometheusPort > 0 {
		addr = fmt.Sprintf(":%d", cfg.Observability.PrometheusPort)
	}

	if addr == "" {
		if providers.Meter == nil {
			return nil, noClose, nil
		}

		solverMetrics, err := observability.NewSolverMetrics(providers.Meter)
		if err != nil {
			return nil, nil, err
		}

		return solverMetrics, noClose, nil
	}

	srv, err := observability.NewMetricsServer(addr)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("metrics endpoint listening", "addr", srv.Addr())

	closeFn := func() {
		closeErr := srv.Close()
		if closeErr != nil {
			logger.Warn("metrics server shutdown failed", "error", closeErr)
		}
	}

	return srv.Metrics(), closeFn, nil
}

// setupCheckpoint resolves the checkpoint flags against the settings and
// restores saved amplitudes when resume is on. A checkpoint that cannot
// be resumed is a logged warning, not an error; the run starts fresh.
func (rc *RunCommand) setupCheckpoint(
	cmd *cobra.Command,
	cfg *config.Config,
	ctrl *localcorr.Controller,
	logger *slog.Logger,
) (*checkpoint.Manager, error) {
	enabled := boolFlag(cmd, "checkpoint", cfg.Checkpoint.Enabled)
	if !enabled && !rc.clearCheckpoint {
		return nil, nil
	}

	dir := rc.checkpointDir
	if dir == "" {
		dir = cfg.Checkpoint.Dir
	}

	if dir == "" {
		dir = checkpoint.DefaultDir()
	}

	mgr := checkpoint.NewManager(dir)

	if rc.clearCheckpoint {
		err := mgr.Clear()
		if err != nil {
			return nil, err
		}
	}

	if !enabled {
		return nil, nil
	}

	if boolFlag(cmd, "resume", cfg.Checkpoint.Resume) {
		cycle, err := mgr.Restore(ctrl.Pairs.Solved())

		switch {
		case err == nil:
			logger.Info("amplitudes restored from checkpoint", "dir", dir, "cycle", cycle)
		case errors.Is(err, checkpoint.ErrNoCheckpoint):
			// Nothing to resume.
		default:
			logger.Warn("checkpoint not resumed, starting fresh", "error", err)
		}
	}

	return mgr, nil
}

func (rc *RunCommand) resolvePlotPath(cfg *config.Config) string {
	if rc.plotPath != "" {
		return rc.plotPath
	}

	return cfg.Report.Plot
}

func buildObservabilityConfig(cfg *config.Config, quiet bool) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeCLI
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.LogLevel = observability.ParseLevel(cfg.Observability.LogLevel)
	obsCfg.LogJSON = cfg.Observability.LogFormat == "json"

	if quiet {
		obsCfg.LogLevel = slog.LevelError
	}

	return obsCfg
}

// startSpan opens the root span of one correction. The returned finish
// function records the outcome and ends the span.
func startSpan(ctx context.Context, providers observability.Providers) (context.Context, func(error)) {
	if providers.Tracer == nil {
		return ctx, func(error) {}
	}

	ctx, span := providers.Tracer.Start(ctx, "serenity.run")

	return ctx, func(err error) {
		span.SetAttributes(attribute.Bool("error", err != nil))
		span.End()
	}
}

func checkFormat(format string) error {
	switch format {
	case report.FormatTable, report.FormatYAML, report.FormatJSON:
		return nil
	}

	return fmt.Errorf("%w: %q", report.ErrUnknownFormat, format)
}

// boolFlag returns the flag value when it was set explicitly and the
// fallback otherwise.
func boolFlag(cmd *cobra.Command, name string, fallback bool) bool {
	if !cmd.Flags().Changed(name) {
		return fallback
	}

	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return fallback
	}

	return v
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}
