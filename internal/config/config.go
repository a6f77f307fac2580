// Package config provides YAML-based configuration for serenity runs.
// Field tags use mapstructure for viper unmarshalling.
package config

import (
	"errors"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

// Config is the top-level configuration struct for serenity.
type Config struct {
	Solver        SolverConfig        `mapstructure:"solver"`
	DIIS          DIISConfig          `mapstructure:"diis"`
	Scaling       ScalingConfig       `mapstructure:"scaling"`
	Workers       int                 `mapstructure:"workers"`
	Checkpoint    CheckpointConfig    `mapstructure:"checkpoint"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Solver modes.
const (
	ModeExact         = "exact"
	ModeSemicanonical = "semicanonical"
)

// SolverConfig holds the residual-iteration knobs.
type SolverConfig struct {
	PrescreeningThreshold float64 `mapstructure:"prescreening_threshold"`
	ConvergenceThreshold  float64 `mapstructure:"convergence_threshold"`
	MaxCycles             int     `mapstructure:"max_cycles"`
	Mode                  string  `mapstructure:"mode"`
}

// DIISConfig holds the amplitude-extrapolation knobs.
type DIISConfig struct {
	StartResidual float64 `mapstructure:"start_residual"`
	MaxStore      int     `mapstructure:"max_store"`
}

// ScalingConfig holds the spin-component scaling factors.
type ScalingConfig struct {
	SameSpin     float64 `mapstructure:"same_spin"`
	OppositeSpin float64 `mapstructure:"opposite_spin"`
}

// CheckpointConfig holds amplitude snapshot settings.
type CheckpointConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Resume  bool   `mapstructure:"resume"`
	Every   int    `mapstructure:"every"`
}

// ReportConfig holds result rendering settings.
type ReportConfig struct {
	Format string `mapstructure:"format"`
	Plot   string `mapstructure:"plot"`
}

// ObservabilityConfig holds logging, tracing and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// maxPort is the largest valid TCP port.
const maxPort = 65535

// Sentinel errors for configuration validation.
var (
	// ErrInvalidPrescreening indicates a non-positive prescreening threshold.
	ErrInvalidPrescreening = errors.New("solver.prescreening_threshold must be positive")
	// ErrInvalidConvergence indicates a non-positive convergence threshold.
	ErrInvalidConvergence = errors.New("solver.convergence_threshold must be positive")
	// ErrInvalidMaxCycles indicates a non-positive cycle limit.
	ErrInvalidMaxCycles = errors.New("solver.max_cycles must be positive")
	// ErrInvalidSolverMode indicates an unknown solver mode.
	ErrInvalidSolverMode = errors.New("solver.mode must be exact or semicanonical")
	// ErrInvalidDIISStart indicates a non-positive DIIS activation residual.
	ErrInvalidDIISStart = errors.New("diis.start_residual must be positive")
	// ErrInvalidDIISStore indicates a non-positive DIIS history depth.
	ErrInvalidDIISStore = errors.New("diis.max_store must be positive")
	// ErrInvalidScaling indicates a negative spin-component scaling factor.
	ErrInvalidScaling = errors.New("scaling factors must be non-negative")
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("workers must be non-negative")
	// ErrInvalidCheckpointEvery indicates a non-positive snapshot interval.
	ErrInvalidCheckpointEvery = errors.New("checkpoint.every must be positive")
	// ErrInvalidReportFormat indicates an unknown report format.
	ErrInvalidReportFormat = errors.New("report.format must be table, yaml or json")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("observability.log_level must be debug, info, warn or error")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("observability.log_format must be text or json")
	// ErrInvalidPrometheusPort indicates a port outside the valid range.
	ErrInvalidPrometheusPort = errors.New("observability.prometheus_port must be between 0 and 65535")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	solverErr := c.validateSolver()
	if solverErr != nil {
		return solverErr
	}

	return c.validateOutput()
}

func (c *Config) validateSolver() error {
	if c.Solver.PrescreeningThreshold <= 0 {
		return ErrInvalidPrescreening
	}

	if c.Solver.ConvergenceThreshold <= 0 {
		return ErrInvalidConvergence
	}

	if c.Solver.MaxCycles <= 0 {
		return ErrInvalidMaxCycles
	}

	if c.Solver.Mode != ModeExact && c.Solver.Mode != ModeSemicanonical {
		return ErrInvalidSolverMode
	}

	if c.DIIS.StartResidual <= 0 {
		return ErrInvalidDIISStart
	}

	if c.DIIS.MaxStore <= 0 {
		return ErrInvalidDIISStore
	}

	if c.Scaling.SameSpin < 0 || c.Scaling.OppositeSpin < 0 {
		return ErrInvalidScaling
	}

	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	return nil
}

func (c *Config) validateOutput() error {
	if c.Checkpoint.Every <= 0 {
		return ErrInvalidCheckpointEvery
	}

	switch c.Report.Format {
	case "table", "yaml", "json":
	default:
		return ErrInvalidReportFormat
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	if c.Observability.PrometheusPort < 0 || c.Observability.PrometheusPort > maxPort {
		return ErrInvalidPrometheusPort
	}

	return nil
}

// Thresholds converts the solver knobs into the controller's threshold
// set.
func (c *Config) Thresholds() localcorr.Thresholds {
	return localcorr.Thresholds{
		Prescreening:      c.Solver.PrescreeningThreshold,
		Convergence:       c.Solver.ConvergenceThreshold,
		MaxCycles:         c.Solver.MaxCycles,
		DIISStart:         c.DIIS.StartResidual,
		DIISDepth:         c.DIIS.MaxStore,
		SameSpinScale:     c.Scaling.SameSpin,
		OppositeSpinScale: c.Scaling.OppositeSpin,
	}
}
