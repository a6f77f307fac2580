package config

// Solver defaults.
const (
	DefaultPrescreeningThreshold = 1e-5
	DefaultConvergenceThreshold  = 1e-7
	DefaultMaxCycles             = 100
	DefaultSolverMode            = ModeExact
)

// DIIS defaults.
const (
	DefaultDIISStartResidual = 1e-2
	DefaultDIISMaxStore      = 5
)

// Scaling defaults. Unit factors give plain MP2; SCS and SOS variants
// are configured by changing them.
const (
	DefaultSameSpinScaling     = 1.0
	DefaultOppositeSpinScaling = 1.0
)

// DefaultWorkers of zero means one worker per CPU.
const DefaultWorkers = 0

// Checkpoint defaults.
const (
	DefaultCheckpointEnabled = false
	DefaultCheckpointDir     = ""
	DefaultCheckpointResume  = true
	DefaultCheckpointEvery   = 5
)

// Report defaults.
const (
	DefaultReportFormat = "table"
	DefaultReportPlot   = ""
)

// Observability defaults.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultOTLPEndpoint   = ""
	DefaultPrometheusPort = 0
)
