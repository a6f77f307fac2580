package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCyclesTotal   = "serenity.lmp2.cycles.total"
	metricRunsTotal     = "serenity.lmp2.runs.total"
	metricRunDuration   = "serenity.lmp2.run.duration.seconds"
	metricResidualMax   = "serenity.lmp2.residual.max"
	metricEnergyRunning = "serenity.lmp2.energy.running"
	metricPairsTotal    = "serenity.lmp2.pairs.total"

	attrStatus = "status"
	attrClass  = "class"

	statusConverged = "converged"
	statusDiverged  = "diverged"
)

// durationBucketBoundaries covers 10ms to 600s, spanning toy systems and
// large pair lists.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// SolverMetrics holds OTel instruments for the residual iteration.
type SolverMetrics struct {
	cyclesTotal   metric.Int64Counter
	runsTotal     metric.Int64Counter
	runDuration   metric.Float64Histogram
	residualMax   metric.Float64Gauge
	energyRunning metric.Float64Gauge
	pairsTotal    metric.Int64Counter
}

// RunStats holds the statistics of one completed (or aborted) correction.
type RunStats struct {
	Cycles           int
	Converged        bool
	Duration         time.Duration
	Energy           float64
	SolvedPairs      int
	VeryDistantPairs int
}

// NewSolverMetrics creates solver metric instruments from the given meter.
func NewSolverMetrics(mt metric.Meter) (*SolverMetrics, error) {
	cycles, err := mt.Int64Counter(metricCyclesTotal,
		metric.WithDescription("Total residual iteration cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCyclesTotal, err)
	}

	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Total corrections by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	runDur, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Correction wall time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	residual, err := mt.Float64Gauge(metricResidualMax,
		metric.WithDescription("Maximum absolute residual entry of the last cycle"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricResidualMax, err)
	}

	energy, err := mt.Float64Gauge(metricEnergyRunning,
		metric.WithDescription("Running correlation energy in hartree"),
		metric.WithUnit("Eh"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEnergyRunning, err)
	}

	pairs, err := mt.Int64Counter(metricPairsTotal,
		metric.WithDescription("Pairs treated, by locality class"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPairsTotal, err)
	}

	return &SolverMetrics{
		cyclesTotal:   cycles,
		runsTotal:     runs,
		runDuration:   runDur,
		residualMax:   residual,
		energyRunning: energy,
		pairsTotal:    pairs,
	}, nil
}

// RecordCycle records the diagnostics of one iteration cycle.
// Safe to call on a nil receiver (no-op).
func (sm *SolverMetrics) RecordCycle(ctx context.Context, maxResidual, energy float64) {
	if sm == nil {
		return
	}

	sm.cyclesTotal.Add(ctx, 1)
	sm.residualMax.Record(ctx, maxResidual)
	sm.energyRunning.Record(ctx, energy)
}

// RecordRun records the outcome of a completed correction.
// Safe to call on a nil receiver (no-op).
func (sm *SolverMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if sm == nil {
		return
	}

	status := statusConverged
	if !stats.Converged {
		status = statusDiverged
	}

	sm.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	sm.runDuration.Record(ctx, stats.Duration.Seconds())
	sm.energyRunning.Record(ctx, stats.Energy)

	sm.pairsTotal.Add(ctx, int64(stats.SolvedPairs),
		metric.WithAttributes(attribute.String(attrClass, "solved")))
	sm.pairsTotal.Add(ctx, int64(stats.VeryDistantPairs),
		metric.WithAttributes(attribute.String(attrClass, "very-distant")))
}
