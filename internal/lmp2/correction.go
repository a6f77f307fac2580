// Package lmp2 implements the local second-order pair-correction solver:
// a Jacobi-type fixed-point iteration over orbital-pair amplitudes with
// sparse third-orbital couplings, joint DIIS extrapolation of the whole
// amplitude collection, and the three-component energy assembly.
package lmp2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/internal/observability"
)

// Mode selects how amplitudes are obtained.
type Mode int

const (
	// ModeExact iterates the coupled residual equations to convergence.
	ModeExact Mode = iota

	// ModeSemicanonical takes the closed-form uncoupled amplitudes and
	// skips the iteration entirely. With an empty coupling graph both
	// modes agree.
	ModeSemicanonical
)

// Solver errors.
var (
	// ErrNotConverged indicates the iteration exhausted its cycle budget.
	// The correction is abandoned; no partial energy is returned.
	ErrNotConverged = errors.New("lmp2: residual iteration did not converge")
	// ErrUnknownMode indicates an unrecognized mode string.
	ErrUnknownMode = errors.New("lmp2: unknown solver mode")
	// ErrNilController indicates a missing controller.
	ErrNilController = errors.New("lmp2: correction needs a controller")
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exact":
		return ModeExact, nil
	case "semicanonical":
		return ModeSemicanonical, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// String returns the stable mode name.
func (m Mode) String() string {
	if m == ModeSemicanonical {
		return "semicanonical"
	}

	return "exact"
}

// Snapshotter persists in-progress amplitudes between cycles.
type Snapshotter interface {
	Snapshot(cycle int, pairs []*localcorr.OrbitalPair) error
}

// Options tune a Correction beyond the controller's thresholds.
type Options struct {
	// Mode selects exact iteration or the semicanonical shortcut.
	Mode Mode

	// Workers sets the size of the coupling-reduction worker pool.
	// Zero means one worker per CPU.
	Workers int

	// Trace receives per-cycle convergence records. Optional.
	Trace TraceWriter

	// Logger receives progress logs. Nil uses [slog.Default].
	Logger *slog.Logger

	// Metrics receives solver instruments. Optional.
	Metrics *observability.SolverMetrics

	// Snapshot persists amplitudes every SnapshotEvery cycles. Optional.
	Snapshot      Snapshotter
	SnapshotEvery int
}

// Correction is one runnable local correction over a controller's pair
// list. It owns no pair data; amplitudes and residuals live on the
// controller's arena.
type Correction struct {
	ctrl          *localcorr.Controller
	mode          Mode
	workers       int
	trace         TraceWriter
	log           *slog.Logger
	metrics       *observability.SolverMetrics
	snapshot      Snapshotter
	snapshotEvery int

	solved   []*localcorr.OrbitalPair
	farPairs []*localcorr.OrbitalPair
}

// New validates the options and captures the controller's pair views.
func New(ctrl *localcorr.Controller, opts Options) (*Correction, error) {
	if ctrl == nil {
		return nil, ErrNilController
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	snapshotEvery := opts.SnapshotEvery
	if snapshotEvery <= 0 {
		snapshotEvery = 1
	}

	return &Correction{
		ctrl:          ctrl,
		mode:          opts.Mode,
		workers:       workers,
		trace:         opts.Trace,
		log:           logger,
		metrics:       opts.Metrics,
		snapshot:      opts.Snapshot,
		snapshotEvery: snapshotEvery,
		solved:        ctrl.Pairs.Solved(),
		farPairs:      ctrl.Pairs.VeryDistant(),
	}, nil
}

// Run executes the correction and returns the three-component energy.
// The iteration starts from whatever amplitudes the pairs currently
// hold, so checkpointed amplitudes resume seamlessly and fresh pairs
// start from zero.
func (c *Correction) Run(ctx context.Context) (Energies, error) {
	start := time.Now()

	var (
		energies Energies
		cycles   int
		err      error
	)

	switch c.mode {
	case ModeSemicanonical:
		energies = c.runSemicanonical()
		cycles = 1
	default:
		energies, cycles, err = c.iterate(ctx)
	}

	c.metrics.RecordRun(ctx, observability.RunStats{
		Cycles:           cycles,
		Converged:        err == nil,
		Duration:         time.Since(start),
		Energy:           energies.Total(),
		SolvedPairs:      len(c.solved),
		VeryDistantPairs: len(c.farPairs),
	})

	if err != nil {
		return Energies{}, err
	}

	c.log.InfoContext(ctx, "correction finished",
		"mode", c.mode.String(),
		"cycles", cycles,
		"correlation", energies.Correlation,
		"dipole", energies.Dipole,
		"truncation", energies.Truncation,
		"elapsed", time.Since(start))

	return energies, nil
}

// iterate drives the Jacobi fixed point: residuals for every pair from
// previous-cycle amplitudes, one staged commit, energy recomputation
// for diagnostics, DIIS once the residual maximum qualifies, and the
// convergence check last.
func (c *Correction) iterate(ctx context.Context) (Energies, int, error) {
	th := c.ctrl.Thresholds

	extrapolator, err := newJointExtrapolator(th.DIISDepth, c.solved)
	if err != nil {
		return Energies{}, 0, err
	}

	var previous, rmax float64

	for cycle := 1; cycle <= th.MaxCycles; cycle++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Energies{}, cycle - 1, ctxErr
		}

		rmax = 0
		for _, p := range c.solved {
			if r := c.computeResidual(p); r > rmax {
				rmax = r
			}
		}

		commitAmplitudes(c.solved)

		energies := c.assembleEnergies()
		delta := energies.Total() - previous
		previous = energies.Total()

		extrapolated := false
		if rmax < th.DIISStart {
			extrapolated, err = extrapolator.extrapolate()
			if err != nil {
				return Energies{}, cycle, err
			}
		}

		if c.trace != nil {
			c.trace.WriteCycle(CycleStats{
				Cycle:        cycle,
				MaxResidual:  rmax,
				Energy:       energies.Total(),
				EnergyDelta:  delta,
				Extrapolated: extrapolated,
			})
		}

		c.metrics.RecordCycle(ctx, rmax, energies.Total())
		c.log.DebugContext(ctx, "cycle finished",
			"cycle", cycle,
			"max_residual", rmax,
			"energy", energies.Total(),
			"delta", delta,
			"extrapolated", extrapolated)

		if c.snapshot != nil && cycle%c.snapshotEvery == 0 {
			if snapErr := c.snapshot.Snapshot(cycle, c.solved); snapErr != nil {
				c.log.WarnContext(ctx, "amplitude snapshot failed", "cycle", cycle, "error", snapErr)
			}
		}

		if rmax < th.Convergence {
			return energies, cycle, nil
		}
	}

	return Energies{}, th.MaxCycles, fmt.Errorf("%w after %d cycles, max residual %.3e",
		ErrNotConverged, th.MaxCycles, rmax)
}

// runSemicanonical replaces the iteration with the closed-form
// uncoupled amplitudes of every solved pair.
func (c *Correction) runSemicanonical() Energies {
	for _, p := range c.solved {
		p.T.Copy(localcorr.SemicanonicalAmplitudes(p))
		p.Residual.Zero()
	}

	energies := c.assembleEnergies()

	if c.trace != nil {
		c.trace.WriteCycle(CycleStats{
			Cycle:       1,
			Energy:      energies.Total(),
			EnergyDelta: energies.Total(),
		})
	}

	return energies
}
