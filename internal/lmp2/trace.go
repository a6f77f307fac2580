package lmp2

import (
	"fmt"
	"io"
)

// CycleStats is the per-cycle convergence diagnostic emitted by the
// solver: cycle index, global maximum absolute residual entry, running
// correlation energy and its change against the previous cycle.
type CycleStats struct {
	Cycle        int
	MaxResidual  float64
	Energy       float64
	EnergyDelta  float64
	Extrapolated bool
}

// TraceWriter receives one record per iteration cycle.
type TraceWriter interface {
	WriteCycle(stats CycleStats)
}

// History collects cycle records in memory for rendering convergence
// tables and plots after the run.
type History struct {
	cycles []CycleStats
}

// WriteCycle appends the record.
func (h *History) WriteCycle(stats CycleStats) {
	h.cycles = append(h.cycles, stats)
}

// Cycles returns the collected records in emission order.
func (h *History) Cycles() []CycleStats {
	out := make([]CycleStats, len(h.cycles))
	copy(out, h.cycles)

	return out
}

// Len returns the number of collected records.
func (h *History) Len() int {
	return len(h.cycles)
}

// StreamTrace prints an aligned convergence table to a writer as cycles
// complete. Extrapolated cycles carry a trailing asterisk.
type StreamTrace struct {
	w          io.Writer
	headerDone bool
}

// NewStreamTrace returns a trace printing to w.
func NewStreamTrace(w io.Writer) *StreamTrace {
	return &StreamTrace{w: w}
}

// WriteCycle prints one table row, preceded by the header on first use.
func (s *StreamTrace) WriteCycle(stats CycleStats) {
	if !s.headerDone {
		fmt.Fprintf(s.w, "%5s  %14s  %18s  %14s\n", "cycle", "max residual", "energy", "delta")

		s.headerDone = true
	}

	mark := " "
	if stats.Extrapolated {
		mark = "*"
	}

	fmt.Fprintf(s.w, "%5d  %14.6e  %18.12f  %14.6e %s\n",
		stats.Cycle, stats.MaxResidual, stats.Energy, stats.EnergyDelta, mark)
}

// MultiTrace fans each cycle record out to every writer in order.
func MultiTrace(writers ...TraceWriter) TraceWriter {
	return multiTrace(writers)
}

type multiTrace []TraceWriter

func (m multiTrace) WriteCycle(stats CycleStats) {
	for _, w := range m {
		w.WriteCycle(stats)
	}
}
