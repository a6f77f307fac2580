// Package report renders the outcome of a finished correction for
// humans and machines: a go-pretty summary table, yaml/json documents,
// and a standalone HTML convergence page.
package report

import (
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/pkg/alg/stats"
)

// DefaultTopPairs bounds the pair table when no limit is configured.
const DefaultTopPairs = 10

// bytesPerAmplitude is the storage size of one float64 amplitude entry.
const bytesPerAmplitude = 8

// EnergySummary is the three-component energy plus its total.
type EnergySummary struct {
	Correlation float64 `yaml:"correlation" json:"correlation"`
	Dipole      float64 `yaml:"dipole" json:"dipole"`
	Truncation  float64 `yaml:"truncation" json:"truncation"`
	Total       float64 `yaml:"total" json:"total"`
}

// SettingsEcho restates the numeric knobs the correction ran with, so a
// stored report is interpretable without the settings file it came from.
type SettingsEcho struct {
	Mode              string  `yaml:"mode" json:"mode"`
	Prescreening      float64 `yaml:"prescreening_threshold" json:"prescreening_threshold"`
	Convergence       float64 `yaml:"convergence_threshold" json:"convergence_threshold"`
	MaxCycles         int     `yaml:"max_cycles" json:"max_cycles"`
	DIISStart         float64 `yaml:"diis_start_residual" json:"diis_start_residual"`
	DIISDepth         int     `yaml:"diis_max_store" json:"diis_max_store"`
	SameSpinScale     float64 `yaml:"same_spin_scale" json:"same_spin_scale"`
	OppositeSpinScale float64 `yaml:"opposite_spin_scale" json:"opposite_spin_scale"`
	Workers           int     `yaml:"workers" json:"workers"`
}

// PairRow is one pair's line in the result table. Solved pairs carry
// their converged contribution, very distant pairs their estimate.
type PairRow struct {
	I               int     `yaml:"i" json:"i"`
	J               int     `yaml:"j" json:"j"`
	Class           string  `yaml:"class" json:"class"`
	Domain          int     `yaml:"domain" json:"domain"`
	Energy          float64 `yaml:"energy" json:"energy"`
	TruncationError float64 `yaml:"truncation_error" json:"truncation_error"`
}

// PairStats aggregates the pair list into a few diagnostics.
type PairStats struct {
	Close           int     `yaml:"close" json:"close"`
	Distant         int     `yaml:"distant" json:"distant"`
	VeryDistant     int     `yaml:"very_distant" json:"very_distant"`
	MeanDomain      float64 `yaml:"mean_domain" json:"mean_domain"`
	MaxDomain       int     `yaml:"max_domain" json:"max_domain"`
	AmplitudeCount  int     `yaml:"amplitude_count" json:"amplitude_count"`
	AmplitudeMemory string  `yaml:"amplitude_memory" json:"amplitude_memory"`
	ResidualRMS     float64 `yaml:"residual_rms" json:"residual_rms"`
}

// Report is the presentation model of one correction run. Pairs are
// sorted by descending contribution magnitude.
type Report struct {
	Energies EnergySummary `yaml:"energies" json:"energies"`
	Cycles   int           `yaml:"cycles" json:"cycles"`

	// ConvergenceRate is the smoothed per-cycle shrink factor of the
	// maximum residual, weighted toward the late cycles. Zero when the
	// trace holds fewer than two cycles.
	ConvergenceRate float64 `yaml:"convergence_rate" json:"convergence_rate"`

	Duration string       `yaml:"duration" json:"duration"`
	Settings SettingsEcho `yaml:"settings" json:"settings"`
	Stats    PairStats    `yaml:"statistics" json:"statistics"`
	Pairs    []PairRow    `yaml:"pairs" json:"pairs"`

	// TopPairs bounds the pair table of the text renderer and the plot.
	// Machine formats always carry every row.
	TopPairs int `yaml:"-" json:"-"`
}

// Options describe the run whose outcome is being reported.
type Options struct {
	Mode     lmp2.Mode
	Workers  int
	Duration time.Duration
	TopPairs int
}

// Build assembles the report from a finished correction. The history
// may be nil when no trace was collected.
func Build(ctrl *localcorr.Controller, energies lmp2.Energies, history *lmp2.History, opts Options) *Report {
	th := ctrl.Thresholds

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	topPairs := opts.TopPairs
	if topPairs <= 0 {
		topPairs = DefaultTopPairs
	}

	rep := &Report{
		Energies: EnergySummary{
			Correlation: energies.Correlation,
			Dipole:      energies.Dipole,
			Truncation:  energies.Truncation,
			Total:       energies.Total(),
		},
		Duration: opts.Duration.Round(time.Microsecond).String(),
		Settings: SettingsEcho{
			Mode:              opts.Mode.String(),
			Prescreening:      th.Prescreening,
			Convergence:       th.Convergence,
			MaxCycles:         th.MaxCycles,
			DIISStart:         th.DIISStart,
			DIISDepth:         th.DIISDepth,
			SameSpinScale:     th.SameSpinScale,
			OppositeSpinScale: th.OppositeSpinScale,
			Workers:           workers,
		},
		Stats:    pairStats(ctrl.Pairs),
		Pairs:    pairRows(ctrl.Pairs),
		TopPairs: topPairs,
	}

	if history != nil {
		rep.Cycles = history.Len()
		rep.ConvergenceRate = convergenceRate(history.Cycles())
	}

	return rep
}

// decayRateSmoothing weights the residual decay average toward recent
// cycles, where extrapolation has settled the rate.
const decayRateSmoothing = 0.5

// convergenceRate smooths the ratios of successive maximum residuals.
// Cycles following a vanished residual contribute no ratio.
func convergenceRate(cycles []lmp2.CycleStats) float64 {
	ema := stats.NewEMA(decayRateSmoothing)

	for i := 1; i < len(cycles); i++ {
		prev := cycles[i-1].MaxResidual
		if prev <= 0 {
			continue
		}

		ema.Update(cycles[i].MaxResidual / prev)
	}

	return ema.Value()
}

// pairRows flattens the arena into table rows sorted by contribution
// magnitude, ties broken by index for a stable order.
func pairRows(pairs *localcorr.PairSet) []PairRow {
	all := pairs.All()
	rows := make([]PairRow, 0, len(all))

	for _, p := range all {
		row := PairRow{
			I:               p.I,
			J:               p.J,
			Class:           p.Class.String(),
			Domain:          p.Domain(),
			Energy:          p.Energy,
			TruncationError: p.TruncationError,
		}

		if p.Class == localcorr.PairClassVeryDistant {
			row.Energy = p.Estimate()
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(a, b int) bool {
		ea, eb := math.Abs(rows[a].Energy), math.Abs(rows[b].Energy)
		if ea != eb {
			return ea > eb
		}

		if rows[a].I != rows[b].I {
			return rows[a].I < rows[b].I
		}

		return rows[a].J < rows[b].J
	})

	return rows
}

func pairStats(pairs *localcorr.PairSet) PairStats {
	var out PairStats

	all := pairs.All()
	domains := make([]int, 0, len(all))

	for _, p := range all {
		domains = append(domains, p.Domain())

		switch p.Class {
		case localcorr.PairClassClose:
			out.Close++
		case localcorr.PairClassDistant:
			out.Distant++
		case localcorr.PairClassVeryDistant:
			out.VeryDistant++
		}
	}

	sizes := make([]float64, len(domains))
	for i, d := range domains {
		sizes[i] = float64(d)
	}

	out.MeanDomain = stats.Mean(sizes)
	out.MaxDomain = stats.Max(domains)

	var residuals []float64

	for _, p := range pairs.Solved() {
		out.AmplitudeCount += p.Domain() * p.Domain()

		rows, cols := p.Residual.Dims()
		for r := range rows {
			for c := range cols {
				residuals = append(residuals, p.Residual.At(r, c))
			}
		}
	}

	out.AmplitudeMemory = humanize.Bytes(uint64(out.AmplitudeCount) * bytesPerAmplitude)
	out.ResidualRMS = stats.RootMeanSquare(residuals)

	return out
}
