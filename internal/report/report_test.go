package report_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/internal/report"
)

func reportThresholds() localcorr.Thresholds {
	return localcorr.Thresholds{
		Prescreening:      1e-5,
		Convergence:       1e-7,
		MaxCycles:         100,
		DIISStart:         1e-2,
		DIISDepth:         5,
		SameSpinScale:     1,
		OppositeSpinScale: 1,
	}
}

// solvedSystem runs a small correction to completion: two decoupled
// close pairs with known amplitudes and one very distant pair carrying
// a dipole estimate.
func solvedSystem(t *testing.T) (*localcorr.Controller, lmp2.Energies, *lmp2.History) {
	t.Helper()

	pairs := localcorr.NewPairSet()

	add := func(i, j int, class localcorr.PairClass, k float64) *localcorr.OrbitalPair {
		t.Helper()

		p, err := localcorr.NewOrbitalPair(i, j, class,
			mat.NewDense(1, 1, []float64{k}),
			mat.NewDense(1, 1, []float64{-1}))
		require.NoError(t, err)

		_, err = pairs.Add(p)
		require.NoError(t, err)

		return p
	}

	add(0, 0, localcorr.PairClassClose, 0.1)
	add(0, 1, localcorr.PairClassClose, 0.05)

	far := add(1, 2, localcorr.PairClassVeryDistant, 0)
	far.DipoleEstimate = -1e-4

	fock := mat.NewSymDense(3, nil)
	for d := range 3 {
		fock.SetSym(d, d, -1)
	}

	ctrl, err := localcorr.NewController(pairs, fock, reportThresholds())
	require.NoError(t, err)
	require.NoError(t, ctrl.BuildCouplingGraph(localcorr.IdentityOverlap{Pairs: pairs}))

	history := &lmp2.History{}

	corr, err := lmp2.New(ctrl, lmp2.Options{Workers: 1, Trace: history})
	require.NoError(t, err)

	energies, err := corr.Run(context.Background())
	require.NoError(t, err)

	return ctrl, energies, history
}

func solvedReport(t *testing.T) (*report.Report, *lmp2.History) {
	t.Helper()

	ctrl, energies, history := solvedSystem(t)

	rep := report.Build(ctrl, energies, history, report.Options{
		Mode:     lmp2.ModeExact,
		Workers:  1,
		Duration: 1500 * time.Millisecond,
		TopPairs: 5,
	})

	return rep, history
}

func TestBuild_SummarizesRun(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	assert.InDelta(t, 0.015, rep.Energies.Correlation, 1e-14)
	assert.InDelta(t, -1e-4, rep.Energies.Dipole, 1e-14)
	assert.InDelta(t, 0, rep.Energies.Truncation, 1e-14)
	assert.InDelta(t, 0.0149, rep.Energies.Total, 1e-14)

	assert.Equal(t, 2, rep.Cycles)
	assert.Equal(t, "1.5s", rep.Duration)

	assert.Equal(t, "exact", rep.Settings.Mode)
	assert.Equal(t, 1, rep.Settings.Workers)
	assert.InDelta(t, 1e-5, rep.Settings.Prescreening, 0)
	assert.InDelta(t, 1e-7, rep.Settings.Convergence, 0)
	assert.Equal(t, 100, rep.Settings.MaxCycles)
	assert.Equal(t, 5, rep.Settings.DIISDepth)

	assert.Equal(t, 2, rep.Stats.Close)
	assert.Equal(t, 0, rep.Stats.Distant)
	assert.Equal(t, 1, rep.Stats.VeryDistant)
	assert.InDelta(t, 1.0, rep.Stats.MeanDomain, 0)
	assert.Equal(t, 1, rep.Stats.MaxDomain)
	assert.Equal(t, 2, rep.Stats.AmplitudeCount)
	assert.Equal(t, "16 B", rep.Stats.AmplitudeMemory)
	assert.InDelta(t, 0, rep.Stats.ResidualRMS, 1e-14, "converged residuals vanish")
	assert.Zero(t, rep.ConvergenceRate, "final residual vanishes, so the last ratio is zero")
}

func TestBuild_OrdersPairsByContribution(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	require.Len(t, rep.Pairs, 3)

	first := rep.Pairs[0]
	assert.Equal(t, 0, first.I)
	assert.Equal(t, 0, first.J)
	assert.Equal(t, "close", first.Class)
	assert.InDelta(t, 0.01, first.Energy, 1e-14)

	second := rep.Pairs[1]
	assert.Equal(t, 0, second.I)
	assert.Equal(t, 1, second.J)
	assert.InDelta(t, 0.005, second.Energy, 1e-14)

	third := rep.Pairs[2]
	assert.Equal(t, "very-distant", third.Class)
	assert.InDelta(t, -1e-4, third.Energy, 1e-14, "very distant pairs report their estimate")
}

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	ctrl, energies, _ := solvedSystem(t)

	rep := report.Build(ctrl, energies, nil, report.Options{})

	assert.Equal(t, report.DefaultTopPairs, rep.TopPairs)
	assert.Positive(t, rep.Settings.Workers, "zero workers resolve to the CPU count")
	assert.Zero(t, rep.Cycles, "no history collected")
	assert.Zero(t, rep.ConvergenceRate)
	assert.Equal(t, "0s", rep.Duration)
}

func TestBuild_ConvergenceRate(t *testing.T) {
	t.Parallel()

	ctrl, energies, _ := solvedSystem(t)

	history := &lmp2.History{}
	history.WriteCycle(lmp2.CycleStats{Cycle: 1, MaxResidual: 1.0})
	history.WriteCycle(lmp2.CycleStats{Cycle: 2, MaxResidual: 0.5})
	history.WriteCycle(lmp2.CycleStats{Cycle: 3, MaxResidual: 0.1})

	rep := report.Build(ctrl, energies, history, report.Options{})

	// Ratios 0.5 and 0.2, averaged with the later cycle weighted in.
	assert.InDelta(t, 0.35, rep.ConvergenceRate, 1e-14)
	assert.Equal(t, 3, rep.Cycles)
}

func TestRender_Table(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	var out strings.Builder
	require.NoError(t, rep.Render(&out, report.FormatTable))

	rendered := out.String()
	lowered := strings.ToLower(rendered)

	assert.Contains(t, lowered, "hartree")
	assert.Contains(t, rendered, "Correlation")
	assert.Contains(t, rendered, "0.0150000000")
	assert.Contains(t, rendered, "-0.0001000000")
	assert.Contains(t, rendered, "0.0149000000")

	assert.Contains(t, rendered, "(0, 0)")
	assert.Contains(t, rendered, "(0, 1)")
	assert.Contains(t, rendered, "close")
	assert.Contains(t, lowered, "top 3 of 3 pairs")

	assert.Contains(t, rendered, "mode exact, 2 cycles in 1.5s")
	assert.Contains(t, rendered, "2 close, 0 distant, 1 very distant")
	assert.Contains(t, rendered, "16 B")
}

func TestRender_TableHonorsTopPairs(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)
	rep.TopPairs = 1

	var out strings.Builder
	require.NoError(t, rep.Render(&out, report.FormatTable))

	rendered := out.String()

	assert.Contains(t, rendered, "(0, 0)")
	assert.NotContains(t, rendered, "(0, 1)")
	assert.Contains(t, strings.ToLower(rendered), "top 1 of 3 pairs")
}

func TestRender_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	var out strings.Builder
	require.NoError(t, rep.Render(&out, report.FormatYAML))

	var decoded report.Report
	require.NoError(t, yaml.Unmarshal([]byte(out.String()), &decoded))

	assert.Equal(t, rep.Energies, decoded.Energies)
	assert.Equal(t, rep.Settings, decoded.Settings)
	assert.Equal(t, rep.Stats, decoded.Stats)
	assert.Equal(t, rep.Pairs, decoded.Pairs)
	assert.Equal(t, rep.Cycles, decoded.Cycles)
	assert.Equal(t, rep.Duration, decoded.Duration)
}

func TestRender_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	var out strings.Builder
	require.NoError(t, rep.Render(&out, report.FormatJSON))

	var decoded report.Report
	require.NoError(t, json.Unmarshal([]byte(out.String()), &decoded))

	assert.Equal(t, rep.Energies, decoded.Energies)
	assert.Equal(t, rep.Settings, decoded.Settings)
	assert.Equal(t, rep.Pairs, decoded.Pairs)
}

func TestRender_UnknownFormat(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	var out strings.Builder
	err := rep.Render(&out, "csv")

	require.ErrorIs(t, err, report.ErrUnknownFormat)
	assert.Empty(t, out.String())
}
