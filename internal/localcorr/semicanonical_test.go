package localcorr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSemicanonicalAmplitudes_SolvesUncoupledEquation(t *testing.T) {
	t.Parallel()

	p := mustPair(t, 0, 0, PairClassClose,
		mat.NewDense(1, 1, []float64{0.1}),
		mat.NewDense(1, 1, []float64{-1}))

	amp := SemicanonicalAmplitudes(p)
	assert.InDelta(t, 0.1, amp.At(0, 0), 1e-15)

	// The residual k + u⊙t vanishes for the returned amplitudes.
	assert.InDelta(t, 0, p.K.At(0, 0)+p.Uncoupled.At(0, 0)*amp.At(0, 0), 1e-15)
}

func TestSemicanonicalEnergy_KnownValues(t *testing.T) {
	t.Parallel()

	diagonal := mustPair(t, 0, 0, PairClassClose,
		mat.NewDense(1, 1, []float64{0.1}),
		mat.NewDense(1, 1, []float64{-1}))
	assert.InDelta(t, 0.01, SemicanonicalEnergy(diagonal, 1, 1), 1e-15)

	offdiagonal := mustPair(t, 0, 1, PairClassClose,
		mat.NewDense(1, 1, []float64{0.05}),
		mat.NewDense(1, 1, []float64{-1}))
	assert.InDelta(t, 0.005, SemicanonicalEnergy(offdiagonal, 1, 1), 1e-15)
}

func TestEstimate_PrefersSemicanonical(t *testing.T) {
	t.Parallel()

	p := singletonPair(t, 0, 2, PairClassVeryDistant)
	p.DipoleEstimate = -1e-4

	assert.InDelta(t, -1e-4, p.Estimate(), 0, "dipole estimate is the fallback")

	p.SemicanonicalEstimate = -3e-4
	assert.InDelta(t, -3e-4, p.Estimate(), 0)
}
