package localcorr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSynthesize_Deterministic(t *testing.T) {
	t.Parallel()

	spec := SyntheticSpec{Occupied: 4, Domain: 3, Coupling: 0.01, Seed: 42}

	first, err := Synthesize(spec, testThresholds())
	require.NoError(t, err)

	second, err := Synthesize(spec, testThresholds())
	require.NoError(t, err)

	assert.True(t, mat.Equal(first.Fock, second.Fock), "equal seeds produce equal Fock matrices")
	require.Equal(t, first.Pairs.Len(), second.Pairs.Len())
	assert.True(t, mat.Equal(first.Pairs.Pair(0).K, second.Pairs.Pair(0).K))

	spec.Seed = 43

	third, err := Synthesize(spec, testThresholds())
	require.NoError(t, err)
	assert.False(t, mat.Equal(first.Pairs.Pair(0).K, third.Pairs.Pair(0).K), "seeds must matter")
}

func TestSynthesize_ClassAssignment(t *testing.T) {
	t.Parallel()

	spec := SyntheticSpec{
		Occupied:        6,
		Domain:          2,
		DistantFrom:     2,
		VeryDistantFrom: 4,
		Seed:            1,
	}

	ctrl, err := Synthesize(spec, testThresholds())
	require.NoError(t, err)

	require.Equal(t, 21, ctrl.Pairs.Len(), "dense upper triangle of 6 orbitals")

	var close, distant, far int
	for _, p := range ctrl.Pairs.All() {
		switch p.Class {
		case PairClassClose:
			close++
		case PairClassDistant:
			distant++
		case PairClassVeryDistant:
			far++
		}

		switch {
		case p.J-p.I >= 4:
			assert.Equal(t, PairClassVeryDistant, p.Class, "pair %s", p.Key())
		case p.J-p.I >= 2:
			assert.Equal(t, PairClassDistant, p.Class, "pair %s", p.Key())
		default:
			assert.Equal(t, PairClassClose, p.Class, "pair %s", p.Key())
		}
	}

	assert.Equal(t, 11, close)
	assert.Equal(t, 7, distant)
	assert.Equal(t, 3, far)
}

func TestSynthesize_AllCloseWithoutSeparationBounds(t *testing.T) {
	t.Parallel()

	ctrl, err := Synthesize(SyntheticSpec{Occupied: 3, Domain: 2, Seed: 7}, testThresholds())
	require.NoError(t, err)

	for _, p := range ctrl.Pairs.All() {
		assert.Equal(t, PairClassClose, p.Class)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec SyntheticSpec
	}{
		{name: "no_orbitals", spec: SyntheticSpec{Occupied: 0, Domain: 2}},
		{name: "empty_domain", spec: SyntheticSpec{Occupied: 2, Domain: 0}},
		{name: "negative_coupling", spec: SyntheticSpec{Occupied: 2, Domain: 2, Coupling: -0.1}},
		{name: "negative_separation", spec: SyntheticSpec{Occupied: 2, Domain: 2, DistantFrom: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Synthesize(tt.spec, testThresholds())
			require.ErrorIs(t, err, ErrInvalidSynthetic)
		})
	}
}

func TestSynthesize_SystemShape(t *testing.T) {
	t.Parallel()

	ctrl, err := Synthesize(SyntheticSpec{Occupied: 5, Domain: 3, Coupling: 0.02, Seed: 99}, testThresholds())
	require.NoError(t, err)

	for _, p := range ctrl.Pairs.All() {
		rows, cols := p.Uncoupled.Dims()
		require.Equal(t, 3, rows)
		require.Equal(t, 3, cols)

		// Denominators stay strictly positive, which keeps the fixed
		// point attractive for weak coupling.
		for r := range rows {
			for c := range cols {
				assert.Greater(t, p.Uncoupled.At(r, c), 0.0)
			}
		}

		if p.Diagonal() {
			diff := mat.NewDense(3, 3, nil)
			diff.Sub(p.K, p.K.T())
			assert.InDelta(t, 0, mat.Norm(diff, 1), 1e-15, "diagonal pair %s has symmetric exchange", p.Key())
		}
	}
}

func TestSynthesize_BuildsCouplingGraph(t *testing.T) {
	t.Parallel()

	ctrl, err := Synthesize(SyntheticSpec{Occupied: 4, Domain: 2, Coupling: 0.05, Seed: 3}, testThresholds())
	require.NoError(t, err)

	for _, p := range ctrl.Pairs.Solved() {
		assert.NotEmpty(t, p.Couplings, "pair %s", p.Key())

		for _, c := range p.Couplings {
			if c.KJ.Present() {
				require.NotNil(t, c.SKJ)
			}

			if c.IK.Present() {
				require.NotNil(t, c.SIK)
			}
		}
	}
}

func TestSynthesize_VeryDistantEstimates(t *testing.T) {
	t.Parallel()

	ctrl, err := Synthesize(SyntheticSpec{
		Occupied:        3,
		Domain:          2,
		VeryDistantFrom: 1,
		Seed:            11,
	}, testThresholds())
	require.NoError(t, err)

	far := ctrl.Pairs.VeryDistant()
	require.Len(t, far, 3)

	for _, p := range far {
		assert.Empty(t, p.Couplings, "very distant pairs stay out of the iteration")
		assert.Negative(t, p.DipoleEstimate)
		assert.Negative(t, p.Estimate())
	}

	// (0,2) carries a semicanonical estimate, (0,1) falls back to its
	// dipole estimate.
	withSemi := ctrl.Pairs.ByKey(PairKey{I: 0, J: 2})
	assert.NotZero(t, withSemi.SemicanonicalEstimate)
	assert.InDelta(t, withSemi.SemicanonicalEstimate, withSemi.Estimate(), 0)

	dipoleOnly := ctrl.Pairs.ByKey(PairKey{I: 0, J: 1})
	assert.Zero(t, dipoleOnly.SemicanonicalEstimate)
	assert.InDelta(t, dipoleOnly.DipoleEstimate, dipoleOnly.Estimate(), 0)
}
