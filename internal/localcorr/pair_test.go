package localcorr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func denseOf(rows, cols int, data ...float64) *mat.Dense {
	return mat.NewDense(rows, cols, data)
}

func mustPair(t *testing.T, i, j int, class PairClass, k, uncoupled *mat.Dense) *OrbitalPair {
	t.Helper()

	p, err := NewOrbitalPair(i, j, class, k, uncoupled)
	require.NoError(t, err)

	return p
}

func TestPairClass_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, class := range []PairClass{PairClassClose, PairClassDistant, PairClassVeryDistant} {
		parsed, err := ParsePairClass(class.String())
		require.NoError(t, err)
		assert.Equal(t, class, parsed)
	}
}

func TestParsePairClass_Unknown(t *testing.T) {
	t.Parallel()

	_, err := ParsePairClass("medium")
	require.ErrorIs(t, err, ErrUnknownPairClass)
}

func TestPairClass_Solvable(t *testing.T) {
	t.Parallel()

	assert.True(t, PairClassClose.Solvable())
	assert.True(t, PairClassDistant.Solvable())
	assert.False(t, PairClassVeryDistant.Solvable())
}

func TestNewOrbitalPair_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		i, j      int
		k         *mat.Dense
		uncoupled *mat.Dense
		wantErr   error
	}{
		{
			name:      "reversed_indices",
			i:         2,
			j:         1,
			k:         denseOf(1, 1, 0.1),
			uncoupled: denseOf(1, 1, -1),
			wantErr:   ErrPairOrder,
		},
		{
			name:      "negative_index",
			i:         -1,
			j:         0,
			k:         denseOf(1, 1, 0.1),
			uncoupled: denseOf(1, 1, -1),
			wantErr:   ErrPairOrder,
		},
		{
			name:      "rectangular_exchange",
			i:         0,
			j:         1,
			k:         denseOf(1, 2, 0.1, 0.2),
			uncoupled: denseOf(1, 1, -1),
			wantErr:   ErrShapeMismatch,
		},
		{
			name:      "mismatched_uncoupled",
			i:         0,
			j:         1,
			k:         denseOf(2, 2, 0.1, 0.2, 0.3, 0.4),
			uncoupled: denseOf(1, 1, -1),
			wantErr:   ErrShapeMismatch,
		},
		{
			name:      "zero_denominator_entry",
			i:         0,
			j:         1,
			k:         denseOf(2, 2, 0.1, 0.2, 0.3, 0.4),
			uncoupled: denseOf(2, 2, -1, -1, 0, -1),
			wantErr:   ErrZeroDenominator,
		},
		{
			name:      "valid",
			i:         0,
			j:         1,
			k:         denseOf(2, 2, 0.1, 0.2, 0.3, 0.4),
			uncoupled: denseOf(2, 2, -1, -2, -3, -4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewOrbitalPair(tt.i, tt.j, PairClassClose, tt.k, tt.uncoupled)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, 2, p.Domain())
			assert.InDelta(t, 0, mat.Norm(p.T, 1), 0, "amplitudes start at zero")
			assert.InDelta(t, 0, mat.Norm(p.Residual, 1), 0)
		})
	}
}

func TestNewOrbitalPair_CopiesInputs(t *testing.T) {
	t.Parallel()

	k := denseOf(1, 1, 0.1)
	uncoupled := denseOf(1, 1, -1)

	p := mustPair(t, 0, 0, PairClassClose, k, uncoupled)

	k.Set(0, 0, 99)
	uncoupled.Set(0, 0, 99)

	assert.InDelta(t, 0.1, p.K.At(0, 0), 0)
	assert.InDelta(t, -1.0, p.Uncoupled.At(0, 0), 0)
}

func TestOrbitalPair_Amplitude_TransposeView(t *testing.T) {
	t.Parallel()

	p := mustPair(t, 0, 1, PairClassClose,
		denseOf(2, 2, 0, 0, 0, 0),
		denseOf(2, 2, -1, -1, -1, -1))
	p.T.Set(0, 1, 0.25)

	direct := p.Amplitude(false)
	assert.InDelta(t, 0.25, direct.At(0, 1), 0)
	assert.InDelta(t, 0, direct.At(1, 0), 0)

	flipped := p.Amplitude(true)
	assert.InDelta(t, 0.25, flipped.At(1, 0), 0)
	assert.InDelta(t, 0, flipped.At(0, 1), 0)
}

func TestOrbitalPair_WeightedEnergy(t *testing.T) {
	t.Parallel()

	k := denseOf(2, 2, 1, 2, 3, 4)
	uncoupled := denseOf(2, 2, -1, -1, -1, -1)

	// t − tᵀ has off-diagonal entries ±0.1, so the same-spin sum is
	// −0.1·2 + 0.1·3 = 0.1; the opposite-spin sum is 0.1+0.4+0.9+1.6 = 3.
	tests := []struct {
		name    string
		i, j    int
		ssScale float64
		osScale float64
		want    float64
	}{
		{name: "diagonal_unscaled", i: 0, j: 0, ssScale: 1, osScale: 1, want: 3.1},
		{name: "offdiagonal_double_weight", i: 0, j: 1, ssScale: 1, osScale: 1, want: 6.2},
		{name: "opposite_spin_only", i: 0, j: 1, ssScale: 0, osScale: 1, want: 6.0},
		{name: "scaled_channels", i: 0, j: 0, ssScale: 0.5, osScale: 2, want: 6.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := mustPair(t, tt.i, tt.j, PairClassClose, k, uncoupled)
			p.T.SetRow(0, []float64{0.1, 0.2})
			p.T.SetRow(1, []float64{0.3, 0.4})

			assert.InDelta(t, tt.want, p.WeightedEnergy(tt.ssScale, tt.osScale), 1e-12)
		})
	}
}

func TestPairKey_Canonical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PairKey{I: 1, J: 3}, NewPairKey(3, 1))
	assert.Equal(t, PairKey{I: 1, J: 3}, NewPairKey(1, 3))
	assert.Equal(t, "(1,3)", NewPairKey(3, 1).String())
}

func TestPairRef_Optional(t *testing.T) {
	t.Parallel()

	var absent PairRef
	assert.False(t, absent.Present())
	assert.Panics(t, func() { absent.ID() })

	ref := RefTo(7)
	assert.True(t, ref.Present())
	assert.Equal(t, PairID(7), ref.ID())
}
