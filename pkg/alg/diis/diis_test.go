package diis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbelbabbel/serenity/pkg/alg/diis"
)

const tolerance = 1e-12

func TestNewRejectsInvalidDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		depth int
	}{
		{name: "zero", depth: 0},
		{name: "negative", depth: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := diis.New(tt.depth)
			require.ErrorIs(t, err, diis.ErrInvalidDepth)
		})
	}
}

func TestExtrapolateEmptyHistory(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(5)
	require.NoError(t, err)

	_, ok := ex.Extrapolate()
	assert.False(t, ok)
}

func TestExtrapolateSingleSnapshotIsNoOp(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(5)
	require.NoError(t, err)

	param := []float64{0.25, -1.5, 3.0}
	require.NoError(t, ex.Push(param, []float64{1, 1, 1}))

	got, ok := ex.Extrapolate()
	require.True(t, ok)

	for i, want := range param {
		assert.InDelta(t, want, got[i], tolerance)
	}
}

func TestExtrapolateCancelsOpposedErrors(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(5)
	require.NoError(t, err)

	// Errors +1 and -1 cancel exactly at equal weights, so the combined
	// parameter is the midpoint.
	require.NoError(t, ex.Push([]float64{0}, []float64{1}))
	require.NoError(t, ex.Push([]float64{2}, []float64{-1}))

	got, ok := ex.Extrapolate()
	require.True(t, ok)
	assert.InDelta(t, 1.0, got[0], tolerance)
}

func TestExtrapolateSingularMatrix(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(5)
	require.NoError(t, err)

	// Identical error vectors make the overlap matrix rank one; the solve
	// must report failure instead of returning garbage coefficients.
	require.NoError(t, ex.Push([]float64{0}, []float64{1}))
	require.NoError(t, ex.Push([]float64{2}, []float64{1}))

	_, ok := ex.Extrapolate()
	assert.False(t, ok)
}

func TestPushEvictsOldestBeyondDepth(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(2)
	require.NoError(t, err)

	require.NoError(t, ex.Push([]float64{1}, []float64{4}))
	require.NoError(t, ex.Push([]float64{2}, []float64{2}))
	require.NoError(t, ex.Push([]float64{3}, []float64{-2}))

	assert.Equal(t, 2, ex.Len())

	// Remaining errors +2 and -2 cancel at equal weights.
	got, ok := ex.Extrapolate()
	require.True(t, ok)
	assert.InDelta(t, 2.5, got[0], tolerance)
}

func TestPushDimensionMismatch(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(3)
	require.NoError(t, err)

	require.NoError(t, ex.Push([]float64{1, 2}, []float64{0, 0}))

	err = ex.Push([]float64{1}, []float64{0, 0})
	require.ErrorIs(t, err, diis.ErrDimensionMismatch)

	err = ex.Push([]float64{1, 2}, []float64{0})
	require.ErrorIs(t, err, diis.ErrDimensionMismatch)
}

func TestPushCopiesInput(t *testing.T) {
	t.Parallel()

	ex, err := diis.New(2)
	require.NoError(t, err)

	param := []float64{1}
	require.NoError(t, ex.Push(param, []float64{1}))

	param[0] = 99

	got, ok := ex.Extrapolate()
	require.True(t, ok)
	assert.InDelta(t, 1.0, got[0], tolerance)
}
