package lmp2

import (
	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/pkg/alg/diis"
)

// jointExtrapolator adapts [diis.Extrapolator] to the amplitude arena.
// It flattens every solved pair's amplitude and residual matrices into
// single vectors in a fixed traversal order, and scatters extrapolated
// amplitudes back over the same order, so the whole pair collection is
// extrapolated as one parameter vector.
type jointExtrapolator struct {
	ex    *diis.Extrapolator
	pairs []*localcorr.OrbitalPair
	size  int
}

func newJointExtrapolator(depth int, pairs []*localcorr.OrbitalPair) (*jointExtrapolator, error) {
	ex, err := diis.New(depth)
	if err != nil {
		return nil, err
	}

	size := 0
	for _, p := range pairs {
		n := p.Domain()
		size += n * n
	}

	return &jointExtrapolator{ex: ex, pairs: pairs, size: size}, nil
}

// extrapolate pushes the current (amplitude, residual) snapshot and,
// when the least-squares system is solvable, overwrites every amplitude
// with the extrapolated combination. With a history of one snapshot the
// combination equals the snapshot itself, leaving amplitudes unchanged.
func (j *jointExtrapolator) extrapolate() (bool, error) {
	amplitudes := make([]float64, 0, j.size)
	residuals := make([]float64, 0, j.size)

	for _, p := range j.pairs {
		amplitudes = appendMatrix(amplitudes, p.T)
		residuals = appendMatrix(residuals, p.Residual)
	}

	if err := j.ex.Push(amplitudes, residuals); err != nil {
		return false, err
	}

	combined, ok := j.ex.Extrapolate()
	if !ok {
		return false, nil
	}

	offset := 0
	for _, p := range j.pairs {
		offset = scatterMatrix(p.T, combined, offset)
	}

	return true, nil
}

func appendMatrix(dst []float64, m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	for r := range rows {
		for c := range cols {
			dst = append(dst, m.At(r, c))
		}
	}

	return dst
}

func scatterMatrix(m *mat.Dense, src []float64, offset int) int {
	rows, cols := m.Dims()
	for r := range rows {
		for c := range cols {
			m.Set(r, c, src[offset])
			offset++
		}
	}

	return offset
}
