package localcorr

import "gonum.org/v1/gonum/mat"

// SemicanonicalAmplitudes returns the closed-form amplitudes of the pair
// with every coupling dropped, i.e. the exact solution of
//
//	0 = k + uncoupled ⊙ t
//
// which is t = −k ⊘ uncoupled.
func SemicanonicalAmplitudes(p *OrbitalPair) *mat.Dense {
	rows, cols := p.K.Dims()

	t := mat.NewDense(rows, cols, nil)
	for r := range rows {
		for c := range cols {
			t.Set(r, c, -p.K.At(r, c)/p.Uncoupled.At(r, c))
		}
	}

	return t
}

// SemicanonicalEnergy evaluates the pair energy of the semicanonical
// amplitudes. It is the cheap per-pair estimate used for screening and
// as the non-iterative solver mode.
func SemicanonicalEnergy(p *OrbitalPair, ssScale, osScale float64) float64 {
	return weightedPairEnergy(p.I, p.J, SemicanonicalAmplitudes(p), p.K, ssScale, osScale)
}

// Estimate returns the energy contribution of a pair that never enters
// the iteration: its semicanonical estimate when one was computed,
// otherwise its dipole estimate.
func (p *OrbitalPair) Estimate() float64 {
	if p.SemicanonicalEstimate != 0 {
		return p.SemicanonicalEstimate
	}

	return p.DipoleEstimate
}
