package lmp2

import (
	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/pkg/alg/matfunc"
)

// computeResidual evaluates one pair's residual
//
//	R = k + uncoupled ⊙ t − Σ_k [F(i,k)·S_kj·T_kj·S_kjᵀ + F(k,j)·S_ik·T_ik·S_ikᵀ]
//
// from the previous-cycle amplitudes and returns its maximum absolute
// entry.
func (c *Correction) computeResidual(p *localcorr.OrbitalPair) float64 {
	p.Residual.Copy(p.K)

	var uncoupled mat.Dense
	uncoupled.MulElem(p.Uncoupled, p.T)
	p.Residual.Add(p.Residual, &uncoupled)

	if sum := c.couplingSum(p); sum != nil {
		p.Residual.Sub(p.Residual, sum)
	}

	return matfunc.MaxAbs(p.Residual)
}

// commitAmplitudes applies the staged update t -= residual ⊘ uncoupled
// to every pair. It runs only after every residual of the cycle has
// been evaluated, so partner reads during residual evaluation always
// see previous-cycle amplitudes.
func commitAmplitudes(pairs []*localcorr.OrbitalPair) {
	var update mat.Dense

	for _, p := range pairs {
		update.Reset()
		update.DivElem(p.Residual, p.Uncoupled)
		p.T.Sub(p.T, &update)
	}
}
