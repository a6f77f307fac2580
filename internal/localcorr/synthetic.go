package localcorr

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/pkg/alg/matfunc"
)

// ErrInvalidSynthetic indicates a synthetic-system description outside
// the supported ranges.
var ErrInvalidSynthetic = errors.New("localcorr: invalid synthetic system")

// SyntheticSpec describes a deterministic model system. It produces a
// controller with a dense upper-triangle pair list over a shared virtual
// domain, diagonally dominant denominators, and locality classes assigned
// by orbital separation.
type SyntheticSpec struct {
	// Occupied is the number of occupied orbitals.
	Occupied int

	// Domain is the virtual domain size shared by all pairs.
	Domain int

	// Coupling bounds the magnitude of off-diagonal Fock elements. Zero
	// produces a fully decoupled system.
	Coupling float64

	// DistantFrom and VeryDistantFrom are the orbital separations |j−i|
	// at which pairs are demoted to the distant and very distant classes.
	// Zero disables the respective demotion.
	DistantFrom     int
	VeryDistantFrom int

	// Seed fixes the pseudo-random stream. Equal specs synthesize equal
	// systems.
	Seed uint64
}

// Validate checks the description against its admissible ranges.
func (s SyntheticSpec) Validate() error {
	if s.Occupied < 1 {
		return fmt.Errorf("%w: occupied orbital count %d", ErrInvalidSynthetic, s.Occupied)
	}

	if s.Domain < 1 {
		return fmt.Errorf("%w: domain size %d", ErrInvalidSynthetic, s.Domain)
	}

	if s.Coupling < 0 {
		return fmt.Errorf("%w: coupling magnitude %g", ErrInvalidSynthetic, s.Coupling)
	}

	if s.DistantFrom < 0 || s.VeryDistantFrom < 0 {
		return fmt.Errorf("%w: negative separation bound", ErrInvalidSynthetic)
	}

	return nil
}

// Synthesize builds the model system and its coupling graph.
func Synthesize(spec SyntheticSpec, th Thresholds) (*Controller, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x9e3779b97f4a7c15))

	occupied := make([]float64, spec.Occupied)
	for i := range occupied {
		occupied[i] = -1.0 - 0.1*float64(i)
	}

	virtual := make([]float64, spec.Domain)
	for a := range virtual {
		virtual[a] = 0.8 + 0.15*float64(a)
	}

	fock := mat.NewSymDense(spec.Occupied, nil)
	for i := range spec.Occupied {
		fock.SetSym(i, i, occupied[i])
		for j := i + 1; j < spec.Occupied; j++ {
			fock.SetSym(i, j, spec.Coupling*(2*rng.Float64()-1))
		}
	}

	pairs := NewPairSet()
	for i := range spec.Occupied {
		for j := i; j < spec.Occupied; j++ {
			pair, err := syntheticPair(rng, spec, th, i, j, occupied, virtual)
			if err != nil {
				return nil, err
			}

			if _, err := pairs.Add(pair); err != nil {
				return nil, err
			}
		}
	}

	ctrl, err := NewController(pairs, fock, th)
	if err != nil {
		return nil, err
	}

	if err := ctrl.BuildCouplingGraph(IdentityOverlap{Pairs: pairs}); err != nil {
		return nil, err
	}

	return ctrl, nil
}

func syntheticPair(rng *rand.Rand, spec SyntheticSpec, th Thresholds, i, j int, occupied, virtual []float64) (*OrbitalPair, error) {
	n := spec.Domain

	k := mat.NewDense(n, n, nil)
	for a := range n {
		for b := range n {
			k.Set(a, b, 0.05*(2*rng.Float64()-1))
		}
	}

	if i == j {
		matfunc.Symmetrize(k)
	}

	uncoupled := mat.NewDense(n, n, nil)
	for a := range n {
		for b := range n {
			uncoupled.Set(a, b, virtual[a]+virtual[b]-occupied[i]-occupied[j])
		}
	}

	pair, err := NewOrbitalPair(i, j, classify(spec, i, j), k, uncoupled)
	if err != nil {
		return nil, err
	}

	pair.TruncationError = -1e-6 * (1 + rng.Float64())

	if pair.Class == PairClassVeryDistant {
		sep := float64(j - i)
		pair.DipoleEstimate = -2e-4 * math.Pow(sep, -6)

		// alternate estimate sources between pairs
		if (i+j)%2 == 0 {
			pair.SemicanonicalEstimate = SemicanonicalEnergy(pair, th.SameSpinScale, th.OppositeSpinScale)
		}
	}

	return pair, nil
}

func classify(spec SyntheticSpec, i, j int) PairClass {
	sep := j - i

	switch {
	case spec.VeryDistantFrom > 0 && sep >= spec.VeryDistantFrom:
		return PairClassVeryDistant
	case spec.DistantFrom > 0 && sep >= spec.DistantFrom:
		return PairClassDistant
	default:
		return PairClassClose
	}
}
