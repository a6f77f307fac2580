package localcorr

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Validation errors of controller construction and graph building.
var (
	// ErrNilFock indicates a missing occupied-space Fock matrix.
	ErrNilFock = errors.New("localcorr: controller needs a Fock matrix")
	// ErrOrbitalOutOfRange indicates a pair index beyond the Fock dimension.
	ErrOrbitalOutOfRange = errors.New("localcorr: pair index outside the Fock dimension")
	// ErrNonPositivePrescreening indicates a prescreening threshold <= 0.
	ErrNonPositivePrescreening = errors.New("localcorr: prescreening threshold must be positive")
	// ErrNonPositiveConvergence indicates a convergence threshold <= 0.
	ErrNonPositiveConvergence = errors.New("localcorr: convergence threshold must be positive")
	// ErrNonPositiveMaxCycles indicates a cycle limit < 1.
	ErrNonPositiveMaxCycles = errors.New("localcorr: maximum cycle count must be at least 1")
	// ErrNonPositiveDIISStart indicates a DIIS activation residual <= 0.
	ErrNonPositiveDIISStart = errors.New("localcorr: DIIS start residual must be positive")
	// ErrNonPositiveDIISDepth indicates a DIIS history depth < 1.
	ErrNonPositiveDIISDepth = errors.New("localcorr: DIIS history depth must be at least 1")
	// ErrNegativeScaling indicates a negative spin-component scaling factor.
	ErrNegativeScaling = errors.New("localcorr: spin-component scaling factors must not be negative")
	// ErrProjectionShape indicates an overlap projection whose dimensions do
	// not match the two pair domains it maps between.
	ErrProjectionShape = errors.New("localcorr: projection shape does not match pair domains")
)

// Thresholds are the numeric knobs of one correction: screening and
// convergence criteria, the cycle limit, DIIS activation, and the
// spin-component scaling factors entering the energy.
type Thresholds struct {
	// Prescreening is the minimum |F(i,k)| for a coupling term to be
	// accumulated into a residual.
	Prescreening float64

	// Convergence is the maximum absolute residual entry at which the
	// iteration stops.
	Convergence float64

	// MaxCycles bounds the iteration count.
	MaxCycles int

	// DIISStart activates amplitude extrapolation once the residual
	// maximum drops below it. DIISDepth is the extrapolation history.
	DIISStart float64
	DIISDepth int

	// SameSpinScale and OppositeSpinScale weight the two spin channels of
	// every pair energy.
	SameSpinScale     float64
	OppositeSpinScale float64
}

// Validate checks every threshold against its admissible range.
func (t Thresholds) Validate() error {
	if t.Prescreening <= 0 {
		return fmt.Errorf("%w: got %g", ErrNonPositivePrescreening, t.Prescreening)
	}

	if t.Convergence <= 0 {
		return fmt.Errorf("%w: got %g", ErrNonPositiveConvergence, t.Convergence)
	}

	if t.MaxCycles < 1 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveMaxCycles, t.MaxCycles)
	}

	if t.DIISStart <= 0 {
		return fmt.Errorf("%w: got %g", ErrNonPositiveDIISStart, t.DIISStart)
	}

	if t.DIISDepth < 1 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveDIISDepth, t.DIISDepth)
	}

	if t.SameSpinScale < 0 || t.OppositeSpinScale < 0 {
		return fmt.Errorf("%w: got ss=%g os=%g", ErrNegativeScaling, t.SameSpinScale, t.OppositeSpinScale)
	}

	return nil
}

// OverlapProvider supplies the rectangular projections between truncated
// virtual domains. Between returns the matrix mapping the domain of `to`
// into the domain of `from`: its row count is the domain size of `from`,
// its column count the domain size of `to`.
type OverlapProvider interface {
	Between(from, to PairKey) (*mat.Dense, error)
}

// Controller aggregates everything one correction runs on: the pair
// arena, the occupied-space Fock matrix, and the numeric thresholds.
type Controller struct {
	Pairs      *PairSet
	Fock       *mat.SymDense
	Thresholds Thresholds
}

// NewController validates the aggregate: a Fock matrix large enough for
// every pair index, and thresholds in range.
func NewController(pairs *PairSet, fock *mat.SymDense, th Thresholds) (*Controller, error) {
	if fock == nil {
		return nil, ErrNilFock
	}

	if err := th.Validate(); err != nil {
		return nil, err
	}

	if pairs == nil {
		pairs = NewPairSet()
	}

	dim := fock.SymmetricDim()
	for _, p := range pairs.All() {
		if p.J >= dim {
			return nil, fmt.Errorf("%w: pair %s, Fock dimension %d", ErrOrbitalOutOfRange, p.Key(), dim)
		}
	}

	return &Controller{Pairs: pairs, Fock: fock, Thresholds: th}, nil
}

// Occupied returns the number of occupied orbitals.
func (c *Controller) Occupied() int {
	return c.Fock.SymmetricDim()
}

// BuildCouplingGraph assembles the coupling sets of every solvable pair.
// For a pair (i, j) and each coupling orbital k it references the partner
// pairs (k, j) and (i, k) and fetches the domain projections from the
// provider. Partners that were never stored, were classified very
// distant, or would couple an orbital with itself are left absent;
// coupling orbitals with no partner on either side produce no set at all.
func (c *Controller) BuildCouplingGraph(overlaps OverlapProvider) error {
	occupied := c.Occupied()

	for _, p := range c.Pairs.Solved() {
		p.Couplings = p.Couplings[:0]

		for k := range occupied {
			var kjRef, ikRef PairRef
			if k != p.I {
				kjRef = c.solvableRef(NewPairKey(k, p.J))
			}

			if k != p.J {
				ikRef = c.solvableRef(NewPairKey(p.I, k))
			}

			if !kjRef.Present() && !ikRef.Present() {
				continue
			}

			coupling := Coupling{
				K:            k,
				KJ:           kjRef,
				IK:           ikRef,
				KJTransposed: k > p.J,
				IKTransposed: p.I > k,
			}

			if kjRef.Present() {
				s, err := c.projection(overlaps, p, NewPairKey(k, p.J))
				if err != nil {
					return err
				}

				coupling.SKJ = s
			}

			if ikRef.Present() {
				s, err := c.projection(overlaps, p, NewPairKey(p.I, k))
				if err != nil {
					return err
				}

				coupling.SIK = s
			}

			p.Couplings = append(p.Couplings, coupling)
		}
	}

	return nil
}

// solvableRef resolves a key to a present reference only when the stored
// pair enters the iteration.
func (c *Controller) solvableRef(key PairKey) PairRef {
	id, ok := c.Pairs.Lookup(key)
	if !ok || !c.Pairs.Pair(id).Class.Solvable() {
		return PairRef{}
	}

	return RefTo(id)
}

func (c *Controller) projection(overlaps OverlapProvider, p *OrbitalPair, partnerKey PairKey) (*mat.Dense, error) {
	s, err := overlaps.Between(p.Key(), partnerKey)
	if err != nil {
		return nil, fmt.Errorf("projection %s -> %s: %w", partnerKey, p.Key(), err)
	}

	partner := c.Pairs.ByKey(partnerKey)

	rows, cols := s.Dims()
	if rows != p.Domain() || cols != partner.Domain() {
		return nil, fmt.Errorf("%w: %s -> %s is %dx%d, want %dx%d",
			ErrProjectionShape, partnerKey, p.Key(), rows, cols, p.Domain(), partner.Domain())
	}

	return s, nil
}

// IdentityOverlap serves calculations whose pair domains all share one
// basis, where every projection is the identity. Differing domain sizes
// are rejected.
type IdentityOverlap struct {
	Pairs *PairSet
}

// ErrDomainSizeMismatch indicates an identity projection requested
// between pairs of different domain sizes.
var ErrDomainSizeMismatch = errors.New("localcorr: identity overlap between differently sized domains")

// Between returns an identity projection when both domains match in size.
func (o IdentityOverlap) Between(from, to PairKey) (*mat.Dense, error) {
	a := o.Pairs.ByKey(from)
	b := o.Pairs.ByKey(to)

	if a == nil || b == nil {
		return nil, fmt.Errorf("localcorr: identity overlap of unknown pair %s or %s", from, to)
	}

	if a.Domain() != b.Domain() {
		return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrDomainSizeMismatch, from, a.Domain(), to, b.Domain())
	}

	eye := mat.NewDense(a.Domain(), a.Domain(), nil)
	for d := range a.Domain() {
		eye.Set(d, d, 1)
	}

	return eye, nil
}
