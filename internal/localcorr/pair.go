// Package localcorr models the entities of a local correlation calculation:
// occupied-orbital pairs with truncated virtual domains, the coupling
// topology between them, and the controller aggregating pairs, Fock matrix
// and numeric thresholds for one correction.
package localcorr

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PairClass is the locality classification of an orbital pair. It controls
// how rigorously the pair is treated: close and distant pairs enter the
// residual iteration, very distant pairs contribute only through
// precomputed estimates.
type PairClass uint8

// Locality classes, ordered by decreasing rigor.
const (
	PairClassClose PairClass = iota
	PairClassDistant
	PairClassVeryDistant
)

// pairClassNames maps classes to their stable string form used in files
// and reports.
var pairClassNames = map[PairClass]string{
	PairClassClose:       "close",
	PairClassDistant:     "distant",
	PairClassVeryDistant: "very-distant",
}

// ErrUnknownPairClass indicates a class string that is none of
// close/distant/very-distant.
var ErrUnknownPairClass = errors.New("localcorr: unknown pair class")

// String returns the stable lowercase name of the class.
func (c PairClass) String() string {
	name, ok := pairClassNames[c]
	if !ok {
		return fmt.Sprintf("pairclass(%d)", uint8(c))
	}

	return name
}

// ParsePairClass converts a stable class name back into a PairClass.
func ParsePairClass(s string) (PairClass, error) {
	for class, name := range pairClassNames {
		if name == s {
			return class, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownPairClass, s)
}

// Solvable reports whether pairs of this class enter the residual
// iteration.
func (c PairClass) Solvable() bool {
	return c == PairClassClose || c == PairClassDistant
}

// Sentinel errors for pair construction.
var (
	// ErrPairOrder indicates indices violating the i ≤ j storage convention.
	ErrPairOrder = errors.New("localcorr: pair indices must satisfy 0 <= i <= j")
	// ErrShapeMismatch indicates matrices that are not square or differ in
	// dimension within one pair.
	ErrShapeMismatch = errors.New("localcorr: pair matrices must be square and equally sized")
	// ErrZeroDenominator indicates a zero entry in the energy-denominator
	// matrix, which would produce a non-finite amplitude update.
	ErrZeroDenominator = errors.New("localcorr: uncoupled term contains a zero entry")
)

// OrbitalPair is one occupied-orbital pair (i, j) with i ≤ j and its
// pair-local matrices over the truncated virtual domain. Only the upper
// triangle of the pair space is stored; the (j, i) counterpart is always
// read as the transpose of the stored matrices.
type OrbitalPair struct {
	// I and J are the occupied orbital indices, I ≤ J.
	I, J int

	// Class is the locality classification assigned upstream.
	Class PairClass

	// T is the amplitude matrix, zero before the first iteration.
	T *mat.Dense

	// K holds the pair's exchange integrals.
	K *mat.Dense

	// Residual is owned and overwritten by the solver each cycle.
	Residual *mat.Dense

	// Uncoupled is the elementwise energy-denominator matrix. Every entry
	// is nonzero; it is used as a divisor in the amplitude update.
	Uncoupled *mat.Dense

	// Couplings lists the third-index coupling sets of this pair in a
	// fixed order.
	Couplings []Coupling

	// Energy is the pair's correlation contribution including its
	// truncation correction, set during energy assembly.
	Energy float64

	// TruncationError estimates the energy lost to the domain truncation.
	TruncationError float64

	// DipoleEstimate and SemicanonicalEstimate are the precomputed
	// contributions used in place of amplitudes for very distant pairs.
	DipoleEstimate        float64
	SemicanonicalEstimate float64
}

// NewOrbitalPair validates the index order, matrix shapes and denominator
// entries, and returns a pair with zeroed amplitude and residual storage.
func NewOrbitalPair(i, j int, class PairClass, k, uncoupled *mat.Dense) (*OrbitalPair, error) {
	if i < 0 || i > j {
		return nil, fmt.Errorf("%w: got (%d, %d)", ErrPairOrder, i, j)
	}

	rows, cols := k.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: exchange matrix of pair (%d, %d) is %dx%d", ErrShapeMismatch, i, j, rows, cols)
	}

	urows, ucols := uncoupled.Dims()
	if urows != rows || ucols != cols {
		return nil, fmt.Errorf("%w: uncoupled term of pair (%d, %d) is %dx%d, exchange is %dx%d",
			ErrShapeMismatch, i, j, urows, ucols, rows, cols)
	}

	for r := range urows {
		for c := range ucols {
			if uncoupled.At(r, c) == 0 {
				return nil, fmt.Errorf("%w: pair (%d, %d) entry (%d, %d)", ErrZeroDenominator, i, j, r, c)
			}
		}
	}

	return &OrbitalPair{
		I:         i,
		J:         j,
		Class:     class,
		T:         mat.NewDense(rows, cols, nil),
		K:         mat.DenseCopyOf(k),
		Residual:  mat.NewDense(rows, cols, nil),
		Uncoupled: mat.DenseCopyOf(uncoupled),
	}, nil
}

// Key returns the canonical (I, J) key of the pair.
func (p *OrbitalPair) Key() PairKey {
	return PairKey{I: p.I, J: p.J}
}

// Domain returns the size of the pair's truncated virtual domain.
func (p *OrbitalPair) Domain() int {
	rows, _ := p.T.Dims()

	return rows
}

// Diagonal reports whether the pair couples an orbital with itself.
func (p *OrbitalPair) Diagonal() bool {
	return p.I == p.J
}

// Amplitude returns the stored amplitude, transposed on request. The
// transpose view is how the (j, i)-oriented amplitude of a stored (i, j)
// pair is read.
func (p *OrbitalPair) Amplitude(transposed bool) mat.Matrix {
	if transposed {
		return p.T.T()
	}

	return p.T
}

// WeightedEnergy returns the pair's correlation contribution
//
//	w · (c_ss·Σ(t−tᵀ)⊙k + c_os·Σt⊙k)
//
// with weight 1 for diagonal and 2 for off-diagonal pairs.
func (p *OrbitalPair) WeightedEnergy(ssScale, osScale float64) float64 {
	return weightedPairEnergy(p.I, p.J, p.T, p.K, ssScale, osScale)
}

func weightedPairEnergy(i, j int, t, k *mat.Dense, ssScale, osScale float64) float64 {
	rows, cols := t.Dims()

	var sameSpin, oppositeSpin float64

	for r := range rows {
		for c := range cols {
			tv := t.At(r, c)
			kv := k.At(r, c)

			sameSpin += (tv - t.At(c, r)) * kv
			oppositeSpin += tv * kv
		}
	}

	weight := 2.0
	if i == j {
		weight = 1.0
	}

	return weight * (ssScale*sameSpin + osScale*oppositeSpin)
}
