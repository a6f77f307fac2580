package localcorr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PairKey is the canonical identity of an orbital pair. Keys are always
// ordered, I ≤ J, regardless of the order the indices were named in.
type PairKey struct {
	I, J int
}

// NewPairKey returns the canonical key for the two orbital indices.
func NewPairKey(a, b int) PairKey {
	if a > b {
		a, b = b, a
	}

	return PairKey{I: a, J: b}
}

// String renders the key as "(i,j)".
func (k PairKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.I, k.J)
}

// PairID is the arena index of a pair inside a PairSet. IDs are dense and
// assigned in insertion order.
type PairID int

// PairRef is an optional handle to a pair in the arena. The zero value is
// the absent reference; absence encodes a neighbor that was screened out
// or never stored, and is not an error.
type PairRef struct {
	id      PairID
	present bool
}

// RefTo returns a present reference to the given arena slot.
func RefTo(id PairID) PairRef {
	return PairRef{id: id, present: true}
}

// Present reports whether the reference points at a stored pair.
func (r PairRef) Present() bool {
	return r.present
}

// ID returns the arena slot of a present reference. It must not be called
// on an absent one.
func (r PairRef) ID() PairID {
	if !r.present {
		panic("localcorr: ID of absent pair reference")
	}

	return r.id
}

// Coupling is one third-index contribution to a pair's residual. For a
// stored pair (i, j) and coupling orbital k it references the partner
// pairs (k, j) and (i, k) together with the rectangular projections
// mapping their domains into this pair's domain.
//
// An absent partner reference means that neighbor was screened out; the
// corresponding residual term is silently skipped.
type Coupling struct {
	// K is the coupling orbital index.
	K int

	// KJ and IK reference the partner pairs (K, J) and (I, K).
	KJ, IK PairRef

	// KJTransposed and IKTransposed record whether the partner amplitude
	// must be read transposed to match the (K, J) and (I, K) orientation.
	// They are fixed by the storage convention at graph construction.
	KJTransposed, IKTransposed bool

	// SKJ and SIK project the partner domains into this pair's domain.
	// SKJ is domain(i,j) x domain(k,j), SIK is domain(i,j) x domain(i,k).
	SKJ, SIK *mat.Dense
}
