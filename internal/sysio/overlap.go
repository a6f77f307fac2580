package sysio

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

// ErrMissingProjection indicates a coupling between unequal domains
// with no stored projection in either direction.
var ErrMissingProjection = errors.New("sysio: no projection stored for coupling between unequal domains")

// TableOverlap resolves domain projections from a stored table. A
// lookup falls back to the transpose of the reverse entry, then to the
// identity when both domains have the same size.
type TableOverlap struct {
	pairs *localcorr.PairSet
	table map[projectionEdge]*mat.Dense
}

type projectionEdge struct {
	from localcorr.PairKey
	to   localcorr.PairKey
}

// NewTableOverlap creates an empty projection table over the pair set.
func NewTableOverlap(pairs *localcorr.PairSet) *TableOverlap {
	return &TableOverlap{
		pairs: pairs,
		table: make(map[projectionEdge]*mat.Dense),
	}
}

// Put stores the projection from one pair domain to another. The matrix
// is copied.
func (o *TableOverlap) Put(from, to localcorr.PairKey, s *mat.Dense) {
	o.table[projectionEdge{from: from, to: to}] = mat.DenseCopyOf(s)
}

// Len returns the number of stored projections.
func (o *TableOverlap) Len() int {
	return len(o.table)
}

// Between returns the projection from the domain of one pair onto the
// domain of another.
func (o *TableOverlap) Between(from, to localcorr.PairKey) (*mat.Dense, error) {
	if s, ok := o.table[projectionEdge{from: from, to: to}]; ok {
		return mat.DenseCopyOf(s), nil
	}

	// Overlap projections are mutual transposes, so the reverse entry
	// serves when only one direction was serialized.
	if s, ok := o.table[projectionEdge{from: to, to: from}]; ok {
		rows, cols := s.Dims()

		transposed := mat.NewDense(cols, rows, nil)
		transposed.Copy(s.T())

		return transposed, nil
	}

	fromDomain := o.pairs.ByKey(from).Domain()
	toDomain := o.pairs.ByKey(to).Domain()

	if fromDomain != toDomain {
		return nil, fmt.Errorf("%w: %s (%d) -> %s (%d)",
			ErrMissingProjection, from, fromDomain, to, toDomain)
	}

	eye := mat.NewDense(fromDomain, fromDomain, nil)
	for i := range fromDomain {
		eye.Set(i, i, 1)
	}

	return eye, nil
}
