// Package diis implements direct inversion in the iterative subspace: a
// least-squares extrapolation over a bounded history of (parameter, error)
// vector snapshots that accelerates fixed-point iterations.
package diis

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for history management.
var (
	// ErrInvalidDepth indicates a non-positive history depth.
	ErrInvalidDepth = errors.New("diis: history depth must be at least 1")
	// ErrDimensionMismatch indicates a snapshot whose vector lengths differ
	// from the ones already stored.
	ErrDimensionMismatch = errors.New("diis: snapshot dimensions differ from stored history")
)

type snapshot struct {
	param []float64
	err   []float64
}

// Extrapolator keeps a ring of the most recent snapshots and solves the
// standard DIIS least-squares problem on demand: minimize the norm of the
// linear combination of error vectors subject to the coefficients summing
// to one.
type Extrapolator struct {
	depth   int
	history []snapshot
}

// New creates an extrapolator that retains at most depth snapshots.
func New(depth int) (*Extrapolator, error) {
	if depth < 1 {
		return nil, ErrInvalidDepth
	}

	return &Extrapolator{
		depth:   depth,
		history: make([]snapshot, 0, depth),
	}, nil
}

// Len returns the number of stored snapshots.
func (e *Extrapolator) Len() int {
	return len(e.history)
}

// Push stores copies of the parameter and error vectors, evicting the
// oldest snapshot once the configured depth is exceeded.
func (e *Extrapolator) Push(param, errVec []float64) error {
	if len(e.history) > 0 {
		last := e.history[len(e.history)-1]
		if len(param) != len(last.param) || len(errVec) != len(last.err) {
			return ErrDimensionMismatch
		}
	}

	snap := snapshot{
		param: make([]float64, len(param)),
		err:   make([]float64, len(errVec)),
	}
	copy(snap.param, param)
	copy(snap.err, errVec)

	e.history = append(e.history, snap)
	if len(e.history) > e.depth {
		e.history = e.history[1:]
	}

	return nil
}

// Extrapolate solves the least-squares problem over the stored history and
// returns the combined parameter vector. With a single stored snapshot the
// stored parameters are returned unchanged. The second return value is
// false when the history is empty or the DIIS matrix is singular; callers
// then keep their current parameters.
func (e *Extrapolator) Extrapolate() ([]float64, bool) {
	n := len(e.history)
	if n == 0 {
		return nil, false
	}

	if n == 1 {
		result := make([]float64, len(e.history[0].param))
		copy(result, e.history[0].param)

		return result, true
	}

	coeffs, ok := e.solveCoefficients()
	if !ok {
		return nil, false
	}

	result := make([]float64, len(e.history[0].param))
	for i, snap := range e.history {
		floats.AddScaled(result, coeffs[i], snap.param)
	}

	return result, true
}

// solveCoefficients builds the bordered overlap matrix of error vectors
//
//	| <e_i,e_j>  -1 | |c|   | 0|
//	|   -1        0 | |λ| = |-1|
//
// and solves it by LU decomposition.
func (e *Extrapolator) solveCoefficients() ([]float64, bool) {
	n := len(e.history)
	dim := n + 1

	b := mat.NewDense(dim, dim, nil)
	for i := range n {
		for j := range n {
			b.Set(i, j, floats.Dot(e.history[i].err, e.history[j].err))
		}

		b.Set(i, n, -1)
		b.Set(n, i, -1)
	}

	rhs := mat.NewVecDense(dim, nil)
	rhs.SetVec(n, -1)

	var lu mat.LU

	lu.Factorize(b)

	solution := mat.NewVecDense(dim, nil)

	err := lu.SolveVecTo(solution, false, rhs)
	if err != nil {
		return nil, false
	}

	coeffs := make([]float64, n)
	for i := range n {
		coeffs[i] = solution.AtVec(i)
	}

	return coeffs, true
}
