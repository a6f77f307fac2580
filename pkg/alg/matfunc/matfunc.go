// Package matfunc provides dense and symmetric matrix helpers built on
// gonum: elementwise reductions used by iterative solvers and
// eigendecomposition-based functions of symmetric matrices.
package matfunc

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrEigenFailed indicates the symmetric eigendecomposition did not converge.
var ErrEigenFailed = errors.New("matfunc: symmetric eigendecomposition failed")

// ErrNotPositiveDefinite indicates a Cholesky factorization failed because
// the Gram matrix is rank deficient.
var ErrNotPositiveDefinite = errors.New("matfunc: gram matrix is not positive definite")

// MaxAbs returns the largest absolute entry of m. A zero-sized matrix
// yields 0.
func MaxAbs(m mat.Matrix) float64 {
	rows, cols := m.Dims()

	largest := 0.0

	for i := range rows {
		for j := range cols {
			if v := math.Abs(m.At(i, j)); v > largest {
				largest = v
			}
		}
	}

	return largest
}

// HadamardSum returns the sum over all entries of the elementwise product
// a ⊙ b. It panics with [mat.ErrShape] when the dimensions differ.
func HadamardSum(a, b mat.Matrix) float64 {
	ar, ac := a.Dims()

	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(mat.ErrShape)
	}

	sum := 0.0

	for i := range ar {
		for j := range ac {
			sum += a.At(i, j) * b.At(i, j)
		}
	}

	return sum
}

// Symmetrize overwrites m with (m + mᵀ)/2. It panics with [mat.ErrShape]
// when m is not square.
func Symmetrize(m *mat.Dense) {
	rows, cols := m.Dims()
	if rows != cols {
		panic(mat.ErrShape)
	}

	for i := range rows {
		for j := i + 1; j < cols; j++ {
			avg := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}

// Apply returns f(s) for a symmetric matrix s, evaluated through the
// eigendecomposition s = V diag(λ) Vᵀ as V diag(f(λ)) Vᵀ.
func Apply(s *mat.SymDense, f func(eigenvalue float64) float64) (*mat.SymDense, error) {
	var eig mat.EigenSym
	if !eig.Factorize(s, true) {
		return nil, ErrEigenFailed
	}

	values := eig.Values(nil)

	var vectors mat.Dense

	eig.VectorsTo(&vectors)

	n := len(values)
	scaled := mat.NewDense(n, n, nil)

	for j := range n {
		fv := f(values[j])
		for i := range n {
			scaled.Set(i, j, vectors.At(i, j)*fv)
		}
	}

	var full mat.Dense

	full.Mul(scaled, vectors.T())

	result := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			result.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}

	return result, nil
}

// SqrtSym returns the principal square root of a symmetric positive
// semidefinite matrix. Small negative eigenvalues from rounding are
// clamped to zero.
func SqrtSym(s *mat.SymDense) (*mat.SymDense, error) {
	return Apply(s, func(ev float64) float64 {
		if ev < 0 {
			return 0
		}

		return math.Sqrt(ev)
	})
}

// PseudoInvSqrtSym returns s^(-1/2) with eigenvalues below tol treated as
// zero, the projector-style pseudo-inverse used when truncated bases are
// nearly linearly dependent.
func PseudoInvSqrtSym(s *mat.SymDense, tol float64) (*mat.SymDense, error) {
	return Apply(s, func(ev float64) float64 {
		if ev <= tol {
			return 0
		}

		return 1.0 / math.Sqrt(ev)
	})
}

// Orthonormalize returns a copy of m whose columns are orthonormalized by
// the Cholesky factorization of the Gram matrix mᵀm: the returned x
// satisfies xᵀx = I and spans the same column space.
func Orthonormalize(m *mat.Dense) (*mat.Dense, error) {
	_, cols := m.Dims()

	gram := mat.NewSymDense(cols, nil)

	var gramDense mat.Dense

	gramDense.Mul(m.T(), m)

	for i := range cols {
		for j := i; j < cols; j++ {
			gram.SetSym(i, j, gramDense.At(i, j))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(gram) {
		return nil, ErrNotPositiveDefinite
	}

	var lower mat.TriDense

	chol.LTo(&lower)

	// x = m · L⁻ᵀ, computed as xᵀ = L⁻¹ mᵀ.
	var xt mat.Dense

	err := xt.Solve(&lower, m.T())
	if err != nil {
		return nil, ErrNotPositiveDefinite
	}

	var x mat.Dense

	x.CloneFrom(xt.T())

	return &x, nil
}
