// Package hrr implements Holographic Reduced Representations: fixed-dimension
// real vectors composed by circular convolution (bind), decomposed by
// circular correlation (unbind) and aggregated by weighted superposition.
package hrr

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the norm below which a vector is treated as zero.
const Epsilon = 1e-12

// Sentinel errors for the hrr package.
var (
	ErrDimensionMismatch  = errors.New("hrr: vector dimension mismatch")
	ErrInvalidDimension   = errors.New("hrr: invalid dimension")
	ErrEmptySuperposition = errors.New("hrr: nothing to superpose")
	ErrZeroWeight         = errors.New("hrr: binding weight must be non-zero and finite")
	ErrEmptyRole          = errors.New("hrr: role name is empty")
	ErrRoleNotBound       = errors.New("hrr: role not bound in capsule")
)

// Vector is a dense real vector of the process-wide dimension D.
type Vector []float64

// Dim returns the vector dimension.
func (v Vector) Dim() int { return len(v) }

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	return append(Vector(nil), v...)
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place and returns it. A vector whose
// norm is below Epsilon is replaced by the uniform unit vector so that no
// zero vector ever leaves this package.
func Normalize(v Vector) Vector {
	if len(v) == 0 {
		return v
	}
	n := v.Norm()
	if n < Epsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		u := 1 / math.Sqrt(float64(len(v)))
		for i := range v {
			v[i] = u
		}
		return v
	}
	for i := range v {
		v[i] /= n
	}
	return v
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length, or either vector being zero, yield 0.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < Epsilon {
		return 0
	}
	sim := dot / denom
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

func checkDim(want int, vs ...Vector) error {
	for _, v := range vs {
		if len(v) != want {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(v))
		}
	}
	return nil
}
