package hrr

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Codec implements the HRR primitives over vectors of a fixed dimension.
// All results are renormalized to unit length. A Codec is safe for
// concurrent use.
type Codec struct {
	dim  int
	ffts sync.Pool
}

// NewCodec creates a codec for vectors of dimension dim. Even dimensions are
// recommended since the real FFT is fastest for them.
func NewCodec(dim int) (*Codec, error) {
	if dim < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	c := &Codec{dim: dim}
	c.ffts.New = func() any { return fourier.NewFFT(dim) }
	return c, nil
}

// Dim returns the codec dimension.
func (c *Codec) Dim() int { return c.dim }

// Bind composes a and b by circular convolution: ifft(fft(a) ⊙ fft(b)).
func (c *Codec) Bind(a, b Vector) (Vector, error) {
	if err := checkDim(c.dim, a, b); err != nil {
		return nil, err
	}
	return c.spectral(a, b, false), nil
}

// Unbind approximately recovers the filler bound to role a inside composite
// by circular correlation: ifft(fft(composite) ⊙ conj(fft(a))). Recovery is
// exact for a single binding with a unitary role and degrades with the number
// of superposed bindings.
func (c *Codec) Unbind(composite, a Vector) (Vector, error) {
	if err := checkDim(c.dim, composite, a); err != nil {
		return nil, err
	}
	return c.spectral(composite, a, true), nil
}

// Superpose returns the normalized weighted sum of vectors. A nil weights
// slice weighs every vector 1.
func (c *Codec) Superpose(vectors []Vector, weights []float64) (Vector, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptySuperposition
	}
	if weights != nil && len(weights) != len(vectors) {
		return nil, fmt.Errorf("hrr: %d weights for %d vectors", len(weights), len(vectors))
	}
	if err := checkDim(c.dim, vectors...); err != nil {
		return nil, err
	}
	out := make(Vector, c.dim)
	for i, v := range vectors {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w == 0 {
			continue
		}
		for j, x := range v {
			out[j] += w * x
		}
	}
	return Normalize(out), nil
}

// Similarity returns the cosine similarity of a and b.
func (c *Codec) Similarity(a, b Vector) (float64, error) {
	if err := checkDim(c.dim, a, b); err != nil {
		return 0, err
	}
	return Cosine(a, b), nil
}

func (c *Codec) spectral(a, b Vector, conjugate bool) Vector {
	fft := c.ffts.Get().(*fourier.FFT)
	defer c.ffts.Put(fft)

	fa := fft.Coefficients(nil, a)
	fb := fft.Coefficients(nil, b)
	for i := range fa {
		if conjugate {
			fa[i] *= cmplx.Conj(fb[i])
		} else {
			fa[i] *= fb[i]
		}
	}
	out := fft.Sequence(nil, fa)
	return Normalize(Vector(out))
}

// unitary builds a vector whose spectrum has unit magnitude in every bin,
// with phases taken from phase. Bins that must be real for a real signal
// get sign(phase) instead.
func (c *Codec) unitary(phase func(bin int) float64) Vector {
	fft := c.ffts.Get().(*fourier.FFT)
	defer c.ffts.Put(fft)

	bins := c.dim/2 + 1
	coeffs := make([]complex128, bins)
	for k := 0; k < bins; k++ {
		theta := phase(k)
		if k == 0 || (c.dim%2 == 0 && k == c.dim/2) {
			if math.Cos(theta) >= 0 {
				coeffs[k] = 1
			} else {
				coeffs[k] = -1
			}
			continue
		}
		coeffs[k] = cmplx.Rect(1, theta)
	}
	return Normalize(Vector(fft.Sequence(nil, coeffs)))
}
