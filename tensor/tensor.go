// Package tensor implements the small dense float32 tensor type the
// diffusion pipeline operates on. Tensors are flat row-major buffers in
// NCHW layout; the neural networks behind the pipeline adapters consume
// and produce this type but never mutate shapes in place.
package tensor

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

// Tensor is a dense row-major float32 tensor. Data is shared on Clone-free
// assignment; callers that need an independent buffer use Clone.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New returns a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  make([]float32, Numel(shape)),
	}
}

// FromSlice wraps data in a tensor of the given shape. The slice is not
// copied. It panics if the element count does not match the shape.
func FromSlice(data []float32, shape ...int) *Tensor {
	if len(data) != Numel(shape) {
		panic(fmt.Sprintf("tensor: %d elements cannot fill shape %v", len(data), shape))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}
}

// Numel returns the element count of a shape.
func Numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Numel returns the element count of the tensor.
func (t *Tensor) Numel() int { return len(t.Data) }

// Dim returns the size of dimension n.
func (t *Tensor) Dim(n int) int { return t.Shape[n] }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// SameShape reports whether t and u have identical shapes.
func (t *Tensor) SameShape(u *Tensor) bool {
	return slices.Equal(t.Shape, u.Shape)
}

func (t *Tensor) vec() blas32.Vector {
	return blas32.Vector{N: len(t.Data), Data: t.Data, Inc: 1}
}

// Scale multiplies every element by alpha in place.
func (t *Tensor) Scale(alpha float32) {
	blas32.Scal(alpha, t.vec())
}

// AddScaled computes t += alpha * u in place. Shapes must match.
func (t *Tensor) AddScaled(alpha float32, u *Tensor) {
	if !t.SameShape(u) {
		panic(fmt.Sprintf("tensor: axpy shape mismatch %v vs %v", t.Shape, u.Shape))
	}
	blas32.Axpy(alpha, u.vec(), t.vec())
}

// Sub returns t - u as a new tensor.
func Sub(t, u *Tensor) *Tensor {
	out := t.Clone()
	out.AddScaled(-1, u)
	return out
}

// CheckFinite returns an error naming the first non-finite element, or nil
// when every element is a real number. NaN and both infinities count as
// non-finite.
func (t *Tensor) CheckFinite() error {
	for i, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value %v at offset %d of shape %v", v, i, t.Shape)
		}
	}
	return nil
}

// MinMax returns the smallest and largest elements. It returns zeros for an
// empty tensor.
func (t *Tensor) MinMax() (min, max float32) {
	if len(t.Data) == 0 {
		return 0, 0
	}
	min, max = t.Data[0], t.Data[0]
	for _, v := range t.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
