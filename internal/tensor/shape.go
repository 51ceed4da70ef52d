package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape represents the logical dimensions of a tensor.
//
// Activations are (N, C, H, W), convolution weights are (O, I, kH, kW)
// and biases are (O).
type Shape []int

// NumElements returns the total number of logical elements.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("empty shape")
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as "16x3x224x224".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

// OutputSize returns the spatial output extent of a sliding window:
//
//	out = floor((in + 2*pad - kernel) / stride) + 1
//
// The result is <= 0 when the kernel does not fit the padded input.
func OutputSize(in, kernel, stride, pad int) int {
	if stride <= 0 {
		return 0
	}
	span := in + 2*pad - kernel
	if span < 0 {
		return 0
	}
	return span/stride + 1
}
