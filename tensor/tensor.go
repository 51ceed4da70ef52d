// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor descriptors and buffers.
//
// The package defines:
//   - Desc: shape, element type and layout of an operand
//   - Layout: either Fixed{Format} or EngineChoice{}
//   - Buffer: lazily materialized storage for one concrete descriptor
//   - Shape, DataType, Device, Format: core type definitions
//
// Example:
//
//	d, err := tensor.NewDesc(tensor.Shape{16, 3, 224, 224}, tensor.Float32,
//	    tensor.Fixed{Format: tensor.NCHW})
//	fmt.Println(d) // 16x3x224x224:f32:nchw
package tensor

import (
	"github.com/born-ml/vggplan/internal/tensor"
)

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Uint8   DataType = tensor.Uint8
)

// Device represents the kind of engine a buffer belongs to.
type Device = tensor.Device

// Device constants.
const (
	CPU         Device = tensor.CPU
	Accelerated Device = tensor.Accelerated
)

// Shape represents the dimensions of a tensor.
// Example: Shape{16, 3, 224, 224} is a batch of 16 RGB 224x224 images.
type Shape = tensor.Shape

// Format is a concrete memory arrangement.
type Format = tensor.Format

// Format constants.
const (
	NCHW     Format = tensor.NCHW
	NHWC     Format = tensor.NHWC
	OIHW     Format = tensor.OIHW
	X        Format = tensor.X
	NChw8c   Format = tensor.NChw8c
	OIhw8i8o Format = tensor.OIhw8i8o
)

// Layout is the layout tag of a descriptor: Fixed or EngineChoice.
type Layout = tensor.Layout

// Fixed is a layout pinned to one format.
type Fixed = tensor.Fixed

// EngineChoice defers the layout to the engine.
type EngineChoice = tensor.EngineChoice

// Desc describes an operand.
type Desc = tensor.Desc

// Buffer is operand storage.
type Buffer = tensor.Buffer

// NewDesc creates a descriptor.
func NewDesc(shape Shape, dtype DataType, layout Layout) (Desc, error) {
	return tensor.NewDesc(shape, dtype, layout)
}

// ParseDevice parses "cpu" or "accel" (alias "gpu").
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}

// Pack copies canonical-order values into b using b's format.
func Pack(b *Buffer, src []float32) {
	tensor.Pack(b, src)
}

// Unpack returns b's contents in canonical order.
func Unpack(b *Buffer) []float32 {
	return tensor.Unpack(b)
}
