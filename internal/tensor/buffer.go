package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the kind of compute engine a buffer belongs to.
type Device int

// Supported device kinds.
const (
	CPU Device = iota
	Accelerated
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case Accelerated:
		return "accel"
	default:
		return "unknown"
	}
}

// ParseDevice parses a device kind name as accepted on the command line.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "cpu", "CPU":
		return CPU, nil
	case "accel", "gpu", "GPU":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q (want cpu or accel)", s)
	}
}

var nextBufferID atomic.Uint64

// Buffer is operand storage for one concrete descriptor.
//
// Backing memory is materialized on first data access, so a plan for a large
// network can be built and inspected without touching its activations.
type Buffer struct {
	id     uint64
	desc   Desc
	device Device

	once sync.Once
	data []byte
}

// NewBuffer creates a buffer for a concrete descriptor.
func NewBuffer(desc Desc, device Device) (*Buffer, error) {
	if !desc.Concrete() {
		return nil, fmt.Errorf("buffer: descriptor %s has no concrete layout", desc)
	}
	return &Buffer{
		id:     nextBufferID.Add(1),
		desc:   desc,
		device: device,
	}, nil
}

// ID returns the process-unique buffer id.
func (b *Buffer) ID() uint64 {
	return b.id
}

// Desc returns the buffer's descriptor.
func (b *Buffer) Desc() Desc {
	return b.desc
}

// Shape returns the logical shape.
func (b *Buffer) Shape() Shape {
	return b.desc.Shape()
}

// Format returns the buffer's concrete format.
func (b *Buffer) Format() Format {
	f, _ := b.desc.Format()
	return f
}

// Device returns the device kind the buffer was allocated for.
func (b *Buffer) Device() Device {
	return b.device
}

// ByteSize returns the storage size in bytes.
func (b *Buffer) ByteSize() int {
	return b.desc.ByteSize()
}

// Materialized reports whether backing memory has been allocated.
func (b *Buffer) Materialized() bool {
	return b.data != nil
}

// Bytes returns the raw storage, allocating it on first use.
func (b *Buffer) Bytes() []byte {
	b.once.Do(func() {
		b.data = make([]byte, b.desc.ByteSize())
	})
	return b.data
}

// AsFloat32 interprets the storage as []float32 in physical order.
// Panics if the buffer's dtype is not Float32.
func (b *Buffer) AsFloat32() []float32 {
	if b.desc.DType() != Float32 {
		panic(fmt.Sprintf("buffer dtype is %s, not f32", b.desc.DType()))
	}
	data := b.Bytes()
	//nolint:gosec // unsafe.Slice for zero-copy access, length derived from the descriptor
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), b.desc.PhysicalSize())
}

// AsInt32 interprets the storage as []int32 in physical order.
// Panics if the buffer's dtype is not Int32.
func (b *Buffer) AsInt32() []int32 {
	if b.desc.DType() != Int32 {
		panic(fmt.Sprintf("buffer dtype is %s, not s32", b.desc.DType()))
	}
	data := b.Bytes()
	//nolint:gosec // unsafe.Slice for zero-copy access, length derived from the descriptor
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), b.desc.PhysicalSize())
}

// String returns a short description used in logs and plan listings.
func (b *Buffer) String() string {
	return fmt.Sprintf("#%d %s", b.id, b.desc)
}
