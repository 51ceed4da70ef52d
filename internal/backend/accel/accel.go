// Package accel provides the accelerated engine.
//
// The engine follows the memory contract of vector accelerators: activations
// live in 8-channel blocked layout (nChw8c) and convolution weights in 8x8
// in/out channel blocks (OIhw8i8o), with channel dimensions padded to whole
// blocks. Kernels run on the host through the cpu package, so plans built
// against this engine are executable anywhere; what differs from the cpu
// engine is which layouts operators demand, and therefore which reorders the
// graph builder has to insert.
package accel

import (
	"github.com/born-ml/vggplan/internal/backend/cpu"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Option configures the engine. It is shared with the cpu package.
type Option = cpu.Option

// New creates the accelerated engine.
func New(opts ...Option) *cpu.CPUBackend {
	return cpu.NewWithPolicy("accel", tensor.Accelerated, cpu.BlockedPolicy, opts...)
}
