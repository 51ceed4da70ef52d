// Package cpu implements a host compute engine with layout-generic kernels.
//
// The engine resolves EngineChoice operands according to a layout Policy.
// The default policy prefers plain formats (nchw activations, oihw weights),
// which matches caller-supplied buffers and so never forces a reorder.
// Other policies, such as the channel-blocked one used by the accel package,
// make the engine prefer layouts the caller does not supply.
package cpu

import (
	"fmt"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/parallel"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Compile-time check that CPUBackend implements engine.Engine.
var _ engine.Engine = (*CPUBackend)(nil)

// CPUBackend is the host engine.
type CPUBackend struct {
	name   string
	device tensor.Device
	policy Policy
	par    parallel.Config

	memoryLimit int64 // bytes, 0 = unlimited
	allocated   int64
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithMemoryLimit caps the total bytes Alloc may hand out. 0 disables the cap.
func WithMemoryLimit(bytes int64) Option {
	return func(cpu *CPUBackend) {
		cpu.memoryLimit = bytes
	}
}

// WithWorkers sets the number of kernel worker goroutines; 0 uses one per CPU.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.par = parallel.NewConfig(n)
	}
}

// New creates a CPU engine preferring plain layouts.
func New(opts ...Option) *CPUBackend {
	return NewWithPolicy("cpu", tensor.CPU, PlainPolicy, opts...)
}

// NewWithPolicy creates a host engine reporting the given name and device
// kind and resolving EngineChoice operands with policy.
func NewWithPolicy(name string, device tensor.Device, policy Policy, opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		name:   name,
		device: device,
		policy: policy,
		par:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the engine name.
func (cpu *CPUBackend) Name() string {
	return cpu.name
}

// Device returns the device kind.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Policy returns the layout policy.
func (cpu *CPUBackend) Policy() Policy {
	return cpu.policy
}

// Allocated returns the total bytes handed out by Alloc.
func (cpu *CPUBackend) Allocated() int64 {
	return cpu.allocated
}

// Alloc creates a buffer for a concrete descriptor. Backing memory is
// materialized lazily; the memory limit is charged up front.
func (cpu *CPUBackend) Alloc(d tensor.Desc) (*tensor.Buffer, error) {
	if !d.Concrete() {
		return nil, fmt.Errorf("alloc: descriptor %s has no concrete layout: %w", d, engine.ErrLayoutResolution)
	}
	size := int64(d.ByteSize())
	if cpu.memoryLimit > 0 && cpu.allocated+size > cpu.memoryLimit {
		return nil, fmt.Errorf("alloc: %s needs %d bytes, %d of %d in use: %w",
			d, size, cpu.allocated, cpu.memoryLimit, engine.ErrResourceExhausted)
	}
	buf, err := tensor.NewBuffer(d, cpu.device)
	if err != nil {
		return nil, err
	}
	cpu.allocated += size
	return buf, nil
}

// Primitive constructs a runnable operator for a resolved descriptor.
func (cpu *CPUBackend) Primitive(pd *engine.PrimitiveDesc) (engine.Primitive, error) {
	for role, d := range pd.Descs {
		if !d.Concrete() {
			return nil, fmt.Errorf("%s: %s descriptor %s unresolved: %w", pd.Kind, role, d, engine.ErrLayoutResolution)
		}
	}
	switch pd.Kind {
	case engine.Convolution:
		return &convPrimitive{pd: pd, par: cpu.par}, nil
	case engine.Eltwise:
		return &eltwisePrimitive{pd: pd, par: cpu.par}, nil
	case engine.Pooling:
		return &poolPrimitive{pd: pd, par: cpu.par}, nil
	case engine.Reorder:
		return &reorderPrimitive{pd: pd, par: cpu.par}, nil
	default:
		return nil, fmt.Errorf("primitive: unsupported kind %s: %w", pd.Kind, engine.ErrLayoutResolution)
	}
}

// checkBound verifies that every buffer bound for a primitive carries the
// descriptor the primitive was resolved with.
func checkBound(pd *engine.PrimitiveDesc, args *engine.Args) error {
	for _, r := range pd.Kind.Required() {
		b, ok := args.Get(r)
		if !ok {
			return fmt.Errorf("%s: %w: %s", pd.Kind, engine.ErrUnboundRole, r)
		}
		if want := pd.Descs[r]; !b.Desc().Equal(want) {
			return fmt.Errorf("%s: %s bound to %s, resolved %s: %w", pd.Kind, r, b.Desc(), want, engine.ErrShapeMismatch)
		}
	}
	return nil
}
