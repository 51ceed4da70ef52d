// Package engine defines the compute-engine surface the graph builder depends on.
//
// An engine turns operator descriptors whose operands may carry
// tensor.EngineChoice layouts into resolved PrimitiveDescs with concrete
// per-role layouts, allocates buffers for concrete descriptors, and constructs
// runnable primitives bound to those buffers. The builder never depends on a
// specific engine implementation.
package engine

import (
	"errors"

	"github.com/born-ml/vggplan/internal/tensor"
)

// Error taxonomy. Engines wrap these with operator context; callers test
// them with errors.Is.
var (
	// ErrShapeMismatch reports operand shapes incompatible with operator parameters.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrLayoutResolution reports that no layout exists for an operator/shape combination.
	ErrLayoutResolution = errors.New("layout resolution failed")

	// ErrResourceExhausted reports that a buffer could not be allocated.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrUnboundRole reports a node appended without a role its kind requires.
	ErrUnboundRole = errors.New("required role not bound")

	// ErrNotTopological reports a node reading a buffer no earlier node produced.
	ErrNotTopological = errors.New("operand not produced by an earlier node")
)

// Engine is the compute engine interface.
//
// Resolve* methods declare an operator from operand descriptors plus its
// parameters and return the engine's resolved descriptor. Alloc materializes
// a buffer for a concrete descriptor. Primitive builds a runnable operator.
type Engine interface {
	// Name returns a short engine name for logs.
	Name() string

	// Device returns the device kind all buffers of this engine live on.
	Device() tensor.Device

	ResolveConvolution(d ConvolutionDesc) (*PrimitiveDesc, error)
	ResolveEltwise(d EltwiseDesc) (*PrimitiveDesc, error)
	ResolvePooling(d PoolingDesc) (*PrimitiveDesc, error)

	// ResolveReorder resolves a conversion between two concrete descriptors
	// of the same logical tensor.
	ResolveReorder(src, dst tensor.Desc) (*PrimitiveDesc, error)

	// Alloc creates a buffer for a concrete descriptor.
	Alloc(d tensor.Desc) (*tensor.Buffer, error)

	// Primitive constructs a runnable operator for a resolved descriptor.
	Primitive(pd *PrimitiveDesc) (Primitive, error)
}

// Primitive is a runnable operator.
type Primitive interface {
	Kind() Kind

	// Execute runs the operator against bound buffers. Args must bind every
	// role the kind requires, in the layouts the descriptor resolved.
	Execute(args *Args) error
}
