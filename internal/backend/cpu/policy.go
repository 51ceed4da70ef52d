package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Policy names the formats an engine picks for EngineChoice operands.
type Policy struct {
	Activation tensor.Format // src/dst of convolution, pooling dst
	Weights    tensor.Format
	Bias       tensor.Format
}

// PlainPolicy prefers the formats callers naturally supply.
var PlainPolicy = Policy{
	Activation: tensor.NCHW,
	Weights:    tensor.OIHW,
	Bias:       tensor.X,
}

// BlockedPolicy prefers 8-channel blocked activations and weights.
var BlockedPolicy = Policy{
	Activation: tensor.NChw8c,
	Weights:    tensor.OIhw8i8o,
	Bias:       tensor.X,
}

// ResolveConvolution resolves every EngineChoice operand of d with the policy.
// Concrete operands are kept as declared.
func (cpu *CPUBackend) ResolveConvolution(d engine.ConvolutionDesc) (*engine.PrimitiveDesc, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	pd := &engine.PrimitiveDesc{
		Kind:    engine.Convolution,
		Descs:   make(map[engine.Role]tensor.Desc, 4),
		Stride:  d.Stride,
		Padding: d.Padding,
	}
	operands := []struct {
		role   engine.Role
		desc   tensor.Desc
		prefer tensor.Format
	}{
		{engine.Src, d.Src, cpu.policy.Activation},
		{engine.Weights, d.Weights, cpu.policy.Weights},
		{engine.Bias, d.Bias, cpu.policy.Bias},
		{engine.Dst, d.Dst, cpu.policy.Activation},
	}
	for _, op := range operands {
		r, err := cpu.resolve("conv2d", op.role, op.desc, op.prefer)
		if err != nil {
			return nil, err
		}
		pd.Descs[op.role] = r
	}
	return pd, nil
}

// ResolveEltwise resolves an elementwise operator. The destination takes the
// source's exact layout.
func (cpu *CPUBackend) ResolveEltwise(d engine.EltwiseDesc) (*engine.PrimitiveDesc, error) {
	if d.Algorithm != engine.ReLU {
		return nil, fmt.Errorf("eltwise: unsupported algorithm %s: %w", d.Algorithm, engine.ErrLayoutResolution)
	}
	if !d.Src.Concrete() {
		return nil, fmt.Errorf("eltwise: src %s must have a concrete layout: %w", d.Src, engine.ErrLayoutResolution)
	}
	if d.Src.DType() != tensor.Float32 {
		return nil, fmt.Errorf("eltwise: no %s implementation: %w", d.Src.DType(), engine.ErrLayoutResolution)
	}
	return &engine.PrimitiveDesc{
		Kind:      engine.Eltwise,
		Descs:     map[engine.Role]tensor.Desc{engine.Src: d.Src, engine.Dst: d.Src},
		Algorithm: d.Algorithm,
		Alpha:     d.Alpha,
	}, nil
}

// ResolvePooling resolves a max pooling. An EngineChoice destination takes the
// source's format; the workspace holds one int32 source offset per output.
func (cpu *CPUBackend) ResolvePooling(d engine.PoolingDesc) (*engine.PrimitiveDesc, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	srcFormat, ok := d.Src.Format()
	if !ok {
		return nil, fmt.Errorf("maxpool2d: src %s must have a concrete layout: %w", d.Src, engine.ErrLayoutResolution)
	}
	if d.Src.DType() != tensor.Float32 {
		return nil, fmt.Errorf("maxpool2d: no %s implementation: %w", d.Src.DType(), engine.ErrLayoutResolution)
	}
	if n := d.Src.PhysicalSize(); n > math.MaxInt32 {
		return nil, fmt.Errorf("maxpool2d: src %s holds %d elements, workspace offsets are int32: %w",
			d.Src, n, engine.ErrShapeMismatch)
	}
	dst, err := cpu.resolve("maxpool2d", engine.Dst, d.Dst, srcFormat)
	if err != nil {
		return nil, err
	}
	dstFormat, _ := dst.Format()
	ws, err := tensor.NewDesc(dst.Shape(), tensor.Int32, tensor.Fixed{Format: dstFormat})
	if err != nil {
		return nil, fmt.Errorf("maxpool2d: workspace: %v: %w", err, engine.ErrLayoutResolution)
	}
	return &engine.PrimitiveDesc{
		Kind:    engine.Pooling,
		Descs:   map[engine.Role]tensor.Desc{engine.Src: d.Src, engine.Dst: dst, engine.Workspace: ws},
		Kernel:  d.Kernel,
		Stride:  d.Stride,
		Padding: d.Padding,
	}, nil
}

// ResolveReorder resolves a copy between two layouts of the same tensor.
func (cpu *CPUBackend) ResolveReorder(src, dst tensor.Desc) (*engine.PrimitiveDesc, error) {
	if !src.Concrete() || !dst.Concrete() {
		return nil, fmt.Errorf("reorder: %s -> %s needs concrete layouts: %w", src, dst, engine.ErrLayoutResolution)
	}
	if !src.Shape().Equal(dst.Shape()) || src.DType() != dst.DType() {
		return nil, fmt.Errorf("reorder: %s -> %s: %w", src, dst, engine.ErrShapeMismatch)
	}
	if src.DType() != tensor.Float32 {
		return nil, fmt.Errorf("reorder: no %s implementation: %w", src.DType(), engine.ErrLayoutResolution)
	}
	return &engine.PrimitiveDesc{
		Kind:  engine.Reorder,
		Descs: map[engine.Role]tensor.Desc{engine.Src: src, engine.Dst: dst},
	}, nil
}

// resolve fixes an EngineChoice descriptor to prefer, or checks a concrete one.
func (cpu *CPUBackend) resolve(op string, role engine.Role, d tensor.Desc, prefer tensor.Format) (tensor.Desc, error) {
	if d.DType() != tensor.Float32 {
		return tensor.Desc{}, fmt.Errorf("%s: %s: no %s implementation: %w", op, role, d.DType(), engine.ErrLayoutResolution)
	}
	if d.Concrete() {
		return d, nil
	}
	r, err := d.Resolve(prefer)
	if err != nil {
		return tensor.Desc{}, fmt.Errorf("%s: %s: %v: %w", op, role, err, engine.ErrLayoutResolution)
	}
	return r, nil
}
