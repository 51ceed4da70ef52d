// Package nn provides layer builders that append engine primitives to a plan.
//
// Each builder declares its operator with EngineChoice layouts, lets the
// engine resolve them, negotiates existing operands into the resolved
// layouts and allocates the outputs. Builders never run kernels.
package nn

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/plan"
	"github.com/born-ml/vggplan/internal/tensor"
)

// ConvSpec configures a square convolution with bias.
type ConvSpec struct {
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int

	// Weights and Bias fill the parameters; nil means Sine.
	Weights Initializer
	Bias    Initializer
}

// PoolSpec configures a square max pooling.
type PoolSpec struct {
	Kernel  int
	Stride  int
	Padding int
}

// Builder appends layers to a plan.
type Builder struct {
	eng    engine.Engine
	plan   *plan.Plan
	logger *slog.Logger
}

// NewBuilder creates a builder appending to p.
func NewBuilder(p *plan.Plan, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{eng: p.Engine(), plan: p, logger: logger}
}

// Plan returns the plan being built.
func (b *Builder) Plan() *plan.Plan {
	return b.plan
}

// Input allocates a caller-layout (nchw) buffer for the network input and
// registers it with the plan as external data.
func (b *Builder) Input(shape tensor.Shape) (*tensor.Buffer, error) {
	d, err := tensor.NewDesc(shape, tensor.Float32, tensor.Fixed{Format: tensor.NCHW})
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	buf, err := b.eng.Alloc(d)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if err := b.plan.Import(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Convolution appends a 2-D convolution with bias over src.
//
// Weights [O, C, k, k] and bias [O] are created in oihw and x, initialized
// and imported. Src, weights and bias are each negotiated into the layouts
// the engine resolved; mismatches add Reorder nodes before the convolution.
func (b *Builder) Convolution(name string, src *tensor.Buffer, conv ConvSpec) (*tensor.Buffer, error) {
	if conv.OutChannels <= 0 || conv.Kernel <= 0 {
		return nil, fmt.Errorf("%s: invalid out channels %d or kernel %d: %w",
			name, conv.OutChannels, conv.Kernel, engine.ErrShapeMismatch)
	}
	s := src.Shape()
	if len(s) != 4 {
		return nil, fmt.Errorf("%s: want 4-D src, got %v: %w", name, s, engine.ErrShapeMismatch)
	}
	wShape := tensor.Shape{conv.OutChannels, s[1], conv.Kernel, conv.Kernel}
	bShape := tensor.Shape{conv.OutChannels}
	oh := tensor.OutputSize(s[2], conv.Kernel, conv.Stride, conv.Padding)
	ow := tensor.OutputSize(s[3], conv.Kernel, conv.Stride, conv.Padding)
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("%s: kernel %d stride %d padding %d do not fit %v: %w",
			name, conv.Kernel, conv.Stride, conv.Padding, s, engine.ErrShapeMismatch)
	}
	dShape := tensor.Shape{s[0], conv.OutChannels, oh, ow}

	var descs [4]tensor.Desc
	for i, shape := range []tensor.Shape{s, wShape, bShape, dShape} {
		d, err := tensor.NewDesc(shape, tensor.Float32, tensor.EngineChoice{})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		descs[i] = d
	}
	pd, err := b.eng.ResolveConvolution(engine.ConvolutionDesc{
		Src:     descs[0],
		Weights: descs[1],
		Bias:    descs[2],
		Dst:     descs[3],
		Stride:  [2]int{conv.Stride, conv.Stride},
		Padding: [2]int{conv.Padding, conv.Padding},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	weights, err := b.param(name+"/weights", wShape, conv.Weights)
	if err != nil {
		return nil, err
	}
	bias, err := b.param(name+"/bias", bShape, conv.Bias)
	if err != nil {
		return nil, err
	}

	src, err = b.plan.Negotiate(name+"/src", pd.SrcDesc(), src)
	if err != nil {
		return nil, err
	}
	weights, err = b.plan.Negotiate(name+"/weights", pd.WeightsDesc(), weights)
	if err != nil {
		return nil, err
	}
	bias, err = b.plan.Negotiate(name+"/bias", pd.BiasDesc(), bias)
	if err != nil {
		return nil, err
	}

	dst, err := b.eng.Alloc(pd.DstDesc())
	if err != nil {
		return nil, fmt.Errorf("%s: dst: %w", name, err)
	}
	args := engine.NewArgs().
		Set(engine.Src, src).
		Set(engine.Weights, weights).
		Set(engine.Bias, bias).
		Set(engine.Dst, dst)
	if err := b.plan.Append(name, pd, args); err != nil {
		return nil, err
	}
	b.logger.Debug("convolution",
		slog.String("node", name),
		slog.String("src", src.Desc().String()),
		slog.String("weights", weights.Desc().String()),
		slog.String("dst", dst.Desc().String()))
	return dst, nil
}

// ReLU appends an elementwise ReLU over src in src's exact layout.
// A non-zero slope gives leaky ReLU.
func (b *Builder) ReLU(name string, src *tensor.Buffer, slope float32) (*tensor.Buffer, error) {
	pd, err := b.eng.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc(), Alpha: slope})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dst, err := b.eng.Alloc(pd.DstDesc())
	if err != nil {
		return nil, fmt.Errorf("%s: dst: %w", name, err)
	}
	if err := b.plan.Append(name, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst)); err != nil {
		return nil, err
	}
	return dst, nil
}

// MaxPool appends a max pooling over src. The destination layout and the
// workspace are dictated by the engine.
func (b *Builder) MaxPool(name string, src *tensor.Buffer, pool PoolSpec) (*tensor.Buffer, error) {
	s := src.Shape()
	if len(s) != 4 {
		return nil, fmt.Errorf("%s: want 4-D src, got %v: %w", name, s, engine.ErrShapeMismatch)
	}
	oh := tensor.OutputSize(s[2], pool.Kernel, pool.Stride, pool.Padding)
	ow := tensor.OutputSize(s[3], pool.Kernel, pool.Stride, pool.Padding)
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("%s: window %d/%d/%d does not fit %v: %w",
			name, pool.Kernel, pool.Stride, pool.Padding, s, engine.ErrShapeMismatch)
	}
	dstDesc, err := tensor.NewDesc(tensor.Shape{s[0], s[1], oh, ow}, tensor.Float32, tensor.EngineChoice{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	pd, err := b.eng.ResolvePooling(engine.PoolingDesc{
		Src:     src.Desc(),
		Dst:     dstDesc,
		Kernel:  [2]int{pool.Kernel, pool.Kernel},
		Stride:  [2]int{pool.Stride, pool.Stride},
		Padding: [2]int{pool.Padding, pool.Padding},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dst, err := b.eng.Alloc(pd.DstDesc())
	if err != nil {
		return nil, fmt.Errorf("%s: dst: %w", name, err)
	}
	ws, err := b.eng.Alloc(pd.WorkspaceDesc())
	if err != nil {
		return nil, fmt.Errorf("%s: workspace: %w", name, err)
	}
	args := engine.NewArgs().
		Set(engine.Src, src).
		Set(engine.Dst, dst).
		Set(engine.Workspace, ws)
	if err := b.plan.Append(name, pd, args); err != nil {
		return nil, err
	}
	return dst, nil
}

// Reorder converts src into a fixed format, appending a Reorder node unless
// src already has it.
func (b *Builder) Reorder(name string, src *tensor.Buffer, f tensor.Format) (*tensor.Buffer, error) {
	want, err := tensor.NewDesc(src.Shape(), src.Desc().DType(), tensor.Fixed{Format: f})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b.plan.Negotiate(name, want, src)
}

func (b *Builder) param(name string, s tensor.Shape, fill Initializer) (*tensor.Buffer, error) {
	if fill == nil {
		fill = Sine
	}
	buf, err := initParam(b.eng.Alloc, s, fill)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := b.plan.Import(buf); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return buf, nil
}
