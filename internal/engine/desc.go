package engine

import (
	"fmt"

	"github.com/born-ml/vggplan/internal/tensor"
)

// Algorithm selects the elementwise function of an eltwise operator.
type Algorithm int

// Eltwise algorithms.
const (
	// ReLU computes max(0, x), or alpha*x for x < 0 when alpha is non-zero.
	ReLU Algorithm = iota
)

func (a Algorithm) String() string {
	if a == ReLU {
		return "relu"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ConvolutionDesc declares a forward 2-D convolution with bias.
//
// Operand descriptors may use tensor.EngineChoice. Padding is applied on
// both sides of each spatial dimension.
type ConvolutionDesc struct {
	Src     tensor.Desc // [N, C, H, W]
	Weights tensor.Desc // [O, C, kH, kW]
	Bias    tensor.Desc // [O]
	Dst     tensor.Desc // [N, O, outH, outW]
	Stride  [2]int
	Padding [2]int
}

// Validate checks operand shapes against each other and the parameters.
func (d ConvolutionDesc) Validate() error {
	if d.Src.Rank() != 4 || d.Weights.Rank() != 4 || d.Bias.Rank() != 1 || d.Dst.Rank() != 4 {
		return fmt.Errorf("conv2d: want 4-D src/weights/dst and 1-D bias, got %v %v %v %v: %w",
			d.Src.Shape(), d.Weights.Shape(), d.Bias.Shape(), d.Dst.Shape(), ErrShapeMismatch)
	}
	if d.Src.Dim(1) != d.Weights.Dim(1) {
		return fmt.Errorf("conv2d: input channels %d != weight channels %d: %w",
			d.Src.Dim(1), d.Weights.Dim(1), ErrShapeMismatch)
	}
	if d.Bias.Dim(0) != d.Weights.Dim(0) {
		return fmt.Errorf("conv2d: bias length %d != output channels %d: %w",
			d.Bias.Dim(0), d.Weights.Dim(0), ErrShapeMismatch)
	}
	if err := checkWindow("conv2d", d.Stride, d.Padding); err != nil {
		return err
	}
	want, err := d.OutputShape()
	if err != nil {
		return err
	}
	if !want.Equal(d.Dst.Shape()) {
		return fmt.Errorf("conv2d: dst shape %v, parameters give %v: %w", d.Dst.Shape(), want, ErrShapeMismatch)
	}
	return nil
}

// OutputShape computes the destination shape from src, weights and parameters.
func (d ConvolutionDesc) OutputShape() (tensor.Shape, error) {
	kh, kw := d.Weights.Dim(2), d.Weights.Dim(3)
	oh := tensor.OutputSize(d.Src.Dim(2), kh, d.Stride[0], d.Padding[0])
	ow := tensor.OutputSize(d.Src.Dim(3), kw, d.Stride[1], d.Padding[1])
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("conv2d: kernel %dx%d larger than padded input %dx%d: %w",
			kh, kw, d.Src.Dim(2)+2*d.Padding[0], d.Src.Dim(3)+2*d.Padding[1], ErrShapeMismatch)
	}
	return tensor.Shape{d.Src.Dim(0), d.Weights.Dim(0), oh, ow}, nil
}

// EltwiseDesc declares a forward elementwise operator. Src must be concrete;
// the destination takes the same shape and layout.
type EltwiseDesc struct {
	Algorithm Algorithm
	Src       tensor.Desc
	Alpha     float32 // negative slope for ReLU
}

// PoolingDesc declares a forward max pooling. Padded positions never win.
type PoolingDesc struct {
	Src     tensor.Desc // concrete
	Dst     tensor.Desc // [N, C, outH, outW], usually EngineChoice
	Kernel  [2]int
	Stride  [2]int
	Padding [2]int
}

// Validate checks the pooled shape against the parameters.
func (d PoolingDesc) Validate() error {
	if d.Src.Rank() != 4 || d.Dst.Rank() != 4 {
		return fmt.Errorf("maxpool2d: want 4-D src and dst, got %v %v: %w", d.Src.Shape(), d.Dst.Shape(), ErrShapeMismatch)
	}
	if d.Kernel[0] <= 0 || d.Kernel[1] <= 0 {
		return fmt.Errorf("maxpool2d: invalid kernel %v: %w", d.Kernel, ErrShapeMismatch)
	}
	if d.Padding[0] >= d.Kernel[0] || d.Padding[1] >= d.Kernel[1] {
		return fmt.Errorf("maxpool2d: padding %v must be smaller than kernel %v: %w", d.Padding, d.Kernel, ErrShapeMismatch)
	}
	if err := checkWindow("maxpool2d", d.Stride, d.Padding); err != nil {
		return err
	}
	want, err := d.OutputShape()
	if err != nil {
		return err
	}
	if !want.Equal(d.Dst.Shape()) {
		return fmt.Errorf("maxpool2d: dst shape %v, parameters give %v: %w", d.Dst.Shape(), want, ErrShapeMismatch)
	}
	return nil
}

// OutputShape computes the pooled shape.
func (d PoolingDesc) OutputShape() (tensor.Shape, error) {
	oh := tensor.OutputSize(d.Src.Dim(2), d.Kernel[0], d.Stride[0], d.Padding[0])
	ow := tensor.OutputSize(d.Src.Dim(3), d.Kernel[1], d.Stride[1], d.Padding[1])
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("maxpool2d: kernel %v larger than padded input %dx%d: %w",
			d.Kernel, d.Src.Dim(2)+2*d.Padding[0], d.Src.Dim(3)+2*d.Padding[1], ErrShapeMismatch)
	}
	return tensor.Shape{d.Src.Dim(0), d.Src.Dim(1), oh, ow}, nil
}

func checkWindow(op string, stride, padding [2]int) error {
	if stride[0] <= 0 || stride[1] <= 0 {
		return fmt.Errorf("%s: invalid stride %v: %w", op, stride, ErrShapeMismatch)
	}
	if padding[0] < 0 || padding[1] < 0 {
		return fmt.Errorf("%s: invalid padding %v: %w", op, padding, ErrShapeMismatch)
	}
	return nil
}

// PrimitiveDesc is an operator descriptor after the engine has resolved
// every operand to a concrete layout.
type PrimitiveDesc struct {
	Kind  Kind
	Descs map[Role]tensor.Desc

	Stride    [2]int
	Padding   [2]int
	Kernel    [2]int
	Algorithm Algorithm
	Alpha     float32
}

// Desc returns the resolved descriptor for role r.
func (pd *PrimitiveDesc) Desc(r Role) (tensor.Desc, bool) {
	d, ok := pd.Descs[r]
	return d, ok
}

// SrcDesc returns the resolved source descriptor.
func (pd *PrimitiveDesc) SrcDesc() tensor.Desc { return pd.Descs[Src] }

// WeightsDesc returns the resolved weights descriptor.
func (pd *PrimitiveDesc) WeightsDesc() tensor.Desc { return pd.Descs[Weights] }

// BiasDesc returns the resolved bias descriptor.
func (pd *PrimitiveDesc) BiasDesc() tensor.Desc { return pd.Descs[Bias] }

// DstDesc returns the resolved destination descriptor.
func (pd *PrimitiveDesc) DstDesc() tensor.Desc { return pd.Descs[Dst] }

// WorkspaceDesc returns the engine-dictated workspace descriptor.
func (pd *PrimitiveDesc) WorkspaceDesc() tensor.Desc { return pd.Descs[Workspace] }

// String summarizes the operator for plan listings.
func (pd *PrimitiveDesc) String() string {
	switch pd.Kind {
	case Convolution:
		return fmt.Sprintf("conv k=%dx%d s=%v p=%v", pd.WeightsDesc().Dim(2), pd.WeightsDesc().Dim(3), pd.Stride, pd.Padding)
	case Eltwise:
		return fmt.Sprintf("%s alpha=%g", pd.Algorithm, pd.Alpha)
	case Pooling:
		return fmt.Sprintf("max k=%v s=%v p=%v", pd.Kernel, pd.Stride, pd.Padding)
	case Reorder:
		return fmt.Sprintf("%s -> %s", pd.SrcDesc().Layout(), pd.DstDesc().Layout())
	default:
		return pd.Kind.String()
	}
}
