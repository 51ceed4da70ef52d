package cpu

import (
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/parallel"
	"github.com/born-ml/vggplan/internal/tensor"
)

type convPrimitive struct {
	pd  *engine.PrimitiveDesc
	par parallel.Config
}

func (p *convPrimitive) Kind() engine.Kind { return engine.Convolution }

// Execute performs 2D convolution with bias using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Operands in any format are unpacked to plain order first and the result
// is packed into the destination's format.
//
// Algorithm: Im2col, one batch sample at a time
//  1. Transform the sample's input patches into rows (im2col)
//  2. Weights are already a [C_out, C_in * K_h * K_w] matrix in plain order
//  3. Multiply, splitting output channels across workers
//  4. Add bias
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (p *convPrimitive) Execute(args *engine.Args) error {
	if err := checkBound(p.pd, args); err != nil {
		return err
	}
	src := args.Buffer(engine.Src)
	weights := args.Buffer(engine.Weights)
	bias := args.Buffer(engine.Bias)
	dst := args.Buffer(engine.Dst)

	s := src.Shape()
	ws := weights.Shape()
	ds := dst.Shape()
	N, CIn, H, W := s[0], s[1], s[2], s[3]
	COut, KH, KW := ws[0], ws[2], ws[3]
	HOut, WOut := ds[2], ds[3]

	inputData := plain(src)
	kernelData := plain(weights)
	biasData := bias.AsFloat32()

	var outputData []float32
	if dst.Format() == tensor.NCHW {
		outputData = dst.AsFloat32()
	} else {
		outputData = make([]float32, ds.NumElements())
	}

	colWidth := CIn * KH * KW
	colHeight := HOut * WOut
	colBuf := make([]float32, colHeight*colWidth)

	for n := 0; n < N; n++ {
		sample := inputData[n*CIn*H*W : (n+1)*CIn*H*W]
		im2colFloat32(colBuf, sample, CIn, H, W, KH, KW, HOut, WOut,
			p.pd.Stride, p.pd.Padding)

		out := outputData[n*COut*colHeight : (n+1)*COut*colHeight]
		p.par.For(COut, func(o int) {
			row := kernelData[o*colWidth : (o+1)*colWidth]
			plane := out[o*colHeight : (o+1)*colHeight]
			b := biasData[o]
			for j := 0; j < colHeight; j++ {
				col := colBuf[j*colWidth : (j+1)*colWidth]
				sum := b
				for k, w := range row {
					sum += w * col[k]
				}
				plane[j] = sum
			}
		})
	}

	if dst.Format() != tensor.NCHW {
		tensor.Pack(dst, outputData)
	}
	return nil
}

// plain returns the buffer's values in plain row-major order, unpacking only
// when the buffer is not already plain.
func plain(b *tensor.Buffer) []float32 {
	switch b.Format() {
	case tensor.NCHW, tensor.OIHW, tensor.X:
		return b.AsFloat32()
	default:
		return tensor.Unpack(b)
	}
}

// im2colFloat32 transforms one input sample into a column matrix.
//
// Input: [C, H, W]
// Output: colBuf [H_out * W_out, C * K_h * K_w]
//
// Each row of colBuf corresponds to one output position and holds the
// flattened input patch for it; out-of-bounds (padding) positions are zero.
func im2colFloat32(colBuf, inputData []float32, C, H, W, KH, KW, HOut, WOut int, stride, padding [2]int) {
	colWidth := C * KH * KW
	colIdx := 0

	for outH := 0; outH < HOut; outH++ {
		for outW := 0; outW < WOut; outW++ {
			// Top-left corner in input space
			hStart := outH*stride[0] - padding[0]
			wStart := outW*stride[1] - padding[1]

			bufIdx := colIdx * colWidth

			for c := 0; c < C; c++ {
				for kh := 0; kh < KH; kh++ {
					h := hStart + kh
					for kw := 0; kw < KW; kw++ {
						w := wStart + kw
						if h >= 0 && h < H && w >= 0 && w < W {
							colBuf[bufIdx] = inputData[c*H*W+h*W+w]
						} else {
							colBuf[bufIdx] = 0.0
						}
						bufIdx++
					}
				}
			}

			colIdx++
		}
	}
}
