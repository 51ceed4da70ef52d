package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

func desc(t *testing.T, shape tensor.Shape, layout tensor.Layout) tensor.Desc {
	t.Helper()
	d, err := tensor.NewDesc(shape, tensor.Float32, layout)
	require.NoError(t, err)
	return d
}

func anyDesc(t *testing.T, shape tensor.Shape) tensor.Desc {
	t.Helper()
	return desc(t, shape, tensor.EngineChoice{})
}

// filled allocates a buffer in format f holding values given in plain order.
func filled(t *testing.T, cpu *CPUBackend, shape tensor.Shape, f tensor.Format, values []float32) *tensor.Buffer {
	t.Helper()
	b, err := cpu.Alloc(desc(t, shape, tensor.Fixed{Format: f}))
	require.NoError(t, err)
	tensor.Pack(b, values)
	return b
}

func alloc(t *testing.T, cpu *CPUBackend, d tensor.Desc) *tensor.Buffer {
	t.Helper()
	b, err := cpu.Alloc(d)
	require.NoError(t, err)
	return b
}

func run(t *testing.T, cpu *CPUBackend, pd *engine.PrimitiveDesc, args *engine.Args) {
	t.Helper()
	prim, err := cpu.Primitive(pd)
	require.NoError(t, err)
	require.NoError(t, prim.Execute(args))
}

func seq(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

// convolve runs a single convolution on cpu, reordering plain inputs into
// whatever the engine resolved, and returns the output in plain order.
func convolve(t *testing.T, cpu *CPUBackend, src, weights, bias []float32,
	srcShape, wShape tensor.Shape, stride, pad int,
) ([]float32, tensor.Shape) {
	t.Helper()
	oh := tensor.OutputSize(srcShape[2], wShape[2], stride, pad)
	ow := tensor.OutputSize(srcShape[3], wShape[3], stride, pad)
	dstShape := tensor.Shape{srcShape[0], wShape[0], oh, ow}

	pd, err := cpu.ResolveConvolution(engine.ConvolutionDesc{
		Src:     anyDesc(t, srcShape),
		Weights: anyDesc(t, wShape),
		Bias:    anyDesc(t, tensor.Shape{wShape[0]}),
		Dst:     anyDesc(t, dstShape),
		Stride:  [2]int{stride, stride},
		Padding: [2]int{pad, pad},
	})
	require.NoError(t, err)

	srcFmt, _ := pd.SrcDesc().Format()
	wFmt, _ := pd.WeightsDesc().Format()
	s := filled(t, cpu, srcShape, srcFmt, src)
	w := filled(t, cpu, wShape, wFmt, weights)
	b := filled(t, cpu, tensor.Shape{wShape[0]}, tensor.X, bias)
	d := alloc(t, cpu, pd.DstDesc())

	run(t, cpu, pd, engine.NewArgs().
		Set(engine.Src, s).
		Set(engine.Weights, w).
		Set(engine.Bias, b).
		Set(engine.Dst, d))
	return tensor.Unpack(d), dstShape
}
