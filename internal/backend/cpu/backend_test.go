package cpu

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

func convDesc(t *testing.T, n, c, h, o int) engine.ConvolutionDesc {
	t.Helper()
	return engine.ConvolutionDesc{
		Src:     anyDesc(t, tensor.Shape{n, c, h, h}),
		Weights: anyDesc(t, tensor.Shape{o, c, 3, 3}),
		Bias:    anyDesc(t, tensor.Shape{o}),
		Dst:     anyDesc(t, tensor.Shape{n, o, h, h}),
		Stride:  [2]int{1, 1},
		Padding: [2]int{1, 1},
	}
}

func format(t *testing.T, d tensor.Desc) tensor.Format {
	t.Helper()
	f, ok := d.Format()
	require.True(t, ok, "descriptor %s unresolved", d)
	return f
}

func TestResolveConvolution_Policies(t *testing.T) {
	tests := []struct {
		name    string
		backend *CPUBackend
		act     tensor.Format
		weights tensor.Format
	}{
		{"plain", New(), tensor.NCHW, tensor.OIHW},
		{"blocked", NewWithPolicy("blocked", tensor.Accelerated, BlockedPolicy), tensor.NChw8c, tensor.OIhw8i8o},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd, err := tt.backend.ResolveConvolution(convDesc(t, 16, 3, 224, 64))
			require.NoError(t, err)

			assert.Equal(t, engine.Convolution, pd.Kind)
			assert.Equal(t, tt.act, format(t, pd.SrcDesc()))
			assert.Equal(t, tt.weights, format(t, pd.WeightsDesc()))
			assert.Equal(t, tensor.X, format(t, pd.BiasDesc()))
			assert.Equal(t, tt.act, format(t, pd.DstDesc()))
			assert.Equal(t, tensor.Shape{16, 64, 224, 224}, pd.DstDesc().Shape())
		})
	}
}

func TestResolveConvolution_KeepsConcreteOperands(t *testing.T) {
	backend := NewWithPolicy("blocked", tensor.Accelerated, BlockedPolicy)
	d := convDesc(t, 1, 8, 4, 8)
	d.Src = desc(t, tensor.Shape{1, 8, 4, 4}, tensor.Fixed{Format: tensor.NHWC})

	pd, err := backend.ResolveConvolution(d)
	require.NoError(t, err)
	assert.Equal(t, tensor.NHWC, format(t, pd.SrcDesc()))
	assert.Equal(t, tensor.NChw8c, format(t, pd.DstDesc()))
}

func TestResolveConvolution_ShapeMismatch(t *testing.T) {
	backend := New()

	tests := []struct {
		name   string
		mutate func(d *engine.ConvolutionDesc)
	}{
		{"channel mismatch", func(d *engine.ConvolutionDesc) {
			d.Weights = anyDesc(t, tensor.Shape{64, 4, 3, 3})
		}},
		{"bias length", func(d *engine.ConvolutionDesc) {
			d.Bias = anyDesc(t, tensor.Shape{63})
		}},
		{"kernel larger than padded input", func(d *engine.ConvolutionDesc) {
			d.Src = anyDesc(t, tensor.Shape{1, 3, 2, 2})
			d.Weights = anyDesc(t, tensor.Shape{64, 3, 7, 7})
		}},
		{"dst shape", func(d *engine.ConvolutionDesc) {
			d.Dst = anyDesc(t, tensor.Shape{1, 64, 7, 7})
		}},
		{"zero stride", func(d *engine.ConvolutionDesc) {
			d.Stride = [2]int{0, 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := convDesc(t, 1, 3, 8, 64)
			tt.mutate(&d)
			_, err := backend.ResolveConvolution(d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrShapeMismatch), "got %v", err)
		})
	}
}

func TestResolveConvolution_UnsupportedType(t *testing.T) {
	backend := New()
	d := convDesc(t, 1, 3, 8, 4)
	var err error
	d.Weights, err = tensor.NewDesc(tensor.Shape{4, 3, 3, 3}, tensor.Float64, tensor.EngineChoice{})
	require.NoError(t, err)

	_, err = backend.ResolveConvolution(d)
	assert.True(t, errors.Is(err, engine.ErrLayoutResolution), "got %v", err)
}

func TestResolveEltwise(t *testing.T) {
	backend := New()
	src := desc(t, tensor.Shape{1, 8, 2, 2}, tensor.Fixed{Format: tensor.NChw8c})

	pd, err := backend.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src})
	require.NoError(t, err)
	assert.True(t, pd.DstDesc().Equal(src), "relu keeps the producer's exact layout")

	_, err = backend.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: anyDesc(t, tensor.Shape{1, 8, 2, 2})})
	assert.True(t, errors.Is(err, engine.ErrLayoutResolution))
}

func TestEltwise_ReLU(t *testing.T) {
	backend := New()
	src := filled(t, backend, tensor.Shape{1, 1, 2, 3}, tensor.NCHW, []float32{-2, -0.5, 0, 0.5, 2, -7})

	for _, tc := range []struct {
		alpha float32
		want  []float32
	}{
		{0, []float32{0, 0, 0, 0.5, 2, 0}},
		{0.1, []float32{-0.2, -0.05, 0, 0.5, 2, -0.7}},
	} {
		pd, err := backend.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc(), Alpha: tc.alpha})
		require.NoError(t, err)
		dst := alloc(t, backend, pd.DstDesc())
		run(t, backend, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst))
		assert.InDeltaSlice(t, tc.want, tensor.Unpack(dst), 1e-6, "alpha %g", tc.alpha)
	}
}

func TestEltwise_ReLUNoNegativeZero(t *testing.T) {
	backend := New()
	src := filled(t, backend, tensor.Shape{1, 1, 1, 4}, tensor.NCHW, []float32{-3, -1e-20, 0, 1})
	pd, err := backend.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	dst := alloc(t, backend, pd.DstDesc())
	run(t, backend, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst))

	for i, v := range tensor.Unpack(dst)[:2] {
		assert.False(t, math.Signbit(float64(v)), "element %d is %g", i, v)
	}
}

func TestReorder_RoundTrip(t *testing.T) {
	backend := New()
	shape := tensor.Shape{2, 11, 3, 2}
	values := seq(shape.NumElements(), 0)
	src := filled(t, backend, shape, tensor.NCHW, values)

	blocked := alloc(t, backend, desc(t, shape, tensor.Fixed{Format: tensor.NChw8c}))
	back := alloc(t, backend, desc(t, shape, tensor.Fixed{Format: tensor.NCHW}))

	pd, err := backend.ResolveReorder(src.Desc(), blocked.Desc())
	require.NoError(t, err)
	run(t, backend, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, blocked))

	pd, err = backend.ResolveReorder(blocked.Desc(), back.Desc())
	require.NoError(t, err)
	run(t, backend, pd, engine.NewArgs().Set(engine.Src, blocked).Set(engine.Dst, back))

	assert.Equal(t, values, back.AsFloat32())
	assert.Equal(t, values, tensor.Unpack(blocked))
}

func TestReorder_Weights(t *testing.T) {
	backend := New()
	shape := tensor.Shape{9, 3, 3, 3}
	values := seq(shape.NumElements(), 1)
	src := filled(t, backend, shape, tensor.OIHW, values)
	dst := alloc(t, backend, desc(t, shape, tensor.Fixed{Format: tensor.OIhw8i8o}))

	pd, err := backend.ResolveReorder(src.Desc(), dst.Desc())
	require.NoError(t, err)
	run(t, backend, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst))

	assert.Equal(t, values, tensor.Unpack(dst))
}

func TestResolveReorder_Errors(t *testing.T) {
	backend := New()
	a := desc(t, tensor.Shape{1, 3, 4, 4}, tensor.Fixed{Format: tensor.NCHW})

	_, err := backend.ResolveReorder(a, desc(t, tensor.Shape{1, 3, 4, 5}, tensor.Fixed{Format: tensor.NChw8c}))
	assert.True(t, errors.Is(err, engine.ErrShapeMismatch))

	_, err = backend.ResolveReorder(a, anyDesc(t, tensor.Shape{1, 3, 4, 4}))
	assert.True(t, errors.Is(err, engine.ErrLayoutResolution))
}

func TestAlloc_MemoryLimit(t *testing.T) {
	backend := New(WithMemoryLimit(1024))
	d := desc(t, tensor.Shape{1, 1, 16, 16}, tensor.Fixed{Format: tensor.NCHW}) // 1 KiB

	_, err := backend.Alloc(d)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), backend.Allocated())

	_, err = backend.Alloc(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrResourceExhausted))

	_, err = New().Alloc(anyDesc(t, tensor.Shape{1, 1, 2, 2}))
	assert.True(t, errors.Is(err, engine.ErrLayoutResolution))
}

func TestPrimitive_RejectsMismatchedBindings(t *testing.T) {
	backend := New()
	src := filled(t, backend, tensor.Shape{1, 8, 2, 2}, tensor.NCHW, seq(32, 0))

	pd, err := backend.ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	prim, err := backend.Primitive(pd)
	require.NoError(t, err)

	err = prim.Execute(engine.NewArgs().Set(engine.Src, src))
	assert.True(t, errors.Is(err, engine.ErrUnboundRole), "missing dst: %v", err)

	wrong := alloc(t, backend, desc(t, tensor.Shape{1, 8, 2, 2}, tensor.Fixed{Format: tensor.NChw8c}))
	err = prim.Execute(engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, wrong))
	assert.True(t, errors.Is(err, engine.ErrShapeMismatch), "dst in another layout: %v", err)
}

func TestNewWithPolicy(t *testing.T) {
	backend := NewWithPolicy("accel", tensor.Accelerated, BlockedPolicy, WithWorkers(2))
	assert.Equal(t, "accel", backend.Name())
	assert.Equal(t, tensor.Accelerated, backend.Device())
	assert.Equal(t, BlockedPolicy, backend.Policy())
	assert.Equal(t, 2, backend.par.Workers)

	plain := New()
	assert.Equal(t, "cpu", plain.Name())
	assert.Equal(t, tensor.CPU, plain.Device())
}
