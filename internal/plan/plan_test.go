package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vggplan/internal/backend/accel"
	"github.com/born-ml/vggplan/internal/backend/cpu"
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

func desc(t *testing.T, s tensor.Shape, l tensor.Layout) tensor.Desc {
	t.Helper()
	d, err := tensor.NewDesc(s, tensor.Float32, l)
	require.NoError(t, err)
	return d
}

func fixed(f tensor.Format) tensor.Layout { return tensor.Fixed{Format: f} }

func imported(t *testing.T, p *Plan, s tensor.Shape, f tensor.Format) *tensor.Buffer {
	t.Helper()
	b, err := p.Engine().Alloc(desc(t, s, fixed(f)))
	require.NoError(t, err)
	require.NoError(t, p.Import(b))
	return b
}

// relu appends a ReLU over src and returns its destination.
func relu(t *testing.T, p *Plan, label string, src *tensor.Buffer) *tensor.Buffer {
	t.Helper()
	pd, err := p.Engine().ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	dst, err := p.Engine().Alloc(pd.DstDesc())
	require.NoError(t, err)
	require.NoError(t, p.Append(label, pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst)))
	return dst
}

func TestDecide(t *testing.T) {
	s := tensor.Shape{2, 3, 4, 4}
	nchw := desc(t, s, fixed(tensor.NCHW))

	tests := []struct {
		name    string
		want    tensor.Desc
		have    tensor.Desc
		expect  Decision
		wantErr error
	}{
		{"engine choice binds", desc(t, s, tensor.EngineChoice{}), nchw, Bind, nil},
		{"equal binds", desc(t, s, fixed(tensor.NCHW)), nchw, Bind, nil},
		{"blocked reorders", desc(t, s, fixed(tensor.NChw8c)), nchw, Reorder, nil},
		{"nhwc reorders", desc(t, s, fixed(tensor.NHWC)), nchw, Reorder, nil},
		{"shape differs", desc(t, tensor.Shape{2, 3, 4, 5}, fixed(tensor.NChw8c)), nchw, Bind, engine.ErrShapeMismatch},
		{"have unresolved", nchw, desc(t, s, tensor.EngineChoice{}), Bind, engine.ErrLayoutResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.want, tt.have)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestDecide_DTypeDiffers(t *testing.T) {
	have := desc(t, tensor.Shape{4}, fixed(tensor.X))
	want, err := tensor.NewDesc(tensor.Shape{4}, tensor.Int32, fixed(tensor.X))
	require.NoError(t, err)

	_, err = Decide(want, have)
	assert.True(t, errors.Is(err, engine.ErrShapeMismatch))
}

func TestNegotiate_BindsMatchingLayout(t *testing.T) {
	p := New(cpu.New())
	have := imported(t, p, tensor.Shape{1, 3, 4, 4}, tensor.NCHW)

	got, err := p.Negotiate("src", desc(t, tensor.Shape{1, 3, 4, 4}, fixed(tensor.NCHW)), have)
	require.NoError(t, err)
	assert.Same(t, have, got)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, p.Reorders())
}

func TestNegotiate_InsertsOneReorder(t *testing.T) {
	p := New(accel.New())
	have := imported(t, p, tensor.Shape{1, 3, 4, 4}, tensor.NCHW)
	want := desc(t, tensor.Shape{1, 3, 4, 4}, fixed(tensor.NChw8c))

	first, err := p.Negotiate("conv1/src", want, have)
	require.NoError(t, err)
	second, err := p.Negotiate("conv1/src", want, have)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 1, p.Reorders())
	assert.True(t, first.Desc().Equal(want))

	node := p.Nodes()[0]
	assert.Equal(t, engine.Reorder, node.Kind)
	args := p.Args(0)
	assert.Same(t, have, args.Buffer(engine.Src))
	assert.Same(t, first, args.Buffer(engine.Dst))
}

func TestNegotiate_UnavailableSource(t *testing.T) {
	p := New(accel.New())
	have, err := p.Engine().Alloc(desc(t, tensor.Shape{1, 3, 4, 4}, fixed(tensor.NCHW)))
	require.NoError(t, err)

	_, err = p.Negotiate("src", desc(t, tensor.Shape{1, 3, 4, 4}, fixed(tensor.NChw8c)), have)
	assert.True(t, errors.Is(err, engine.ErrNotTopological), "got %v", err)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, p.Reorders())
}

func TestAppend_MissingRole(t *testing.T) {
	p := New(cpu.New())
	src := imported(t, p, tensor.Shape{1, 8, 2, 2}, tensor.NCHW)
	pd, err := p.Engine().ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)

	err = p.Append("relu", pd, engine.NewArgs().Set(engine.Src, src))
	assert.True(t, errors.Is(err, engine.ErrUnboundRole), "got %v", err)
	assert.Equal(t, 0, p.Len())
}

func TestAppend_NotTopological(t *testing.T) {
	p := New(cpu.New())
	src, err := p.Engine().Alloc(desc(t, tensor.Shape{1, 8, 2, 2}, fixed(tensor.NCHW)))
	require.NoError(t, err)
	pd, err := p.Engine().ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	dst, err := p.Engine().Alloc(pd.DstDesc())
	require.NoError(t, err)

	err = p.Append("relu", pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst))
	assert.True(t, errors.Is(err, engine.ErrNotTopological), "got %v", err)
	assert.Equal(t, 0, p.Len())

	// Once produced by an earlier node the same buffer is a valid input.
	require.NoError(t, p.Import(src))
	mid := relu(t, p, "relu1", src)
	relu(t, p, "relu2", mid)
	assert.Equal(t, 2, p.Len())
	assert.NoError(t, p.Validate())
}

func TestAppend_BoundDescriptorMismatch(t *testing.T) {
	p := New(cpu.New())
	src := imported(t, p, tensor.Shape{1, 8, 2, 2}, tensor.NCHW)
	pd, err := p.Engine().ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	dst, err := p.Engine().Alloc(desc(t, tensor.Shape{1, 8, 2, 2}, fixed(tensor.NHWC)))
	require.NoError(t, err)

	err = p.Append("relu", pd, engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst))
	assert.True(t, errors.Is(err, engine.ErrShapeMismatch), "got %v", err)
}

func TestImport_DeviceMismatch(t *testing.T) {
	b, err := accel.New().Alloc(desc(t, tensor.Shape{4}, fixed(tensor.X)))
	require.NoError(t, err)

	p := New(cpu.New())
	assert.Error(t, p.Import(b))
	assert.Error(t, p.Import(nil))
}

func TestAppend_CopiesBindings(t *testing.T) {
	p := New(cpu.New())
	src := imported(t, p, tensor.Shape{1, 8, 2, 2}, tensor.NCHW)
	pd, err := p.Engine().ResolveEltwise(engine.EltwiseDesc{Algorithm: engine.ReLU, Src: src.Desc()})
	require.NoError(t, err)
	dst, err := p.Engine().Alloc(pd.DstDesc())
	require.NoError(t, err)

	args := engine.NewArgs().Set(engine.Src, src).Set(engine.Dst, dst)
	require.NoError(t, p.Append("relu", pd, args))

	ws, err := p.Engine().Alloc(pd.DstDesc())
	require.NoError(t, err)
	args.Set(engine.Workspace, ws)
	assert.Equal(t, 2, p.Args(0).Len(), "caller mutation after append does not leak into the plan")
}

func TestSummary(t *testing.T) {
	p := New(accel.New())
	user := imported(t, p, tensor.Shape{1, 3, 2, 2}, tensor.NCHW)
	blocked, err := p.Negotiate("in", desc(t, tensor.Shape{1, 3, 2, 2}, fixed(tensor.NChw8c)), user)
	require.NoError(t, err)
	relu(t, p, "act", blocked)

	var kinds, labels []string
	for _, row := range p.Summary() {
		kinds = append(kinds, row.Kind)
		labels = append(labels, row.Label)
	}
	if diff := cmp.Diff([]string{"reorder", "eltwise"}, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in", "act"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "1x3x2x2:f32:nChw8c", p.Summary()[1].Dst)
	// nchw input 48 bytes, two padded nChw8c buffers of 128 bytes each.
	assert.Equal(t, int64(48+128+128), p.Bytes())
}

func TestExecute(t *testing.T) {
	p := New(accel.New())
	shape := tensor.Shape{1, 3, 2, 2}
	user := imported(t, p, shape, tensor.NCHW)
	tensor.Pack(user, []float32{-1, 2, -3, 4, 5, -6, 7, -8, 9, -10, 11, -12})

	blocked, err := p.Negotiate("in", desc(t, shape, fixed(tensor.NChw8c)), user)
	require.NoError(t, err)
	act := relu(t, p, "act", blocked)
	out, err := p.Negotiate("out", desc(t, shape, fixed(tensor.NCHW)), act)
	require.NoError(t, err)

	require.NoError(t, Execute(context.Background(), p))
	assert.Equal(t, []float32{0, 2, 0, 4, 5, 0, 7, 0, 9, 0, 11, 0}, out.AsFloat32())
	assert.Equal(t, 2, p.Reorders())
}

func TestExecute_Canceled(t *testing.T) {
	p := New(cpu.New())
	src := imported(t, p, tensor.Shape{1, 1, 2, 2}, tensor.NCHW)
	dst := relu(t, p, "act", src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Execute(ctx, p)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.False(t, dst.Materialized(), "no node ran")
}
