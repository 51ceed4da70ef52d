package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSize(t *testing.T) {
	tests := []struct {
		name                    string
		in, kernel, stride, pad int
		want                    int
	}{
		{"conv 3x3 same", 224, 3, 1, 1, 224},
		{"pool 2x2", 224, 2, 2, 0, 112},
		{"pool odd input floors", 7, 2, 2, 0, 3},
		{"valid conv", 5, 3, 1, 0, 3},
		{"kernel larger than padded input", 2, 5, 1, 1, 0},
		{"zero stride", 8, 2, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputSize(tt.in, tt.kernel, tt.stride, tt.pad))
		})
	}
}

func TestFormat_PhysicalSize(t *testing.T) {
	act := Shape{2, 3, 4, 4}
	assert.Equal(t, 96, NCHW.PhysicalSize(act))
	assert.Equal(t, 96, NHWC.PhysicalSize(act))
	// 3 channels pad up to one block of 8.
	assert.Equal(t, 2*8*4*4, NChw8c.PhysicalSize(act))

	w := Shape{10, 3, 3, 3}
	assert.Equal(t, 270, OIHW.PhysicalSize(w))
	assert.Equal(t, 16*8*3*3, OIhw8i8o.PhysicalSize(w))

	assert.Equal(t, 64, X.PhysicalSize(Shape{64}))
}

// Every format must map distinct logical indices to distinct offsets that
// fit inside its physical size.
func TestFormat_OffsetIsInjective(t *testing.T) {
	cases := []struct {
		f Format
		s Shape
	}{
		{NCHW, Shape{2, 3, 2, 3}},
		{NHWC, Shape{2, 3, 2, 3}},
		{NChw8c, Shape{2, 11, 2, 3}},
		{OIHW, Shape{5, 3, 3, 3}},
		{OIhw8i8o, Shape{9, 10, 3, 2}},
		{X, Shape{7}},
	}
	for _, c := range cases {
		t.Run(c.f.String(), func(t *testing.T) {
			seen := make(map[int]bool)
			size := c.f.PhysicalSize(c.s)
			forEachIndex(c.s, func(_, i0, i1, i2, i3 int) {
				off := c.f.Offset(c.s, i0, i1, i2, i3)
				require.GreaterOrEqual(t, off, 0)
				require.Less(t, off, size)
				require.False(t, seen[off], "offset %d reused", off)
				seen[off] = true
			})
			assert.Len(t, seen, c.s.NumElements())
		})
	}
}

func TestFormat_BlockedOffsets(t *testing.T) {
	s := Shape{1, 16, 2, 2}
	// Channel 9 lives in block 1, lane 1.
	assert.Equal(t, (((0*2+1)*2+0)*2+0)*8+1, NChw8c.Offset(s, 0, 9, 0, 0))
	assert.Equal(t, 1, NChw8c.Offset(s, 0, 1, 0, 0))
	assert.Equal(t, 8, NChw8c.Offset(s, 0, 0, 0, 1))
}

func TestPackUnpack_Blocked(t *testing.T) {
	desc, err := NewDesc(Shape{2, 3, 2, 2}, Float32, Fixed{Format: NChw8c})
	require.NoError(t, err)
	buf, err := NewBuffer(desc, CPU)
	require.NoError(t, err)

	src := make([]float32, 24)
	for i := range src {
		src[i] = float32(i + 1)
	}
	Pack(buf, src)

	raw := buf.AsFloat32()
	assert.Len(t, raw, 2*8*2*2)
	// n=0, c=1, h=0, w=0 -> logical 4+1 = 5th value (index 4).
	assert.Equal(t, float32(5), raw[1])
	// Padding lanes stay zero.
	assert.Equal(t, float32(0), raw[3])

	assert.Equal(t, src, Unpack(buf))
}
