package tensor

import "fmt"

// Unpack copies a float32 buffer into a new slice in canonical (plain
// row-major) order. Block padding is dropped.
func Unpack(b *Buffer) []float32 {
	out := make([]float32, b.desc.shape.NumElements())
	UnpackInto(out, b)
	return out
}

// UnpackInto is Unpack into a caller-provided slice of NumElements length.
func UnpackInto(dst []float32, b *Buffer) {
	src := b.AsFloat32()
	f := b.Format()
	s := b.desc.shape
	if len(dst) != s.NumElements() {
		panic(fmt.Sprintf("unpack: destination has %d elements, shape %v needs %d", len(dst), s, s.NumElements()))
	}
	if !f.Blocked() && f != NHWC {
		copy(dst, src)
		return
	}
	forEachIndex(s, func(lin, i0, i1, i2, i3 int) {
		dst[lin] = src[f.Offset(s, i0, i1, i2, i3)]
	})
}

// Pack copies canonical-order values into b using b's format. Block padding
// is left untouched (zero after materialization).
func Pack(b *Buffer, src []float32) {
	dst := b.AsFloat32()
	f := b.Format()
	s := b.desc.shape
	if len(src) != s.NumElements() {
		panic(fmt.Sprintf("pack: source has %d elements, shape %v needs %d", len(src), s, s.NumElements()))
	}
	if !f.Blocked() && f != NHWC {
		copy(dst, src)
		return
	}
	forEachIndex(s, func(lin, i0, i1, i2, i3 int) {
		dst[f.Offset(s, i0, i1, i2, i3)] = src[lin]
	})
}

// forEachIndex walks a rank-1 or rank-4 shape in row-major order.
func forEachIndex(s Shape, fn func(lin, i0, i1, i2, i3 int)) {
	if len(s) == 1 {
		for i := 0; i < s[0]; i++ {
			fn(i, i, 0, 0, 0)
		}
		return
	}
	lin := 0
	for i0 := 0; i0 < s[0]; i0++ {
		for i1 := 0; i1 < s[1]; i1++ {
			for i2 := 0; i2 < s[2]; i2++ {
				for i3 := 0; i3 < s[3]; i3++ {
					fn(lin, i0, i1, i2, i3)
					lin++
				}
			}
		}
	}
}
