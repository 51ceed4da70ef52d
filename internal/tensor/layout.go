package tensor

import "fmt"

// BlockSize is the channel block width of the blocked formats.
const BlockSize = 8

// Format is a concrete memory arrangement for a tensor of a given rank.
//
// Plain formats (NCHW, NHWC, OIHW, X) store exactly NumElements values.
// Blocked formats pad their blocked channel dimensions up to a multiple of
// BlockSize, so their physical size can exceed the logical element count.
type Format int

// Supported formats.
const (
	NCHW     Format = iota // activations, channel planes
	NHWC                   // activations, channels innermost
	OIHW                   // convolution weights, plain
	X                      // 1-D vectors (bias)
	NChw8c                 // activations, 8-channel blocks innermost
	OIhw8i8o               // convolution weights, 8x8 in/out channel blocks
)

// String returns the conventional tag of the format.
func (f Format) String() string {
	switch f {
	case NCHW:
		return "nchw"
	case NHWC:
		return "nhwc"
	case OIHW:
		return "oihw"
	case X:
		return "x"
	case NChw8c:
		return "nChw8c"
	case OIhw8i8o:
		return "OIhw8i8o"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Rank returns the number of logical dimensions the format describes.
func (f Format) Rank() int {
	if f == X {
		return 1
	}
	return 4
}

// Blocked reports whether the format pads channels into blocks.
func (f Format) Blocked() bool {
	return f == NChw8c || f == OIhw8i8o
}

// PhysicalSize returns the number of stored elements for shape s.
func (f Format) PhysicalSize(s Shape) int {
	switch f {
	case NChw8c:
		return s[0] * roundUp(s[1]) * s[2] * s[3]
	case OIhw8i8o:
		return roundUp(s[0]) * roundUp(s[1]) * s[2] * s[3]
	default:
		return s.NumElements()
	}
}

// Offset maps a logical index to its physical element offset in a buffer of
// shape s. Rank-1 formats only read i0.
//
//nolint:gocritic // index names follow the logical dimension order
func (f Format) Offset(s Shape, i0, i1, i2, i3 int) int {
	switch f {
	case NCHW, OIHW:
		return ((i0*s[1]+i1)*s[2]+i2)*s[3] + i3
	case NHWC:
		return ((i0*s[2]+i2)*s[3]+i3)*s[1] + i1
	case X:
		return i0
	case NChw8c:
		cb := roundUp(s[1]) / BlockSize
		return ((((i0*cb+i1/BlockSize)*s[2]+i2)*s[3] + i3) * BlockSize) + i1%BlockSize
	case OIhw8i8o:
		ib := roundUp(s[1]) / BlockSize
		blk := (((i0/BlockSize)*ib+i1/BlockSize)*s[2]+i2)*s[3] + i3
		return blk*BlockSize*BlockSize + (i1%BlockSize)*BlockSize + i0%BlockSize
	default:
		panic(fmt.Sprintf("offset: unknown format %d", int(f)))
	}
}

func roundUp(c int) int {
	return (c + BlockSize - 1) / BlockSize * BlockSize
}

// Layout is either a concrete Fixed format or EngineChoice, meaning the
// engine picks the format when it resolves the owning operator.
type Layout interface {
	isLayout()
	String() string
}

// Fixed is a concrete, caller- or engine-chosen memory format.
type Fixed struct {
	Format Format
}

func (Fixed) isLayout() {}

func (l Fixed) String() string { return l.Format.String() }

// EngineChoice defers the format decision to the engine.
type EngineChoice struct{}

func (EngineChoice) isLayout() {}

func (EngineChoice) String() string { return "any" }
