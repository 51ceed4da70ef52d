package tensor

import "fmt"

// Desc describes a tensor: logical shape, element type and memory layout.
//
// A Desc is a value. Its shape cannot be changed after construction, and its
// layout moves from EngineChoice to a Fixed format at most once via Resolve.
type Desc struct {
	shape  Shape
	dtype  DataType
	layout Layout
}

// NewDesc creates a descriptor, validating the shape against a fixed layout's rank.
func NewDesc(shape Shape, dtype DataType, layout Layout) (Desc, error) {
	if err := shape.Validate(); err != nil {
		return Desc{}, fmt.Errorf("invalid shape: %w", err)
	}
	if layout == nil {
		layout = EngineChoice{}
	}
	if f, ok := layout.(Fixed); ok && f.Format.Rank() != len(shape) {
		return Desc{}, fmt.Errorf("format %s needs rank %d, shape %v has rank %d",
			f.Format, f.Format.Rank(), shape, len(shape))
	}
	return Desc{shape: shape.Clone(), dtype: dtype, layout: layout}, nil
}

// Shape returns a copy of the descriptor's shape.
func (d Desc) Shape() Shape {
	return d.shape.Clone()
}

// Dim returns dimension i of the shape.
func (d Desc) Dim(i int) int {
	return d.shape[i]
}

// Rank returns the number of dimensions.
func (d Desc) Rank() int {
	return len(d.shape)
}

// DType returns the element type.
func (d Desc) DType() DataType {
	return d.dtype
}

// Layout returns the layout tag.
func (d Desc) Layout() Layout {
	return d.layout
}

// Format returns the concrete format, or false if the layout is still EngineChoice.
func (d Desc) Format() (Format, bool) {
	switch l := d.layout.(type) {
	case Fixed:
		return l.Format, true
	case EngineChoice, nil:
		return 0, false
	default:
		panic(fmt.Sprintf("desc: unknown layout %T", l))
	}
}

// Concrete reports whether the layout has been fixed.
func (d Desc) Concrete() bool {
	_, ok := d.Format()
	return ok
}

// Resolve returns a copy of d with its EngineChoice layout replaced by f.
// Resolving an already concrete descriptor is an error.
func (d Desc) Resolve(f Format) (Desc, error) {
	if cur, ok := d.Format(); ok {
		return Desc{}, fmt.Errorf("desc %v already resolved to %s", d.shape, cur)
	}
	if f.Rank() != len(d.shape) {
		return Desc{}, fmt.Errorf("format %s needs rank %d, shape %v has rank %d",
			f, f.Rank(), d.shape, len(d.shape))
	}
	return Desc{shape: d.shape.Clone(), dtype: d.dtype, layout: Fixed{Format: f}}, nil
}

// Equal reports whether both descriptors have the same shape, element type
// and the same concrete format. EngineChoice never equals anything.
func (d Desc) Equal(o Desc) bool {
	f1, ok1 := d.Format()
	f2, ok2 := o.Format()
	if !ok1 || !ok2 {
		return false
	}
	return f1 == f2 && d.dtype == o.dtype && d.shape.Equal(o.shape)
}

// PhysicalSize returns the number of stored elements, including block padding.
// It returns 0 for a descriptor without a concrete format.
func (d Desc) PhysicalSize() int {
	f, ok := d.Format()
	if !ok {
		return 0
	}
	return f.PhysicalSize(d.shape)
}

// ByteSize returns the storage size in bytes.
func (d Desc) ByteSize() int {
	return d.PhysicalSize() * d.dtype.Size()
}

// String formats the descriptor as "16x3x224x224:f32:nchw".
func (d Desc) String() string {
	layout := "any"
	if d.layout != nil {
		layout = d.layout.String()
	}
	return fmt.Sprintf("%s:%s:%s", d.shape, d.dtype, layout)
}
