// Package tensor provides tensor descriptors, memory layouts and operand buffers
// for the vggplan graph builder.
package tensor

// DataType represents the element type of a tensor.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Uint8
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "s32"
	case Uint8:
		return "u8"
	default:
		return "unknown"
	}
}
