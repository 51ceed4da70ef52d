package engine

import "fmt"

// Kind identifies an operator kind.
type Kind int

// Operator kinds.
const (
	Convolution Kind = iota
	Eltwise
	Pooling
	Reorder
)

func (k Kind) String() string {
	switch k {
	case Convolution:
		return "convolution"
	case Eltwise:
		return "eltwise"
	case Pooling:
		return "pooling"
	case Reorder:
		return "reorder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Required returns the roles a node of this kind must bind.
func (k Kind) Required() []Role {
	switch k {
	case Convolution:
		return []Role{Src, Weights, Bias, Dst}
	case Eltwise, Reorder:
		return []Role{Src, Dst}
	case Pooling:
		return []Role{Src, Dst, Workspace}
	default:
		return nil
	}
}

// Role is the name an operator gives to one of its operands.
type Role int

// Operand roles.
const (
	Src Role = iota
	Weights
	Bias
	Dst
	Workspace
)

var roleNames = map[Role]string{
	Src:       "src",
	Weights:   "weights",
	Bias:      "bias",
	Dst:       "dst",
	Workspace: "workspace",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsInput reports whether the operator reads the operand bound to r.
func (r Role) IsInput() bool {
	return r == Src || r == Weights || r == Bias
}
