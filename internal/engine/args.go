package engine

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/vggplan/internal/tensor"
)

// Args binds operand roles to buffers for one node.
//
// Bindings keep insertion order so plan listings and logs are stable.
// A role is bound at most once.
type Args struct {
	m *orderedmap.OrderedMap[Role, *tensor.Buffer]
}

// NewArgs returns an empty binding set.
func NewArgs() *Args {
	return &Args{m: orderedmap.New[Role, *tensor.Buffer]()}
}

// Set binds role r to b and returns the receiver for chaining.
// Panics if r is already bound or b is nil.
func (a *Args) Set(r Role, b *tensor.Buffer) *Args {
	if b == nil {
		panic(fmt.Sprintf("args: nil buffer for role %s", r))
	}
	if _, ok := a.m.Get(r); ok {
		panic(fmt.Sprintf("args: role %s already bound", r))
	}
	a.m.Set(r, b)
	return a
}

// Get returns the buffer bound to r.
func (a *Args) Get(r Role) (*tensor.Buffer, bool) {
	return a.m.Get(r)
}

// Buffer returns the buffer bound to r, panicking if none is.
// Used by kernels after the plan has checked required roles.
func (a *Args) Buffer(r Role) *tensor.Buffer {
	b, ok := a.m.Get(r)
	if !ok {
		panic(fmt.Sprintf("args: role %s not bound", r))
	}
	return b
}

// Len returns the number of bound roles.
func (a *Args) Len() int {
	return a.m.Len()
}

// Each calls fn for every binding in insertion order.
func (a *Args) Each(fn func(Role, *tensor.Buffer)) {
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Missing returns the roles kind k requires that are not bound.
func (a *Args) Missing(k Kind) []Role {
	var missing []Role
	for _, r := range k.Required() {
		if _, ok := a.m.Get(r); !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Clone returns an independent copy of the bindings.
func (a *Args) Clone() *Args {
	c := NewArgs()
	a.Each(func(r Role, b *tensor.Buffer) {
		c.m.Set(r, b)
	})
	return c
}

// String formats the bindings as "src=#1 dst=#2".
func (a *Args) String() string {
	parts := make([]string, 0, a.Len())
	a.Each(func(r Role, b *tensor.Buffer) {
		parts = append(parts, fmt.Sprintf("%s=#%d", r, b.ID()))
	})
	return strings.Join(parts, " ")
}
