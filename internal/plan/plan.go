// Package plan assembles an ordered execution plan of engine primitives.
//
// A Plan keeps its nodes and their bound operands in lockstep. Nodes are
// appended in topological order: every buffer a node reads must have been
// imported as external input or written by an earlier node. Layout
// mismatches between producers and consumers are repaired with Negotiate,
// which splices Reorder nodes into the plan.
package plan

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Node is one operator of a plan.
type Node struct {
	Label     string
	Kind      engine.Kind
	Desc      *engine.PrimitiveDesc
	Primitive engine.Primitive
}

// Plan is an append-only, topologically ordered list of nodes.
type Plan struct {
	eng    engine.Engine
	logger *slog.Logger

	nodes []Node
	args  []*engine.Args

	external  map[uint64]struct{}
	available map[uint64]struct{}
	memo      map[memoKey]*tensor.Buffer
	reorders  int
}

// Option configures a Plan.
type Option func(*Plan)

// WithLogger sets the logger for reorder insertions.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plan) {
		p.logger = l
	}
}

// New creates an empty plan whose buffers and primitives come from eng.
func New(eng engine.Engine, opts ...Option) *Plan {
	p := &Plan{
		eng:       eng,
		logger:    slog.Default(),
		external:  make(map[uint64]struct{}),
		available: make(map[uint64]struct{}),
		memo:      make(map[memoKey]*tensor.Buffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the engine the plan was built for.
func (p *Plan) Engine() engine.Engine {
	return p.eng
}

// Import registers buf as external input: data supplied by the caller
// before execution, such as the input batch or parameters.
func (p *Plan) Import(buf *tensor.Buffer) error {
	if buf == nil {
		return fmt.Errorf("import: nil buffer")
	}
	if buf.Device() != p.eng.Device() {
		return fmt.Errorf("import: buffer %s lives on %s, engine %s runs on %s",
			buf, buf.Device(), p.eng.Name(), p.eng.Device())
	}
	p.external[buf.ID()] = struct{}{}
	p.available[buf.ID()] = struct{}{}
	return nil
}

// Append validates a resolved operator against its bindings, constructs its
// primitive and adds it to the end of the plan.
//
// Every role the kind requires must be bound, each bound buffer must carry
// the descriptor the engine resolved for its role, and every input buffer
// must already be available. The plan is unchanged when Append fails.
func (p *Plan) Append(label string, pd *engine.PrimitiveDesc, args *engine.Args) error {
	if missing := args.Missing(pd.Kind); len(missing) > 0 {
		return fmt.Errorf("%s: %s node: %w: %v", label, pd.Kind, engine.ErrUnboundRole, missing)
	}
	var err error
	args.Each(func(r engine.Role, b *tensor.Buffer) {
		if err != nil {
			return
		}
		if want, ok := pd.Desc(r); ok && !b.Desc().Equal(want) {
			err = fmt.Errorf("%s: %s bound to %s, engine resolved %s: %w", label, r, b.Desc(), want, engine.ErrShapeMismatch)
			return
		}
		if _, ok := p.available[b.ID()]; r.IsInput() && !ok {
			err = fmt.Errorf("%s: %s buffer #%d: %w", label, r, b.ID(), engine.ErrNotTopological)
		}
	})
	if err != nil {
		return err
	}

	prim, err := p.eng.Primitive(pd)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	bound := args.Clone()
	p.nodes = append(p.nodes, Node{Label: label, Kind: pd.Kind, Desc: pd, Primitive: prim})
	p.args = append(p.args, bound)
	bound.Each(func(r engine.Role, b *tensor.Buffer) {
		if !r.IsInput() {
			p.available[b.ID()] = struct{}{}
		}
	})
	return nil
}

// Len returns the number of nodes.
func (p *Plan) Len() int {
	return len(p.nodes)
}

// Nodes returns the nodes in execution order.
func (p *Plan) Nodes() []Node {
	out := make([]Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Args returns the bindings of node i.
func (p *Plan) Args(i int) *engine.Args {
	return p.args[i].Clone()
}

// Reorders returns the number of Reorder nodes inserted by Negotiate.
func (p *Plan) Reorders() int {
	return p.reorders
}

// Validate re-checks the whole plan: nodes and bindings have equal length,
// every node binds its required roles, and every input is external or was
// written by an earlier node.
func (p *Plan) Validate() error {
	if len(p.nodes) != len(p.args) {
		return fmt.Errorf("plan: %d nodes but %d argument sets", len(p.nodes), len(p.args))
	}
	written := make(map[uint64]struct{}, len(p.available))
	for id := range p.external {
		written[id] = struct{}{}
	}
	for i, n := range p.nodes {
		args := p.args[i]
		if missing := args.Missing(n.Kind); len(missing) > 0 {
			return fmt.Errorf("plan: node %d (%s): %w: %v", i, n.Label, engine.ErrUnboundRole, missing)
		}
		var err error
		args.Each(func(r engine.Role, b *tensor.Buffer) {
			if _, ok := written[b.ID()]; err == nil && r.IsInput() && !ok {
				err = fmt.Errorf("plan: node %d (%s) reads %s #%d: %w", i, n.Label, r, b.ID(), engine.ErrNotTopological)
			}
		})
		if err != nil {
			return err
		}
		args.Each(func(r engine.Role, b *tensor.Buffer) {
			if !r.IsInput() {
				written[b.ID()] = struct{}{}
			}
		})
	}
	return nil
}

// Bytes returns the storage size of every distinct buffer the plan touches.
func (p *Plan) Bytes() int64 {
	seen := make(map[uint64]struct{})
	var total int64
	for _, args := range p.args {
		args.Each(func(_ engine.Role, b *tensor.Buffer) {
			if _, ok := seen[b.ID()]; ok {
				return
			}
			seen[b.ID()] = struct{}{}
			total += int64(b.ByteSize())
		})
	}
	return total
}

// Row is one line of a plan listing.
type Row struct {
	Index int
	Label string
	Kind  string
	Op    string
	Args  string
	Dst   string
}

// Summary lists the plan's nodes for display.
func (p *Plan) Summary() []Row {
	rows := make([]Row, len(p.nodes))
	for i, n := range p.nodes {
		rows[i] = Row{
			Index: i,
			Label: n.Label,
			Kind:  n.Kind.String(),
			Op:    n.Desc.String(),
			Args:  p.args[i].String(),
			Dst:   p.args[i].Buffer(engine.Dst).Desc().String(),
		}
	}
	return rows
}
