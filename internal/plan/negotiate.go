package plan

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/tensor"
)

// Decision is the negotiator's verdict for one operand.
type Decision int

const (
	// Bind uses the existing buffer as is.
	Bind Decision = iota
	// Reorder converts the existing buffer into the wanted layout first.
	Reorder
)

func (d Decision) String() string {
	switch d {
	case Bind:
		return "bind"
	case Reorder:
		return "reorder"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Decide compares the layout a consumer wants with the one an existing buffer
// has. An EngineChoice want is a preference, so it binds. A concrete want
// binds only when the descriptors are equal.
//
// Shapes and element types must match: a reorder converts layouts, never data.
func Decide(want, have tensor.Desc) (Decision, error) {
	if !have.Concrete() {
		return Bind, fmt.Errorf("negotiate: existing buffer %s has no concrete layout: %w", have, engine.ErrLayoutResolution)
	}
	if !want.Shape().Equal(have.Shape()) || want.DType() != have.DType() {
		return Bind, fmt.Errorf("negotiate: want %s, have %s: %w", want, have, engine.ErrShapeMismatch)
	}
	if !want.Concrete() || want.Equal(have) {
		return Bind, nil
	}
	return Reorder, nil
}

type memoKey struct {
	src  uint64
	want string
}

// Negotiate returns a buffer holding have's data in the layout want.
//
// When the layouts already agree have is returned unchanged. Otherwise a
// buffer for want is allocated and a Reorder node copying have into it is
// appended. Conversions are memoised per (source buffer, target descriptor),
// so asking twice for the same conversion yields the same buffer and one node.
func (p *Plan) Negotiate(label string, want tensor.Desc, have *tensor.Buffer) (*tensor.Buffer, error) {
	d, err := Decide(want, have.Desc())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	if d == Bind {
		return have, nil
	}

	key := memoKey{src: have.ID(), want: want.String()}
	if buf, ok := p.memo[key]; ok {
		return buf, nil
	}

	pd, err := p.eng.ResolveReorder(have.Desc(), want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	dst, err := p.eng.Alloc(want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	args := engine.NewArgs().Set(engine.Src, have).Set(engine.Dst, dst)
	if err := p.Append(label, pd, args); err != nil {
		return nil, err
	}

	p.memo[key] = dst
	p.reorders++
	p.logger.Debug("reorder inserted",
		slog.String("node", label),
		slog.String("from", have.Desc().Layout().String()),
		slog.String("to", want.Layout().String()),
		slog.String("shape", want.Shape().String()))
	return dst, nil
}
