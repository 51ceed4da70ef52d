package cpu

import (
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/parallel"
)

type eltwisePrimitive struct {
	pd  *engine.PrimitiveDesc
	par parallel.Config
}

func (p *eltwisePrimitive) Kind() engine.Kind { return engine.Eltwise }

// Execute applies ReLU elementwise: f(x) = max(0, x), or alpha*x for x < 0.
//
// Source and destination share one layout, so the kernel walks physical
// storage directly. Block padding lanes hold zero and stay zero.
func (p *eltwisePrimitive) Execute(args *engine.Args) error {
	if err := checkBound(p.pd, args); err != nil {
		return err
	}
	src := args.Buffer(engine.Src).AsFloat32()
	dst := args.Buffer(engine.Dst).AsFloat32()
	alpha := p.pd.Alpha

	const chunk = 4096
	p.par.For((len(src)+chunk-1)/chunk, func(k int) {
		lo := k * chunk
		hi := min(lo+chunk, len(src))
		for i := lo; i < hi; i++ {
			x := src[i]
			if x < 0 {
				if alpha == 0 {
					x = 0
				} else {
					x *= alpha
				}
			}
			dst[i] = x
		}
	})
	return nil
}
