package cpu

import (
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/parallel"
)

type reorderPrimitive struct {
	pd  *engine.PrimitiveDesc
	par parallel.Config
}

func (p *reorderPrimitive) Kind() engine.Kind { return engine.Reorder }

// Execute copies every logical element of src into its position in dst's
// format. Block padding in dst is left as zero.
func (p *reorderPrimitive) Execute(args *engine.Args) error {
	if err := checkBound(p.pd, args); err != nil {
		return err
	}
	src := args.Buffer(engine.Src)
	dst := args.Buffer(engine.Dst)
	s := src.Shape()
	sf, df := src.Format(), dst.Format()
	in := src.AsFloat32()
	out := dst.AsFloat32()

	if len(s) == 1 {
		for i := 0; i < s[0]; i++ {
			out[df.Offset(s, i, 0, 0, 0)] = in[sf.Offset(s, i, 0, 0, 0)]
		}
		return nil
	}

	p.par.ForPlanes(s[0], s[1], func(i0, i1 int) {
		for i2 := 0; i2 < s[2]; i2++ {
			for i3 := 0; i3 < s[3]; i3++ {
				out[df.Offset(s, i0, i1, i2, i3)] = in[sf.Offset(s, i0, i1, i2, i3)]
			}
		}
	})
	return nil
}
