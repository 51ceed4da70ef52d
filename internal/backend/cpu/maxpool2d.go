package cpu

import (
	"github.com/born-ml/vggplan/internal/engine"
	"github.com/born-ml/vggplan/internal/parallel"
)

type poolPrimitive struct {
	pd  *engine.PrimitiveDesc
	par parallel.Config
}

func (p *poolPrimitive) Kind() engine.Kind { return engine.Pooling }

// Execute performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// For each output position the kernel scans its window, skipping padded
// positions, and stores the maximum in dst and the physical source offset of
// that maximum in the workspace. The workspace is what a backward pass would
// use to route gradients to the winning input position.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (p *poolPrimitive) Execute(args *engine.Args) error {
	if err := checkBound(p.pd, args); err != nil {
		return err
	}
	src := args.Buffer(engine.Src)
	dst := args.Buffer(engine.Dst)
	ws := args.Buffer(engine.Workspace)

	s, ds := src.Shape(), dst.Shape()
	sf, df, wf := src.Format(), dst.Format(), ws.Format()
	H, W := s[2], s[3]
	HOut, WOut := ds[2], ds[3]
	kh, kw := p.pd.Kernel[0], p.pd.Kernel[1]
	sh, sw := p.pd.Stride[0], p.pd.Stride[1]
	ph, pw := p.pd.Padding[0], p.pd.Padding[1]

	inputData := src.AsFloat32()
	outputData := dst.AsFloat32()
	wsData := ws.AsInt32()

	p.par.ForPlanes(s[0], s[1], func(n, c int) {
		for outH := 0; outH < HOut; outH++ {
			hStart := outH*sh - ph
			for outW := 0; outW < WOut; outW++ {
				wStart := outW*sw - pw

				maxIdx := -1
				var maxVal float32
				for i := 0; i < kh; i++ {
					h := hStart + i
					if h < 0 || h >= H {
						continue
					}
					for j := 0; j < kw; j++ {
						w := wStart + j
						if w < 0 || w >= W {
							continue
						}
						off := sf.Offset(s, n, c, h, w)
						if v := inputData[off]; maxIdx < 0 || v > maxVal {
							maxVal, maxIdx = v, off
						}
					}
				}

				outputData[df.Offset(ds, n, c, outH, outW)] = maxVal
				wsData[wf.Offset(ds, n, c, outH, outW)] = int32(maxIdx) //nolint:gosec // ResolvePooling bounds src offsets to int32
			}
		}
	})
	return nil
}
