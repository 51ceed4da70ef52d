package nn

import (
	"math"

	"github.com/born-ml/vggplan/internal/tensor"
)

// Sine fills data with a deterministic pattern: data[i] = sin(i).
//
// Two builds of the same network hold identical parameters on any engine.
func Sine(data []float32) {
	for i := range data {
		data[i] = float32(math.Sin(float64(i)))
	}
}

// Initializer fills a parameter given in canonical order.
type Initializer func(data []float32)

// Zeros leaves every element at zero.
func Zeros(data []float32) {
	clear(data)
}

// initParam creates a plain-layout parameter buffer of shape s and fills it.
//
// Parameters are always created in the caller's layout (oihw weights, x bias);
// engines that prefer something else get a reorder from the negotiator.
func initParam(alloc func(tensor.Desc) (*tensor.Buffer, error), s tensor.Shape, fill Initializer) (*tensor.Buffer, error) {
	d, err := tensor.NewDesc(s, tensor.Float32, tensor.Fixed{Format: paramFormat(len(s))})
	if err != nil {
		return nil, err
	}
	buf, err := alloc(d)
	if err != nil {
		return nil, err
	}
	values := make([]float32, s.NumElements())
	fill(values)
	tensor.Pack(buf, values)
	return buf, nil
}

func paramFormat(rank int) tensor.Format {
	if rank == 1 {
		return tensor.X
	}
	return tensor.OIHW
}
