package cpu

import (
	"fmt"
	"math"

	"github.com/bcisec/extractor/internal/tensor"
)

// Softmax applies softmax along the given dimension, which must be the last.
// Uses max-shifting for numerical stability.
func (c *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim != len(shape)-1 {
		panic(fmt.Sprintf("softmax: only the last dimension is supported, got dim %d for shape %v", dim, shape))
	}

	result, err := tensor.NewRaw(shape, tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	rowLen := shape[len(shape)-1]
	rows := x.NumElements() / rowLen
	inData := x.AsFloat32()
	outData := result.AsFloat32()

	for r := 0; r < rows; r++ {
		in := inData[r*rowLen : (r+1)*rowLen]
		out := outData[r*rowLen : (r+1)*rowLen]

		maxVal := in[0]
		for _, v := range in[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for i, v := range in {
			e := float32(math.Exp(float64(v - maxVal)))
			out[i] = e
			sum += e
		}
		for i := range out {
			out[i] /= sum
		}
	}
	return result
}
