package nn

import (
	"math"

	"github.com/bcisec/extractor/internal/tensor"
)

// Xavier initializes a weight tensor with Glorot uniform values:
// U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
//
// Draws come from the tensor package's seedable RNG so runs are reproducible
// for a fixed seed.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))

	t := tensor.Rand(shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = (data[i]*2.0 - 1.0) * bound
	}
	return t
}

// Zeros creates a zero-filled float32 tensor, commonly used for biases.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
