package cpu

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (c *Backend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return c.scalarOp("mulscalar", x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds a scalar to every element.
func (c *Backend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return c.scalarOp("addscalar", x, func(v float32) float32 { return v + scalar })
}

func (c *Backend) scalarOp(name string, x *tensor.RawTensor, fn func(float32) float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 tensors supported, got %s", name, x.DType()))
	}

	result, err := tensor.NewRaw(x.Shape(), tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	xData := x.AsFloat32()
	outData := result.AsFloat32()
	for i := range outData {
		outData[i] = fn(xData[i])
	}
	return result
}
