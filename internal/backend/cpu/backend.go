// Package cpu implements the pure-Go CPU compute backend.
package cpu

import (
	"fmt"

	"github.com/bcisec/extractor/internal/parallel"
	"github.com/bcisec/extractor/internal/tensor"
)

// Backend implements tensor operations on the CPU.
type Backend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend with convolution loops spread across all
// CPUs.
func New() *Backend {
	return &Backend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (c *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *Backend) Device() tensor.Device {
	return c.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (c *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (c *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (c *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (c *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("div", a, b, func(x, y float32) float32 { return x / y })
}

// binaryOp applies fn element-wise, broadcasting b against a if needed.
func (c *Backend) binaryOp(name string, a, b *tensor.RawTensor, fn func(x, y float32) float32) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 tensors supported, got %s and %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	aData := a.AsFloat32()
	bData := b.AsFloat32()
	outData := result.AsFloat32()

	if !needsBroadcast {
		// Fast path: identical shapes, flat loop.
		for i := range outData {
			outData[i] = fn(aData[i], bData[i])
		}
		return result
	}

	// Slow path: walk the output index space and map each position back to
	// the (possibly size-1) source dimensions.
	aIdx := newBroadcastIndexer(a.Shape(), outShape)
	bIdx := newBroadcastIndexer(b.Shape(), outShape)
	for i := range outData {
		outData[i] = fn(aData[aIdx.at(i)], bData[bIdx.at(i)])
	}
	return result
}

// broadcastIndexer maps flat output indices to flat source indices for a
// source shape broadcast to an output shape.
type broadcastIndexer struct {
	outStrides []int
	srcStrides []int // 0 stride where the source dimension is broadcast
}

func newBroadcastIndexer(src, out tensor.Shape) *broadcastIndexer {
	outStrides := out.ComputeStrides()
	srcStrides := make([]int, len(out))
	realStrides := src.ComputeStrides()

	offset := len(out) - len(src)
	for i := range out {
		si := i - offset
		if si < 0 || src[si] == 1 {
			srcStrides[i] = 0
		} else {
			srcStrides[i] = realStrides[si]
		}
	}
	return &broadcastIndexer{outStrides: outStrides, srcStrides: srcStrides}
}

func (bi *broadcastIndexer) at(flatOut int) int {
	flatSrc := 0
	rem := flatOut
	for d := range bi.outStrides {
		coord := rem / bi.outStrides[d]
		rem %= bi.outStrides[d]
		flatSrc += coord * bi.srcStrides[d]
	}
	return flatSrc
}
