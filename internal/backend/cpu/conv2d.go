package cpu

import (
	"fmt"

	"github.com/bcisec/extractor/internal/parallel"
	"github.com/bcisec/extractor/internal/tensor"
)

// conv2dDims validates shapes and returns the convolution geometry.
func conv2dDims(input, kernel *tensor.RawTensor, stride, padding int) (n, cin, h, w, cout, kh, kw, hOut, wOut int) {
	inShape := input.Shape()
	kShape := kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input and kernel, got %v and %v", inShape, kShape))
	}
	if inShape[1] != kShape[1] {
		panic(fmt.Sprintf("conv2d: channel mismatch: input %v, kernel %v", inShape, kShape))
	}

	n, cin, h, w = inShape[0], inShape[1], inShape[2], inShape[3]
	cout, kh, kw = kShape[0], kShape[2], kShape[3]
	hOut = (h+2*padding-kh)/stride + 1
	wOut = (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %v too large for input %v with padding %d", kShape, inShape, padding))
	}
	return
}

// Conv2D performs 2D cross-correlation.
//
// Input:  [N, C_in, H, W]
// Kernel: [C_out, C_in, K_h, K_w]
// Output: [N, C_out, H_out, W_out]
func (c *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cin, h, w, cout, kh, kw, hOut, wOut := conv2dDims(input, kernel, stride, padding)

	result, err := tensor.NewRaw(tensor.Shape{n, cout, hOut, wOut}, tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create result tensor: %v", err))
	}

	inData := input.AsFloat32()
	kData := kernel.AsFloat32()
	outData := result.AsFloat32()

	// Each (b, co) pair owns a disjoint output slice, so the outer two
	// loops parallelize safely.
	parallel.ForBatch(n, cout, func(b, co int) {
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				var sum float32
				for ci := 0; ci < cin; ci++ {
					for y := 0; y < kh; y++ {
						ih := oh*stride + y - padding
						if ih < 0 || ih >= h {
							continue
						}
						for x := 0; x < kw; x++ {
							iw := ow*stride + x - padding
							if iw < 0 || iw >= w {
								continue
							}
							sum += inData[((b*cin+ci)*h+ih)*w+iw] * kData[((co*cin+ci)*kh+y)*kw+x]
						}
					}
				}
				outData[((b*cout+co)*hOut+oh)*wOut+ow] = sum
			}
		}
	}, c.parallel)
	return result
}

// Conv2DInputBackward computes the gradient of Conv2D with respect to its input.
func (c *Backend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cin, h, w, cout, kh, kw, hOut, wOut := conv2dDims(input, kernel, stride, padding)

	result, err := tensor.NewRaw(input.Shape(), tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d input backward: failed to create result tensor: %v", err))
	}

	kData := kernel.AsFloat32()
	gData := grad.AsFloat32()
	outData := result.AsFloat32()

	// Trials accumulate only into their own input slice, so only the batch
	// loop parallelizes; the channel loops below share outData per trial.
	perTrial := c.parallel
	perTrial.MinChunkSize = 1
	parallel.For(n, func(b int) {
		for co := 0; co < cout; co++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					g := gData[((b*cout+co)*hOut+oh)*wOut+ow]
					if g == 0 {
						continue
					}
					for ci := 0; ci < cin; ci++ {
						for y := 0; y < kh; y++ {
							ih := oh*stride + y - padding
							if ih < 0 || ih >= h {
								continue
							}
							for x := 0; x < kw; x++ {
								iw := ow*stride + x - padding
								if iw < 0 || iw >= w {
									continue
								}
								outData[((b*cin+ci)*h+ih)*w+iw] += g * kData[((co*cin+ci)*kh+y)*kw+x]
							}
						}
					}
				}
			}
		}
	}, perTrial)
	return result
}

// Conv2DKernelBackward computes the gradient of Conv2D with respect to its kernel.
func (c *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cin, h, w, cout, kh, kw, hOut, wOut := conv2dDims(input, kernel, stride, padding)

	result, err := tensor.NewRaw(kernel.Shape(), tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d kernel backward: failed to create result tensor: %v", err))
	}

	inData := input.AsFloat32()
	gData := grad.AsFloat32()
	outData := result.AsFloat32()

	for b := 0; b < n; b++ {
		for co := 0; co < cout; co++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					g := gData[((b*cout+co)*hOut+oh)*wOut+ow]
					if g == 0 {
						continue
					}
					for ci := 0; ci < cin; ci++ {
						for y := 0; y < kh; y++ {
							ih := oh*stride + y - padding
							if ih < 0 || ih >= h {
								continue
							}
							for x := 0; x < kw; x++ {
								iw := ow*stride + x - padding
								if iw < 0 || iw >= w {
									continue
								}
								outData[((co*cin+ci)*kh+y)*kw+x] += g * inData[((b*cin+ci)*h+ih)*w+iw]
							}
						}
					}
				}
			}
		}
	}
	return result
}
