package cpu

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// MaxPool2D performs 2D max pooling over the last two dimensions.
// Rectangular kernels support pooling a single axis, as EEG nets do when
// downsampling time while keeping the electrode axis intact.
//
// Input:  [N, C, H, W]
// Output: [N, C, (H-KH)/SH+1, (W-KW)/SW+1]
func (c *Backend) MaxPool2D(input *tensor.RawTensor, kernelH, kernelW, strideH, strideW int) *tensor.RawTensor {
	inShape := input.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input, got %v", inShape))
	}

	n, ch, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	hOut := (h-kernelH)/strideH + 1
	wOut := (w-kernelW)/strideW + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: kernel %dx%d too large for input %v", kernelH, kernelW, inShape))
	}

	result, err := tensor.NewRaw(tensor.Shape{n, ch, hOut, wOut}, tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d: failed to create result tensor: %v", err))
	}

	inData := input.AsFloat32()
	outData := result.AsFloat32()

	outIdx := 0
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					maxVal := float32(-3.4e38)
					for kh := 0; kh < kernelH; kh++ {
						for kw := 0; kw < kernelW; kw++ {
							v := inData[((b*ch+cc)*h+oh*strideH+kh)*w+ow*strideW+kw]
							if v > maxVal {
								maxVal = v
							}
						}
					}
					outData[outIdx] = maxVal
					outIdx++
				}
			}
		}
	}
	return result
}

// MaxPool2DBackward routes output gradients to the input positions that held
// the maximum values. maxIndices holds one flat input index per output
// position, computed during the forward pass.
func (c *Backend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	result, err := tensor.NewRaw(input.Shape(), tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d backward: failed to create result tensor: %v", err))
	}

	gData := grad.AsFloat32()
	outData := result.AsFloat32()
	if len(gData) != len(maxIndices) {
		panic(fmt.Sprintf("maxpool2d backward: %d gradients for %d max indices", len(gData), len(maxIndices)))
	}

	for i, srcIdx := range maxIndices {
		outData[srcIdx] += gData[i]
	}
	return result
}
