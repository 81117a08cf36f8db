package nn

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// MaxPool2D downsamples the last two input dimensions by taking the maximum
// over each kernel window. Rectangular kernels let EEG nets pool the time
// axis while keeping the electrode axis intact.
type MaxPool2D[B tensor.Backend] struct {
	kernelH, kernelW int
	strideH, strideW int
	backend          B
}

// NewMaxPool2D creates a max pooling layer with a kernelH x kernelW window
// moving strideH x strideW per step.
func NewMaxPool2D[B tensor.Backend](kernelH, kernelW, strideH, strideW int, backend B) *MaxPool2D[B] {
	if kernelH <= 0 || kernelW <= 0 || strideH <= 0 || strideW <= 0 {
		panic(fmt.Sprintf("nn: invalid maxpool window %dx%d stride %dx%d", kernelH, kernelW, strideH, strideW))
	}
	return &MaxPool2D[B]{
		kernelH: kernelH, kernelW: kernelW,
		strideH: strideH, strideW: strideW,
		backend: backend,
	}
}

// Forward applies max pooling to a [batch, channels, H, W] input.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw := m.backend.MaxPool2D(input.Raw(), m.kernelH, m.kernelW, m.strideH, m.strideW)
	return tensor.New[float32, B](raw, m.backend)
}

// Parameters returns an empty slice.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a description of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel=%dx%d, stride=%dx%d)", m.kernelH, m.kernelW, m.strideH, m.strideW)
}
