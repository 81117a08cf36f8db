package models

import (
	"fmt"

	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// ShallowNet is a two-convolution EEG classifier in the ShallowConvNet
// style: one temporal filter bank, one spatial filter across electrodes,
// then an aggressive time pooling feeding the linear read-out.
type ShallowNet[B tensor.Backend] struct {
	config Config

	convTime    *nn.Conv2D[B] // 1 -> 40, kernel 1x13
	convSpatial *nn.Conv2D[B] // 40 -> 40, kernel channels x 1
	elu         *nn.ELU[B]
	pool        *nn.MaxPool2D[B] // 1x35 window, 1x7 stride

	fc *nn.Linear[B]

	features int
	backend  B
}

// NewShallowNet builds a ShallowNet for the given input geometry.
// Panics if the trial is too short for the pooling window.
func NewShallowNet[B tensor.Backend](config Config, backend B) *ShallowNet[B] {
	if err := config.validate(); err != nil {
		panic(err)
	}

	const (
		temporalKernel = 13
		poolKernel     = 35
		poolStride     = 7
		filters        = 40
	)

	t := convOut(config.Samples, temporalKernel)
	t = poolOut(t, poolKernel, poolStride)
	if t <= 0 {
		panic(fmt.Sprintf("models: %d samples too short for ShallowNet", config.Samples))
	}
	features := filters * t

	return &ShallowNet[B]{
		config:      config,
		convTime:    nn.NewConv2D(1, filters, 1, temporalKernel, 1, 0, backend),
		convSpatial: nn.NewConv2D(filters, filters, config.Channels, 1, 1, 0, backend),
		elu:         nn.NewELU(backend),
		pool:        nn.NewMaxPool2D(1, poolKernel, 1, poolStride, backend),
		fc:          nn.NewLinear(features, config.NumClasses, backend),
		features:    features,
		backend:     backend,
	}
}

// Forward maps a [batch, 1, channels, samples] trial batch to logits.
func (m *ShallowNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := m.convTime.Forward(input)
	x = m.convSpatial.Forward(x)
	x = m.elu.Forward(x)
	x = m.pool.Forward(x)

	batch := x.Shape()[0]
	return m.fc.Forward(x.Reshape(batch, m.features))
}

// Parameters returns all trainable parameters.
func (m *ShallowNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, m.convTime.Parameters()...)
	params = append(params, m.convSpatial.Parameters()...)
	params = append(params, m.fc.Parameters()...)
	return params
}

// StateDict returns a flat snapshot of all parameters.
func (m *ShallowNet[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(out, "conv_time", m.convTime.StateDict())
	nn.MergeStateDict(out, "conv_spatial", m.convSpatial.StateDict())
	nn.MergeStateDict(out, "fc", m.fc.StateDict())
	return out
}

// LoadStateDict restores all parameters from a flat snapshot.
func (m *ShallowNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := m.convTime.LoadStateDict(nn.ExtractStateDict(stateDict, "conv_time")); err != nil {
		return fmt.Errorf("models: shallownet conv_time: %w", err)
	}
	if err := m.convSpatial.LoadStateDict(nn.ExtractStateDict(stateDict, "conv_spatial")); err != nil {
		return fmt.Errorf("models: shallownet conv_spatial: %w", err)
	}
	if err := m.fc.LoadStateDict(nn.ExtractStateDict(stateDict, "fc")); err != nil {
		return fmt.Errorf("models: shallownet fc: %w", err)
	}
	return nil
}

// Config returns the model's input geometry.
func (m *ShallowNet[B]) Config() Config {
	return m.config
}
