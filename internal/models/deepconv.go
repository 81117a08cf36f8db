// Package models defines the EEG classifier architectures used as extraction
// students (and, for self-play experiments, as surrogate victims).
//
// All models consume [batch, 1, channels, samples] trials and produce
// [batch, classes] logits. Architectures follow the DeepConvNet and
// ShallowConvNet families common in EEG decoding, without the normalization
// and dropout layers: temporal convolution, spatial convolution across the
// electrode axis, nonlinearity, time-axis pooling, and a linear read-out.
package models

import (
	"fmt"

	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// Config describes the input geometry and output classes of a model.
type Config struct {
	Channels   int // EEG electrodes
	Samples    int // time points per trial
	NumClasses int
}

func (c Config) validate() error {
	if c.Channels <= 0 || c.Samples <= 0 || c.NumClasses <= 0 {
		return fmt.Errorf("models: invalid config %+v", c)
	}
	return nil
}

// convOut returns the output length of a valid (unpadded) convolution.
func convOut(length, kernel int) int {
	return length - kernel + 1
}

// poolOut returns the output length of a pooling window.
func poolOut(length, kernel, stride int) int {
	return (length-kernel)/stride + 1
}

// DeepConvNet is a four-block deep convolutional EEG classifier.
//
// Block 1 factorizes the input convolution into a temporal filter and a
// spatial filter spanning all electrodes; blocks 2-4 alternate temporal
// convolution and time pooling while doubling the filter count.
type DeepConvNet[B tensor.Backend] struct {
	config Config

	convTime    *nn.Conv2D[B] // 1 -> 25, kernel 1x5
	convSpatial *nn.Conv2D[B] // 25 -> 25, kernel channels x 1
	conv2       *nn.Conv2D[B] // 25 -> 50
	conv3       *nn.Conv2D[B] // 50 -> 100
	conv4       *nn.Conv2D[B] // 100 -> 200
	elu         *nn.ELU[B]
	pool        *nn.MaxPool2D[B] // 1x2 stride 1x2
	fc          *nn.Linear[B]

	features int
	backend  B
}

// NewDeepConvNet builds a DeepConvNet for the given input geometry.
// Panics if the trial is too short for the four conv/pool stages.
func NewDeepConvNet[B tensor.Backend](config Config, backend B) *DeepConvNet[B] {
	if err := config.validate(); err != nil {
		panic(err)
	}

	const temporalKernel = 5

	// Track the time-axis length through the stack to size the read-out.
	t := convOut(config.Samples, temporalKernel)
	t = poolOut(t, 2, 2)
	for block := 0; block < 3; block++ {
		t = convOut(t, temporalKernel)
		t = poolOut(t, 2, 2)
	}
	if t <= 0 {
		panic(fmt.Sprintf("models: %d samples too short for DeepConvNet", config.Samples))
	}
	features := 200 * t

	return &DeepConvNet[B]{
		config:      config,
		convTime:    nn.NewConv2D(1, 25, 1, temporalKernel, 1, 0, backend),
		convSpatial: nn.NewConv2D(25, 25, config.Channels, 1, 1, 0, backend),
		conv2:       nn.NewConv2D(25, 50, 1, temporalKernel, 1, 0, backend),
		conv3:       nn.NewConv2D(50, 100, 1, temporalKernel, 1, 0, backend),
		conv4:       nn.NewConv2D(100, 200, 1, temporalKernel, 1, 0, backend),
		elu:         nn.NewELU(backend),
		pool:        nn.NewMaxPool2D(1, 2, 1, 2, backend),
		fc:          nn.NewLinear(features, config.NumClasses, backend),
		features:    features,
		backend:     backend,
	}
}

// Forward maps a [batch, 1, channels, samples] trial batch to logits.
func (m *DeepConvNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := m.convTime.Forward(input)
	x = m.convSpatial.Forward(x)
	x = m.elu.Forward(x)
	x = m.pool.Forward(x)

	x = m.conv2.Forward(x)
	x = m.elu.Forward(x)
	x = m.pool.Forward(x)

	x = m.conv3.Forward(x)
	x = m.elu.Forward(x)
	x = m.pool.Forward(x)

	x = m.conv4.Forward(x)
	x = m.elu.Forward(x)
	x = m.pool.Forward(x)

	batch := x.Shape()[0]
	return m.fc.Forward(x.Reshape(batch, m.features))
}

// Parameters returns all trainable parameters.
func (m *DeepConvNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, m.convTime.Parameters()...)
	params = append(params, m.convSpatial.Parameters()...)
	params = append(params, m.conv2.Parameters()...)
	params = append(params, m.conv3.Parameters()...)
	params = append(params, m.conv4.Parameters()...)
	params = append(params, m.fc.Parameters()...)
	return params
}

// StateDict returns a flat snapshot of all parameters.
func (m *DeepConvNet[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(out, "conv_time", m.convTime.StateDict())
	nn.MergeStateDict(out, "conv_spatial", m.convSpatial.StateDict())
	nn.MergeStateDict(out, "conv2", m.conv2.StateDict())
	nn.MergeStateDict(out, "conv3", m.conv3.StateDict())
	nn.MergeStateDict(out, "conv4", m.conv4.StateDict())
	nn.MergeStateDict(out, "fc", m.fc.StateDict())
	return out
}

// LoadStateDict restores all parameters from a flat snapshot.
func (m *DeepConvNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	layers := []struct {
		prefix string
		module interface {
			LoadStateDict(map[string]*tensor.RawTensor) error
		}
	}{
		{"conv_time", m.convTime},
		{"conv_spatial", m.convSpatial},
		{"conv2", m.conv2},
		{"conv3", m.conv3},
		{"conv4", m.conv4},
		{"fc", m.fc},
	}
	for _, l := range layers {
		if err := l.module.LoadStateDict(nn.ExtractStateDict(stateDict, l.prefix)); err != nil {
			return fmt.Errorf("models: deepconvnet %s: %w", l.prefix, err)
		}
	}
	return nil
}

// Config returns the model's input geometry.
func (m *DeepConvNet[B]) Config() Config {
	return m.config
}
