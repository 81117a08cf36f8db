package optim

import (
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum and
// L2 weight decay.
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocity    map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend     B
}

// SGDConfig holds SGD hyperparameters. LR must be set; momentum and weight
// decay default to zero.
type SGDConfig struct {
	LR          float32
	Momentum    float32
	WeightDecay float32
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocity:    make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:     backend,
	}
}

// Step performs one SGD update over all parameters with gradients.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradData := grad.AsFloat32()
		paramData := param.Tensor().Raw().AsFloat32()

		if s.momentum == 0 {
			for i := range paramData {
				g := gradData[i]
				if s.weightDecay != 0 {
					g += s.weightDecay * paramData[i]
				}
				paramData[i] -= s.lr * g
			}
			continue
		}

		vel, ok := s.velocity[param]
		if !ok {
			vel = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
			s.velocity[param] = vel
		}
		velData := vel.Raw().AsFloat32()

		for i := range paramData {
			g := gradData[i]
			if s.weightDecay != 0 {
				g += s.weightDecay * paramData[i]
			}
			velData[i] = s.momentum*velData[i] + g
			paramData[i] -= s.lr * velData[i]
		}
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate, for schedulers.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
