package optim

import (
	"math"

	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// Adam implements Adam (Kingma & Ba, 2014) with optional L2 weight decay
// folded into the gradient, matching the classic (non-decoupled) variant.
//
// Update rule:
//
//	g_t    = grad + wd * param
//	m_t    = beta1 * m_{t-1} + (1-beta1) * g_t
//	v_t    = beta2 * v_{t-1} + (1-beta2) * g_t²
//	m_hat  = m_t / (1 - beta1^t)
//	v_hat  = v_t / (1 - beta2^t)
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
type Adam[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int
	m           map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // first moment
	v           map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // second moment
	backend     B
}

// AdamConfig holds Adam hyperparameters. Zero values fall back to the usual
// defaults (lr 0.001, betas 0.9/0.999, eps 1e-8, no weight decay).
type AdamConfig struct {
	LR          float32
	Betas       [2]float32
	Eps         float32
	WeightDecay float32
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:           make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:     backend,
	}
}

// Step performs one Adam update over all parameters with gradients.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		a.updateParameter(param, grad, m, v, biasCorrection1, biasCorrection2)
	}
}

func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	grad *tensor.RawTensor,
	m, v *tensor.Tensor[float32, B],
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.AsFloat32()
	mData := m.Raw().AsFloat32()
	vData := v.Raw().AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()

	for i := range paramData {
		g := gradData[i]
		if a.weightDecay != 0 {
			g += a.weightDecay * paramData[i]
		}

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate, for schedulers.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// Timestep returns the number of completed steps.
func (a *Adam[B]) Timestep() int {
	return a.t
}
