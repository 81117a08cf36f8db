package models

import (
	"fmt"

	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// Known architecture names, as accepted on the command line.
const (
	DeepNetName    = "deepnet"
	ShallowNetName = "shallownet"
)

// New builds a model by architecture name.
func New[B tensor.Backend](name string, config Config, backend B) (nn.StateModule[B], error) {
	switch name {
	case DeepNetName:
		return NewDeepConvNet(config, backend), nil
	case ShallowNetName:
		return NewShallowNet(config, backend), nil
	default:
		return nil, fmt.Errorf("models: unknown architecture %q (want %s or %s)", name, DeepNetName, ShallowNetName)
	}
}
