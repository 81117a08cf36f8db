package nn

import (
	"fmt"
	"strings"

	"github.com/bcisec/extractor/internal/tensor"
)

// loadParam copies a named tensor from a state dict into a parameter,
// validating shape and dtype.
func loadParam[B tensor.Backend](p *Parameter[B], stateDict map[string]*tensor.RawTensor, name string) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %q in state dict", name)
	}

	dst := p.Tensor().Raw()
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%q shape mismatch: expected %v, got %v", name, dst.Shape(), raw.Shape())
	}
	if raw.DType() != dst.DType() {
		return fmt.Errorf("%q dtype mismatch: expected %s, got %s", name, dst.DType(), raw.DType())
	}

	copy(dst.AsFloat32(), raw.AsFloat32())
	return nil
}

// MergeStateDict copies src entries into dst under "prefix.name" keys.
// Used by models to compose per-layer state dicts into a flat snapshot.
func MergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// ExtractStateDict returns the entries of src under "prefix." with the
// prefix stripped.
func ExtractStateDict(src map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for name, raw := range src {
		if strings.HasPrefix(name, prefix+".") {
			out[strings.TrimPrefix(name, prefix+".")] = raw
		}
	}
	return out
}

// CloneStateDict deep-copies a state dict. Checkpoint snapshots must not
// alias live parameters that the optimizer keeps mutating.
func CloneStateDict(src map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(src))
	for name, raw := range src {
		out[name] = raw.Clone()
	}
	return out
}
