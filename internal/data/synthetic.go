package data

import (
	"math"
	"math/rand"

	"github.com/bcisec/extractor/internal/tensor"
)

// SyntheticConfig describes a generated EEG dataset.
type SyntheticConfig struct {
	NumTrials  int
	Channels   int
	Samples    int // time points per trial
	NumClasses int
	SampleRate float64 // Hz, used to place class oscillations
	Noise      float64 // Gaussian noise standard deviation
	Seed       int64
}

// Synthetic generates a class-separable EEG-like dataset: each class is an
// oscillation at a class-specific frequency with per-channel phase offsets,
// buried in Gaussian noise. Useful for exercising the pipeline without DEAP
// recordings on disk.
func Synthetic(config SyntheticConfig) (*Dataset, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 128
	}
	if config.Noise == 0 {
		config.Noise = 0.5
	}
	rng := rand.New(rand.NewSource(config.Seed))

	sampleShape := tensor.Shape{1, config.Channels, config.Samples}
	sampleLen := sampleShape.NumElements()

	samples := make([][]float32, config.NumTrials)
	labels := make([]int32, config.NumTrials)

	for i := 0; i < config.NumTrials; i++ {
		class := i % config.NumClasses
		// Class frequencies spread over the alpha/beta range.
		freq := 8.0 + 4.0*float64(class)

		trial := make([]float32, sampleLen)
		for ch := 0; ch < config.Channels; ch++ {
			phase := 2 * math.Pi * float64(ch) / float64(config.Channels)
			for t := 0; t < config.Samples; t++ {
				signal := math.Sin(2*math.Pi*freq*float64(t)/config.SampleRate + phase)
				noise := rng.NormFloat64() * config.Noise
				trial[ch*config.Samples+t] = float32(signal + noise)
			}
		}
		samples[i] = trial
		labels[i] = int32(class)
	}

	return NewDataset(samples, labels, sampleShape)
}
