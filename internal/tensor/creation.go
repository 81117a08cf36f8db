package tensor

import (
	"math"
	"math/rand"
	"sync"
)

// Shared RNG for tensor initialization. Seeded once at process start so that
// weight init and shuffling are reproducible for a fixed seed.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(1)) //nolint:gosec // reproducible ML init, not security
)

// Seed reseeds the initialization RNG.
func Seed(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible ML init, not security
}

// randFloat64 draws from the shared RNG.
func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case int32:
		one = int32(1)
	}

	for i := range data {
		data[i] = one.(T)
	}
	return t
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Rand creates a float32 tensor with values uniformly distributed in [0, 1).
func Rand[B Backend](shape Shape, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(randFloat64())
	}
	return t
}

// Randn creates a float32 tensor with values from N(0, 1).
// Uses the Box-Muller transform.
func Randn[B Backend](shape Shape, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := 0; i < len(data); i += 2 {
		// Map [0, 1) to (0, 1]: log(0) would produce infinite samples.
		u1 := 1 - randFloat64()
		u2 := randFloat64()
		z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
		z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
		data[i] = float32(z0)
		if i+1 < len(data) {
			data[i+1] = float32(z1)
		}
	}
	return t
}
