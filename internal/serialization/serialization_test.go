package serialization

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcisec/extractor/internal/tensor"
)

func sampleStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	weight, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(weight.AsFloat32(), []float32{0.1, -0.2, 0.3, 1.5, -2.5, 3.5})

	bias, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(bias.AsFloat32(), []float32{1, 2, 3})

	return map[string]*tensor.RawTensor{
		"fc.weight": weight,
		"fc.bias":   bias,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	stateDict := sampleStateDict(t)
	meta := &TrainingMeta{Fold: 2, Epoch: 17, TestAcc: 0.8125, TestLoss: 0.42}

	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, stateDict, "deepnet", meta))

	loaded, header, err := ReadFrom(bytes.NewReader(buf.Bytes()), tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, "deepnet", header.ModelType)
	require.NotNil(t, header.TrainingMeta)
	assert.Equal(t, 2, header.TrainingMeta.Fold)
	assert.Equal(t, 17, header.TrainingMeta.Epoch)
	assert.InDelta(t, 0.8125, header.TrainingMeta.TestAcc, 1e-9)

	require.Len(t, loaded, 2)
	for name, raw := range stateDict {
		got, ok := loaded[name]
		require.True(t, ok, "missing tensor %s", name)
		assert.True(t, got.Shape().Equal(raw.Shape()))
		assert.Equal(t, raw.AsFloat32(), got.AsFloat32())
	}
}

func TestWriteTo_SortedTensorOrder(t *testing.T) {
	// Map iteration order is random; the file layout must not be.
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, sampleStateDict(t), "m", nil))

	_, header, err := ReadFrom(bytes.NewReader(buf.Bytes()), tensor.CPU)
	require.NoError(t, err)
	require.Len(t, header.Tensors, 2)
	assert.Equal(t, "fc.bias", header.Tensors[0].Name)
	assert.Equal(t, "fc.weight", header.Tensors[1].Name)
	assert.Less(t, header.Tensors[0].Offset, header.Tensors[1].Offset)
}

func TestReadFrom_RejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, sampleStateDict(t), "m", nil))

	raw := buf.Bytes()
	copy(raw[0:4], "NOPE")
	_, _, err := ReadFrom(bytes.NewReader(raw), tensor.CPU)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReadFrom_DetectsCorruptData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, sampleStateDict(t), "m", nil))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF
	_, _, err := ReadFrom(bytes.NewReader(raw), tensor.CPU)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestSaveLoadStateDict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt", "model_0.pth")

	stateDict := sampleStateDict(t)
	require.NoError(t, SaveStateDict(path, stateDict, "shallownet", nil))

	loaded, header, err := LoadStateDict(path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, "shallownet", header.ModelType)
	assert.Len(t, loaded, 2)

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveStateDict_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model_best.pth")

	first := sampleStateDict(t)
	require.NoError(t, SaveStateDict(path, first, "m", &TrainingMeta{TestAcc: 0.5}))

	second := sampleStateDict(t)
	second["fc.bias"].AsFloat32()[0] = 99
	require.NoError(t, SaveStateDict(path, second, "m", &TrainingMeta{TestAcc: 0.75}))

	loaded, header, err := LoadStateDict(path, tensor.CPU)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, header.TrainingMeta.TestAcc, 1e-9)
	assert.Equal(t, float32(99), loaded["fc.bias"].AsFloat32()[0])
}

func TestLoadStateDict_MissingFile(t *testing.T) {
	_, _, err := LoadStateDict(filepath.Join(t.TempDir(), "absent.pth"), tensor.CPU)
	assert.Error(t, err)
}
