// Package serialization implements the binary checkpoint format used for
// student model snapshots.
//
// Layout:
//
//	0x00-0x03  magic "XTRC"
//	0x04-0x07  format version (uint32, little-endian)
//	0x08-0x0B  flags (uint32)
//	0x0C-0x0F  reserved
//	0x10-0x17  JSON header size (uint64)
//	0x18-0x1F  tensor data size (uint64)
//	0x20-0x3F  SHA-256 checksum of tensor data
//	....       JSON header, zero-padded to a 64-byte boundary
//	....       tensor data, concatenated in header order
//
// The JSON header carries the tensor index (name, dtype, shape, offset,
// size) plus optional training metadata (fold, epoch, test accuracy) so a
// checkpoint can be audited without loading the weights.
package serialization

import (
	"time"

	"github.com/bcisec/extractor/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "XTRC"
	FormatVersion   = 1
	FixedHeaderSize = 64 // magic + version + flags + reserved + sizes + checksum
	DataAlignment   = 64 // tensor data starts on a 64-byte boundary
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// Flags for the checkpoint format.
const (
	FlagHasTrainingMeta uint32 = 1 << 0 // training metadata present in header
)

// Data type strings used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int           `json:"format_version"`
	ModelType     string        `json:"model_type"`
	CreatedAt     time.Time     `json:"created_at"`
	Tensors       []TensorMeta  `json:"tensors"`
	TrainingMeta  *TrainingMeta `json:"training,omitempty"`
}

// TrainingMeta records where in the extraction run a checkpoint was taken.
type TrainingMeta struct {
	Fold     int     `json:"fold"`
	Epoch    int     `json:"epoch"`
	TestAcc  float64 `json:"test_acc"`
	TestLoss float64 `json:"test_loss"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	default:
		return 0, false
	}
}
