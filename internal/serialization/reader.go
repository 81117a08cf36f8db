package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bcisec/extractor/internal/tensor"
)

// ReadFrom reads a checkpoint from r and returns the state dictionary and
// header. The tensor data checksum is always verified.
func ReadFrom(r io.Reader, device tensor.Device) (map[string]*tensor.RawTensor, *Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, nil, fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var storedChecksum [32]byte
	copy(storedChecksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header JSON: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (DataAlignment - (currentPos % DataAlignment)) % DataAlignment
	if padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}

	dataBuf := make([]byte, dataSize)
	if _, err := io.ReadFull(r, dataBuf); err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	if err := ValidateChecksum(ComputeChecksum(dataBuf), storedChecksum); err != nil {
		return nil, nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dtype, ok := stringToDtype(meta.DType)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown dtype %q for tensor %q", ErrCorruptHeader, meta.DType, meta.Name)
		}

		shape := tensor.Shape(meta.Shape)
		raw, err := tensor.NewRaw(shape, dtype, device)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %q: %v", ErrCorruptHeader, meta.Name, err)
		}

		want := int64(shape.NumElements() * dtype.Size())
		if meta.Size != want {
			return nil, nil, fmt.Errorf("%w: tensor %q size %d does not match shape %v", ErrCorruptHeader, meta.Name, meta.Size, meta.Shape)
		}
		end := meta.Offset + meta.Size
		if meta.Offset < 0 || end > int64(len(dataBuf)) {
			return nil, nil, fmt.Errorf("%w: tensor %q extends past data section", ErrCorruptHeader, meta.Name)
		}

		copy(raw.Bytes(), dataBuf[meta.Offset:end])
		stateDict[meta.Name] = raw
	}

	return stateDict, &header, nil
}

// LoadStateDict reads a checkpoint file from path.
func LoadStateDict(path string, device tensor.Device) (map[string]*tensor.RawTensor, *Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	return ReadFrom(file, device)
}
