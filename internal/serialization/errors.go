package serialization

import "errors"

// Sentinel errors returned by the checkpoint reader.
var (
	ErrInvalidMagic       = errors.New("serialization: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("serialization: unsupported format version")
	ErrChecksumMismatch   = errors.New("serialization: tensor data checksum mismatch")
	ErrCorruptHeader      = errors.New("serialization: corrupt header")
)
