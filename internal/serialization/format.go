package serialization

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
)

// Flags for the .born format.
const (
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrTruncated          = errors.New("file truncated")
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .born format
	BornVersion   string            `json:"born_version"`   // Version of the program that wrote the file
	ModelType     string            `json:"model_type"`     // Type of model (e.g., "CIFARNet")
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`        // Tensor metadata
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "0.weight")
	DType  string `json:"dtype"`  // Data type ("float64" or "float32")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// dtypeSize returns the element size of a serialized dtype.
func dtypeSize(dtype string) (int64, bool) {
	switch dtype {
	case DTypeFloat64:
		return 8, true
	case DTypeFloat32:
		return 4, true
	default:
		return 0, false
	}
}

// alignedOffset returns the first multiple of HeaderAlignment at or after pos.
func alignedOffset(pos int64) int64 {
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
