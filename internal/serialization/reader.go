package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Decode parses a complete .born v2 file image.
//
// The magic bytes, version, checksum and every tensor's offset, size and
// dtype are validated before any tensor is materialized.
func Decode(file []byte) (map[string]*tensor.Tensor, Header, error) {
	if len(file) < FixedHeaderSizeV2 {
		if len(file) >= 4 && string(file[:4]) != MagicBytes {
			return nil, Header{}, ErrInvalidMagic
		}
		return nil, Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(file))
	}
	if string(file[:4]) != MagicBytes {
		return nil, Header{}, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(file[4:8]); version != FormatVersionV2 {
		return nil, Header{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}

	headerSize := binary.LittleEndian.Uint64(file[16:24])
	dataSize := binary.LittleEndian.Uint64(file[24:32])
	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}

	headerEnd := int64(FixedHeaderSizeV2) + int64(headerSize)
	if headerEnd > int64(len(file)) {
		return nil, Header{}, fmt.Errorf("%w: header", ErrTruncated)
	}
	dataStart := alignedOffset(headerEnd)
	if dataSize > uint64(len(file)) || dataStart+int64(dataSize) > int64(len(file)) {
		return nil, Header{}, fmt.Errorf("%w: data section", ErrTruncated)
	}
	data := file[dataStart : dataStart+int64(dataSize)]

	var stored [32]byte
	copy(stored[:], file[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])
	if ComputeChecksum(data) != stored {
		return nil, Header{}, ErrChecksumMismatch
	}

	var header Header
	if err := json.Unmarshal(file[FixedHeaderSizeV2:headerEnd], &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	stateDict := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		stateDict[meta.Name] = decodeTensor(meta, data[meta.Offset:meta.Offset+meta.Size])
	}
	return stateDict, header, nil
}

// decodeTensor converts validated little-endian bytes to a tensor.
func decodeTensor(meta TensorMeta, raw []byte) *tensor.Tensor {
	t := tensor.Zeros(tensor.Shape(meta.Shape))
	values := t.Data()
	switch meta.DType {
	case DTypeFloat64:
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case DTypeFloat32:
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}
	return t
}

// ReadFile loads a state dictionary from a .born file.
func ReadFile(path string) (map[string]*tensor.Tensor, Header, error) {
	//nolint:gosec // G304: model path is supplied by the user
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	stateDict, header, err := Decode(file)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return stateDict, header, nil
}
