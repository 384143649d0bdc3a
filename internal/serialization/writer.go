package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Version is recorded in every header written by this package.
const Version = "0.3.0"

// Encode writes a state dictionary in .born v2 format.
//
// Tensors are written in lexical name order so the same weights always
// produce the same data section and checksum.
func Encode(w io.Writer, stateDict map[string]*tensor.Tensor, modelType string, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersionV2,
		BornVersion:   Version,
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data bytes.Buffer
	var offset int64
	buf := make([]byte, 8)
	for _, name := range names {
		t := stateDict[name]
		size := int64(t.NumElements()) * 8
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		for _, v := range t.Data() {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			data.Write(buf)
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	checksum := ComputeChecksum(data.Bytes())
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixedHeader := make([]byte, FixedHeaderSizeV2)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], FormatVersionV2)
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(data.Len()))
	copy(fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	headerEnd := int64(FixedHeaderSizeV2 + len(headerJSON))
	if padding := alignedOffset(headerEnd) - headerEnd; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile saves a state dictionary to path.
//
// The file is written to a temporary sibling and renamed into place, so an
// interrupted save never leaves a truncated model behind.
func WriteFile(path string, stateDict map[string]*tensor.Tensor, modelType string, metadata map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := Encode(tmp, stateDict, modelType, metadata); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
