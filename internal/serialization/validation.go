package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateTensorOffsets checks for overlapping tensor regions and
// out-of-bounds access. Malformed files must never cause reads outside the
// data section.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorMeta checks a tensor's name, dtype and that its byte size
// matches its shape.
func ValidateTensorMeta(t TensorMeta) error {
	if t.Name == "" || len(t.Name) > MaxTensorNameLen {
		return &ValidationError{Type: "invalid_name", Tensor: t.Name, Details: fmt.Sprintf("length %d", len(t.Name))}
	}
	if strings.ContainsAny(t.Name, "/\\\x00") || strings.Contains(t.Name, "..") {
		return &ValidationError{Type: "invalid_name", Tensor: t.Name, Details: "contains path characters"}
	}

	elemSize, ok := dtypeSize(t.DType)
	if !ok {
		return &ValidationError{Type: "unsupported_dtype", Tensor: t.Name, Details: t.DType}
	}
	elements := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("%v", t.Shape)}
		}
		elements *= int64(d)
	}
	if elements*elemSize != t.Size {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, elements*elemSize, t.Size),
		}
	}
	return nil
}

// ValidateHeader performs full header validation against the data size.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersionV2 {
		return fmt.Errorf("%w: header declares %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorMeta(t); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "appears twice"}
		}
		seen[t.Name] = struct{}{}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
