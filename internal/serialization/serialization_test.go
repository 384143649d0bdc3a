package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/born-ml/cifarnet/internal/tensor"
)

func testStateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"0.weight": tensor.MustFromSlice([]float64{1.5, -2.25, 3.125, 1e-300}, tensor.Shape{2, 1, 1, 2}),
		"0.bias":   tensor.MustFromSlice([]float64{0.1, 0.2}, tensor.Shape{2}),
		"9.weight": tensor.MustFromSlice([]float64{7}, tensor.Shape{1, 1}),
	}
}

func encode(t *testing.T, sd map[string]*tensor.Tensor) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, sd, "TestModel", map[string]string{"epochs": "3"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

// TestRoundTrip verifies write and read with checksum validation.
func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	want := testStateDict()

	if err := WriteFile(path, want, "TestModel", map[string]string{"activation": "relu"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, header, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if header.ModelType != "TestModel" || header.Metadata["activation"] != "relu" {
		t.Errorf("Unexpected header: %+v", header)
	}
	if header.FormatVersion != FormatVersionV2 {
		t.Errorf("Expected version %d, got %d", FormatVersionV2, header.FormatVersion)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d tensors, got %d", len(want), len(got))
	}
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			t.Fatalf("Tensor %q not found", name)
		}
		if !g.Shape().Equal(w.Shape()) {
			t.Errorf("%s: shape %v, want %v", name, g.Shape(), w.Shape())
		}
		for i, v := range w.Data() {
			if g.Data()[i] != v {
				t.Errorf("%s[%d]: expected %g, got %g", name, i, v, g.Data()[i])
			}
		}
	}
}

func TestEncode_DataIsAligned(t *testing.T) {
	file := encode(t, testStateDict())
	headerSize := binary.LittleEndian.Uint64(file[16:24])
	dataSize := binary.LittleEndian.Uint64(file[24:32])

	dataStart := alignedOffset(int64(FixedHeaderSizeV2) + int64(headerSize))
	if dataStart%HeaderAlignment != 0 {
		t.Errorf("data starts at %d", dataStart)
	}
	if int64(len(file)) != dataStart+int64(dataSize) {
		t.Errorf("file is %d bytes, expected %d", len(file), dataStart+int64(dataSize))
	}
	if dataSize != 7*8 {
		t.Errorf("expected 56 data bytes, got %d", dataSize)
	}
}

func TestDecode_InvalidMagic(t *testing.T) {
	file := encode(t, testStateDict())
	copy(file, "NOPE")
	if _, _, err := Decode(file); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	file := encode(t, testStateDict())
	binary.LittleEndian.PutUint32(file[4:8], 1)
	if _, _, err := Decode(file); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	file := encode(t, testStateDict())
	file[len(file)-1] ^= 0xFF
	if _, _, err := Decode(file); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	file := encode(t, testStateDict())
	if _, _, err := Decode(file[:len(file)-8]); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
	if _, _, err := Decode(file[:10]); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated for short file, got %v", err)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{"valid", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, 16, ""},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 16}, {Name: "b", Offset: 8, Size: 8}}, 16, "offset_overlap"},
		{"out of bounds", []TensorMeta{{Name: "a", Offset: 8, Size: 16}}, 16, "out_of_bounds"},
		{"negative", []TensorMeta{{Name: "a", Offset: -8, Size: 8}}, 16, "negative_offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Type != tt.wantType {
				t.Errorf("expected %s, got %v", tt.wantType, err)
			}
		})
	}
}

func TestValidateTensorMeta(t *testing.T) {
	valid := TensorMeta{Name: "0.weight", DType: DTypeFloat64, Shape: []int{2, 3}, Size: 48}
	if err := ValidateTensorMeta(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []TensorMeta{
		{Name: "../etc", DType: DTypeFloat64, Shape: []int{1}, Size: 8},
		{Name: "w", DType: "int8", Shape: []int{1}, Size: 1},
		{Name: "w", DType: DTypeFloat64, Shape: []int{0}, Size: 0},
		{Name: "w", DType: DTypeFloat64, Shape: []int{2}, Size: 8},
	}
	for _, m := range bad {
		if err := ValidateTensorMeta(m); err == nil {
			t.Errorf("expected error for %+v", m)
		}
	}
}
