package rpack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rasterlab/raster/internal/tensor"
)

func mustDense[T tensor.DType](t *testing.T, values []T, shape tensor.Shape) *tensor.Dense {
	t.Helper()
	d, err := tensor.FromSlice(values, shape)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	return d
}

func writeSample(t *testing.T, path string) []NamedTensor {
	t.Helper()
	tensors := []NamedTensor{
		{Name: "X", Dense: mustDense(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})},
		{Name: "Sv", Dense: mustDense(t, []float32{0.5, 0.25}, tensor.Shape{2})},
		{Name: "iscell", Dense: mustDense(t, []uint8{1, 0, 1}, tensor.Shape{3})},
	}
	if err := WriteFile(path, "/data/mouse1/spks.npy", tensors); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return tensors
}

func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Failed to open file for corruption: %v", err)
	}
	if _, err := file.Seek(info.Size()-1, 0); err != nil {
		t.Fatalf("Failed to seek: %v", err)
	}
	if _, err := file.Write([]byte{0xFF}); err != nil {
		t.Fatalf("Failed to corrupt file: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.rpk")
	writeSample(t, path)

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer reader.Close()

	header := reader.Header()
	if header.FormatVersion != FormatVersion {
		t.Errorf("Expected format version %d, got %d", FormatVersion, header.FormatVersion)
	}
	if header.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if reader.Source() != "/data/mouse1/spks.npy" {
		t.Errorf("Unexpected source: %q", reader.Source())
	}

	names := reader.TensorNames()
	want := []string{"X", "Sv", "iscell"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d tensors, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Tensor %d: expected name %q, got %q", i, name, names[i])
		}
	}

	x, err := reader.Tensor("X")
	if err != nil {
		t.Fatalf("Failed to read X: %v", err)
	}
	if x.DType() != tensor.Float64 {
		t.Errorf("Expected float64, got %v", x.DType())
	}
	if !x.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Unexpected shape: %v", x.Shape())
	}
	vals := x.AsFloat64()
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		if vals[i] != v {
			t.Errorf("Element %d: expected %v, got %v", i, v, vals[i])
		}
	}

	sv, err := reader.Tensor("Sv")
	if err != nil {
		t.Fatalf("Failed to read Sv: %v", err)
	}
	if sv.DType() != tensor.Float32 {
		t.Errorf("Expected float32, got %v", sv.DType())
	}
	svVals := sv.AsFloat32()
	if svVals[0] != 0.5 || svVals[1] != 0.25 {
		t.Errorf("Unexpected Sv values: %v", svVals)
	}

	mask, err := reader.Tensor("iscell")
	if err != nil {
		t.Fatalf("Failed to read iscell: %v", err)
	}
	maskVals := mask.AsUint8()
	if maskVals[0] != 1 || maskVals[1] != 0 || maskVals[2] != 1 {
		t.Errorf("Unexpected iscell values: %v", maskVals)
	}
}

func TestCorruptionDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.rpk")
	writeSample(t, path)
	corruptLastByte(t, path)

	_, err := Open(path)
	if err == nil {
		t.Fatal("Expected checksum validation to fail, but succeeded")
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got: %v", err)
	}
}

func TestSkipChecksumValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip.rpk")
	writeSample(t, path)
	corruptLastByte(t, path)

	reader, err := OpenWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	if err != nil {
		t.Fatalf("Expected to succeed with skipped validation, got: %v", err)
	}
	defer reader.Close()

	// Data is corrupt but must still be readable.
	if _, err := reader.Tensor("iscell"); err != nil {
		t.Errorf("Failed to read tensor with validation skipped: %v", err)
	}
}

func TestInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.rpk")
	buf := make([]byte, FixedHeaderSize)
	copy(buf, "JUNK")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got: %v", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.rpk")
	writeSample(t, path)

	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	if _, err := file.WriteAt([]byte{9, 0, 0, 0}, 4); err != nil {
		t.Fatalf("Failed to patch version: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion, got: %v", err)
	}
}

func TestTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.rpk")
	writeSample(t, path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if err := os.Truncate(path, info.Size()-4); err != nil {
		t.Fatalf("Failed to truncate file: %v", err)
	}

	_, err = Open(path)
	if err == nil {
		t.Fatal("Expected truncated file to fail, but succeeded")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Type != "out_of_bounds" {
		t.Errorf("Expected out_of_bounds validation error, got: %v", err)
	}
}

func TestRejectsBadTensorName(t *testing.T) {
	d := mustDense(t, []float64{1}, tensor.Shape{1})
	for _, name := range []string{"", "../evil", "a/b", "a\\b", "nul\x00byte"} {
		err := WriteFile(filepath.Join(t.TempDir(), "bad.rpk"), "", []NamedTensor{{Name: name, Dense: d}})
		if err == nil {
			t.Errorf("Expected name %q to be rejected", name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Name %q: expected ValidationError, got: %v", name, err)
		}
	}

	long := make([]byte, MaxTensorNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	err := WriteFile(filepath.Join(t.TempDir(), "long.rpk"), "", []NamedTensor{{Name: string(long), Dense: d}})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Type != "name_too_long" {
		t.Errorf("Expected name_too_long, got: %v", err)
	}
}

func TestRejectsDuplicateName(t *testing.T) {
	d := mustDense(t, []float64{1}, tensor.Shape{1})
	path := filepath.Join(t.TempDir(), "dup.rpk")
	err := WriteFile(path, "", []NamedTensor{
		{Name: "X", Dense: d},
		{Name: "X", Dense: d},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Type != "duplicate_name" {
		t.Errorf("Expected duplicate_name, got: %v", err)
	}
}

func TestEmptyTensorList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rpk")
	if err := WriteFile(path, "source.mat", nil); err != nil {
		t.Fatalf("Failed to write empty file: %v", err)
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open empty file: %v", err)
	}
	defer reader.Close()

	if len(reader.TensorNames()) != 0 {
		t.Errorf("Expected no tensors, got %v", reader.TensorNames())
	}
	if reader.Source() != "source.mat" {
		t.Errorf("Unexpected source: %q", reader.Source())
	}
}

func TestTensorNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.rpk")
	writeSample(t, path)

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Tensor("missing"); err == nil {
		t.Error("Expected missing tensor to fail")
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	cases := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{
			name: "valid layout",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 16, Size: 8},
			},
			dataSize: 24,
		},
		{
			name: "negative offset",
			tensors: []TensorMeta{
				{Name: "a", Offset: -8, Size: 16},
			},
			dataSize: 24,
			wantType: "negative_offset",
		},
		{
			name: "out of bounds",
			tensors: []TensorMeta{
				{Name: "a", Offset: 16, Size: 16},
			},
			dataSize: 24,
			wantType: "out_of_bounds",
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 8, Size: 8},
			},
			dataSize: 24,
			wantType: "offset_overlap",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tc.tensors, tc.dataSize)
			if tc.wantType == "" {
				if err != nil {
					t.Fatalf("Expected valid layout, got: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got: %v", err)
			}
			if verr.Type != tc.wantType {
				t.Errorf("Expected type %q, got %q", tc.wantType, verr.Type)
			}
		})
	}
}
