package rpack

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rasterlab/raster/internal/tensor"
)

// ReaderOptions configures reader behavior.
type ReaderOptions struct {
	// SkipChecksumValidation skips the SHA-256 check over the data
	// section. Opening large caches becomes cheaper, at the cost of not
	// detecting corruption. Use only with trusted files.
	SkipChecksumValidation bool
}

// Reader reads .rpk containers.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	opts       ReaderOptions
	closed     bool
}

// Open opens an .rpk file with default options.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions opens an .rpk file, validates the header, and unless
// disabled verifies the data-section checksum.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file, opts: opts}
	if err := r.parseHeader(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixedHeader); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixedHeader[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(fixedHeader[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixedHeader[8:12])
	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	copy(r.checksum[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	r.dataOffset = currentPos + padding

	r.dataSize = int64(dataSize)
	if r.dataSize < 0 {
		return &ValidationError{
			Type:    "negative_offset",
			Details: fmt.Sprintf("data size %d overflows", dataSize),
		}
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if r.dataOffset+r.dataSize > info.Size() {
		return &ValidationError{
			Type: "out_of_bounds",
			Details: fmt.Sprintf("data section [%d-%d] exceeds file size %d",
				r.dataOffset, r.dataOffset+r.dataSize, info.Size()),
		}
	}

	if err := validateHeader(&r.header, r.dataSize); err != nil {
		return err
	}

	if !r.opts.SkipChecksumValidation {
		if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to data section: %w", err)
		}
		computed, err := ComputeChecksumReader(io.LimitReader(r.file, r.dataSize))
		if err != nil {
			return fmt.Errorf("failed to read data section for checksum: %w", err)
		}
		if err := ValidateChecksum(computed, r.checksum); err != nil {
			return err
		}
	}

	return nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Source returns the path of the activity file the cache was built from.
func (r *Reader) Source() string {
	return r.header.Source
}

// TensorNames returns all tensor names in storage order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata for a named tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for _, meta := range r.header.Tensors {
		if meta.Name == name {
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("tensor %s not found", name)
}

// Tensor reads a named array from the file.
func (r *Reader) Tensor(name string) (*tensor.Dense, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", meta.DType)
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	d, err := tensor.FromBytes(data, tensor.Shape(meta.Shape), dtype)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return d, nil
}

// Close closes the underlying file. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
