package rpack

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Write writes the named arrays to w as an .rpk container. Tensors are
// stored in slice order, so callers control the slot layout. source
// records the path of the activity file the cache was built from and may
// be empty.
func Write(w io.Writer, source string, tensors []NamedTensor) error {
	seen := make(map[string]bool, len(tensors))
	for _, nt := range tensors {
		if err := ValidateTensorName(nt.Name); err != nil {
			return err
		}
		if seen[nt.Name] {
			return &ValidationError{
				Type:    "duplicate_name",
				Tensor:  nt.Name,
				Details: "tensor stored twice",
			}
		}
		seen[nt.Name] = true
		if nt.Dense == nil {
			return fmt.Errorf("tensor %s: nil array", nt.Name)
		}
	}

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Source:        source,
		Tensors:       make([]TensorMeta, 0, len(tensors)),
	}

	// Lay out the data section and collect it for the checksum.
	var currentOffset int64
	var dataBuf []byte
	for _, nt := range tensors {
		data := nt.Dense.Data()
		size := int64(len(data))

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   nt.Name,
			DType:  dtypeToString(nt.Dense.DType()),
			Shape:  []int(nt.Dense.Shape()),
			Offset: currentOffset,
			Size:   size,
		})

		dataBuf = append(dataBuf, data...)
		currentOffset += size
	}

	checksum := ComputeChecksum(dataBuf)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	// Fixed 64-byte header.
	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))
	// 0x08-0x0F: flags and reserved stay zero.
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(dataBuf)))
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Pad so the data section starts on a 64-byte boundary.
	currentPos := int64(FixedHeaderSize) + int64(len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(dataBuf); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}

// WriteFile writes the named arrays to path as an .rpk container.
func WriteFile(path, source string, tensors []NamedTensor) error {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, source, tensors); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
