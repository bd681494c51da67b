package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rasterlab/raster/internal/tensor"
)

// Write serializes a Dense in NumPy format 1.0: little-endian, C order.
func Write(w io.Writer, d *tensor.Dense) error {
	descr, err := descrFor(d.DType())
	if err != nil {
		return err
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		descr, pyShape(d.Shape()))
	// Pad with spaces so the whole preamble is a multiple of 64 bytes,
	// newline-terminated, the way numpy writes it.
	if rem := (len(magic) + 2 + 2 + len(header) + 1) % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	if _, err := io.WriteString(w, magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil { //nolint:gosec // G115: header length is bounded by shape digits.
		return fmt.Errorf("write header length: %w", err)
	}
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return writeData(w, d)
}

// WriteFile serializes a Dense to a .npy file on disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func WriteFile(path string, d *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := Write(f, d); err != nil {
		_ = f.Close() // Best-effort close, the write error wins.
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func writeData(w io.Writer, d *tensor.Dense) error {
	var err error
	switch d.DType() {
	case tensor.Float32:
		err = binary.Write(w, binary.LittleEndian, d.AsFloat32())
	case tensor.Float64:
		err = binary.Write(w, binary.LittleEndian, d.AsFloat64())
	case tensor.Int32:
		err = binary.Write(w, binary.LittleEndian, d.AsInt32())
	case tensor.Int64:
		err = binary.Write(w, binary.LittleEndian, d.AsInt64())
	case tensor.Uint8:
		_, err = w.Write(d.AsUint8())
	case tensor.Bool:
		err = binary.Write(w, binary.LittleEndian, d.AsBool())
	default:
		return fmt.Errorf("no writer for dtype %s", d.DType())
	}
	if err != nil {
		return fmt.Errorf("write array data: %w", err)
	}
	return nil
}

func descrFor(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "<f4", nil
	case tensor.Float64:
		return "<f8", nil
	case tensor.Int32:
		return "<i4", nil
	case tensor.Int64:
		return "<i8", nil
	case tensor.Uint8:
		return "|u1", nil
	case tensor.Bool:
		return "|b1", nil
	default:
		return "", fmt.Errorf("no descr for dtype %s", dt)
	}
}

// pyShape formats a shape as a Python tuple: "(170, 5000)", "(5,)", "()".
func pyShape(s tensor.Shape) string {
	switch len(s) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", s[0])
	default:
		parts := make([]string, len(s))
		for i, dim := range s {
			parts[i] = fmt.Sprintf("%d", dim)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}
