// Package npy implements NumPy .npy file parsing and writing.
//
// Numeric and boolean payloads decode to *tensor.Dense. Object payloads
// (dtype 'O', written by np.save with allow_pickle=True) decode through
// the pickle machinery into ordered *Dict values, slices, and scalars.
package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rasterlab/raster/internal/tensor"
)

const magic = "\x93NUMPY"

const (
	maxHeaderLen = 1 << 20
	maxDims      = 32
)

// Header describes a parsed .npy preamble.
type Header struct {
	Major        uint8
	Minor        uint8
	Descr        string
	FortranOrder bool
	Shape        tensor.Shape
}

// Read parses a .npy stream. The result is a *tensor.Dense for plain
// array payloads, or the decoded object graph (*Dict, []any, scalars)
// for pickled object payloads.
func Read(r io.Reader) (any, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	info, err := parseDescr(hdr.Descr)
	if err != nil {
		return nil, fmt.Errorf("parse descr: %w", err)
	}

	if info.object {
		v, err := readObject(r)
		if err != nil {
			return nil, fmt.Errorf("read object payload: %w", err)
		}
		return v, nil
	}
	return readDense(r, hdr, info)
}

// ReadDense is Read restricted to plain array payloads.
func ReadDense(r io.Reader) (*tensor.Dense, error) {
	v, err := Read(r)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("object payload where a plain array was expected")
	}
	return d, nil
}

// ReadFile parses a .npy file from disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ReadFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	v, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

func readHeader(r io.Reader) (*Header, error) {
	preamble := make([]byte, 8)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(preamble[:6]) != magic {
		return nil, fmt.Errorf("invalid magic: % X (expected \\x93NUMPY)", preamble[:6])
	}

	h := &Header{Major: preamble[6], Minor: preamble[7]}

	var headerLen int
	switch h.Major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read header length: %w", err)
		}
		if n > maxHeaderLen {
			return nil, fmt.Errorf("header too large: %d bytes", n)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported version: %d.%d", h.Major, h.Minor)
	}

	text := make([]byte, headerLen)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	descr, fortran, shape, err := parseHeaderDict(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if len(shape) > maxDims {
		return nil, fmt.Errorf("too many dimensions: %d", len(shape))
	}

	h.Descr = descr
	h.FortranOrder = fortran
	h.Shape = shape
	return h, nil
}

func readDense(r io.Reader, hdr *Header, info dtypeInfo) (*tensor.Dense, error) {
	if err := hdr.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	raw := make([]byte, hdr.Shape.NumElements()*info.size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read array data (%d bytes): %w", len(raw), err)
	}
	if info.big {
		tensor.ByteSwap(raw, info.size)
	}

	buf, err := widen(raw, info)
	if err != nil {
		return nil, err
	}
	if hdr.FortranOrder {
		return tensor.FromBytesColMajor(buf, hdr.Shape, info.dtype)
	}
	return tensor.FromBytes(buf, hdr.Shape, info.dtype)
}
