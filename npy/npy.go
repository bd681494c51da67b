// Package npy reads and writes NumPy .npy files.
//
// Plain numeric arrays come back as *tensor.Dense, widened to a
// supported element type and re-laid row-major when the file is
// fortran_order. Files saved with allow_pickle=True (descr '|O') are
// unpickled: dicts keep their key order as *Dict, object arrays
// flatten to []any, and numpy scalars become Go values.
//
// Example:
//
//	v, err := npy.ReadFile("spks.npy")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch x := v.(type) {
//	case *tensor.Dense:
//	    fmt.Println(x.Shape())
//	case *npy.Dict:
//	    fmt.Println(x.Len(), "entries")
//	}
package npy

import (
	"io"

	"github.com/rasterlab/raster/internal/npy"
	"github.com/rasterlab/raster/tensor"
)

// Dict is a decoded Python dictionary with insertion order preserved.
type Dict = npy.Dict

// DictEntry is one key/value pair of a Dict.
type DictEntry = npy.DictEntry

// Read parses one .npy payload from r.
func Read(r io.Reader) (any, error) {
	return npy.Read(r)
}

// ReadDense parses an .npy payload that must be a plain numeric array.
func ReadDense(r io.Reader) (*tensor.Dense, error) {
	return npy.ReadDense(r)
}

// ReadFile parses an .npy file from disk.
func ReadFile(path string) (any, error) {
	return npy.ReadFile(path)
}

// Write emits d as a version 1.0 .npy stream.
func Write(w io.Writer, d *tensor.Dense) error {
	return npy.Write(w, d)
}

// WriteFile writes d to an .npy file.
func WriteFile(path string, d *tensor.Dense) error {
	return npy.WriteFile(path, d)
}
