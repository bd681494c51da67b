// Package matv73 adds MAT v7.3 support to the matfile package.
//
// MAT v7.3 files are HDF5 containers, and reading them needs the system
// HDF5 library through cgo. Linking that dependency is opt-in: import
// this package for its side effect and matfile.ReadFile (and the
// activity loader on top of it) will handle v7.3 files transparently.
//
//	import _ "github.com/rasterlab/raster/matv73"
//
// Datasets are read as float64 arrays. HDF5 stores MATLAB arrays
// transposed, so dimensions are reversed and the payload is re-laid
// from column-major order. Bookkeeping groups such as #refs# and
// entries that are not plain datasets are skipped.
package matv73

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/hdf5"

	"github.com/rasterlab/raster/internal/matfile"
	"github.com/rasterlab/raster/internal/tensor"
)

func init() {
	matfile.RegisterV73(reader{})
}

type reader struct{}

func (reader) ReadFile(path string) ([]matfile.Variable, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open HDF5 container: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	n, err := f.NumObjects()
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	var vars []matfile.Variable
	for i := uint(0); i < n; i++ {
		name, err := f.ObjectNameByIndex(i)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		// #refs# and friends hold internal reference bookkeeping.
		if strings.HasPrefix(name, "#") {
			continue
		}

		d, ok := readDataset(&f.CommonFG, name)
		if !ok {
			continue
		}
		v := matfile.Variable{Name: name}
		if d != nil {
			v.Value = d
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// readDataset loads one top-level dataset. Objects that cannot be
// opened as datasets (groups, references) report ok=false and are
// skipped by the caller.
func readDataset(g *hdf5.CommonFG, name string) (*tensor.Dense, bool) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, false
	}
	defer func() {
		_ = ds.Close()
	}()

	space := ds.Space()
	defer func() {
		_ = space.Close()
	}()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, false
	}

	count := 1
	for _, d := range dims {
		count *= int(d)
	}
	if count == 0 {
		// Empty array: keep the name with a nil value.
		return nil, true
	}

	buf := make([]float64, count)
	if err := ds.Read(&buf); err != nil {
		return nil, false
	}

	// HDF5 dimensions are the reverse of the MATLAB shape, and the
	// row-major HDF5 payload is column-major for that shape.
	shape := make(tensor.Shape, 0, len(dims))
	for i := len(dims) - 1; i >= 0; i-- {
		shape = append(shape, int(dims[i]))
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}

	raw := make([]byte, count*8)
	for i, v := range buf {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	d, err := tensor.FromBytesColMajor(raw, shape, tensor.Float64)
	if err != nil {
		return nil, false
	}
	return d, true
}
