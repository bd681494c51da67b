// Copyright 2025 Rasterlab. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/rasterlab/raster/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for element types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// DataType identifies the element type of a Dense at runtime.
type DataType = tensor.DataType

// Element type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape holds array dimensions, outermost first.
// Example: Shape{170, 5000} is 170 units by 5000 timepoints.
type Shape = tensor.Shape

// Dense is a row-major n-dimensional array.
type Dense = tensor.Dense

// Creation functions

// New allocates a zeroed array.
func New(shape Shape, dtype DataType) (*Dense, error) {
	return tensor.New(shape, dtype)
}

// FromSlice builds an array from values laid out row-major.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice[T DType](values []T, shape Shape) (*Dense, error) {
	return tensor.FromSlice[T](values, shape)
}

// FromBytes builds an array over raw little-endian element bytes.
func FromBytes(data []byte, shape Shape, dtype DataType) (*Dense, error) {
	return tensor.FromBytes(data, shape, dtype)
}

// FromBytesColMajor is FromBytes for column-major (Fortran order)
// payloads, the element order MAT-files and fortran_order .npy files
// store.
func FromBytesColMajor(data []byte, shape Shape, dtype DataType) (*Dense, error) {
	return tensor.FromBytesColMajor(data, shape, dtype)
}

// StackColumns builds an (n, len(cols)) float64 matrix from equal-length
// column vectors.
func StackColumns(cols ...[]float64) (*Dense, error) {
	return tensor.StackColumns(cols...)
}
