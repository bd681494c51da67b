package tensor

import (
	"fmt"
	"unsafe"
)

// Dense is a contiguous row-major n-dimensional array. It is the common
// in-memory representation every format reader normalizes into: one flat
// byte buffer plus shape, strides, and runtime type information.
//
// Loaders hand out freshly-allocated values, so callers never share
// mutable state with the reader that produced them. Reshape, Squeeze, and
// FlattenTrailing return views over the same buffer; everything else that
// returns a Dense copies.
type Dense struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
}

// New creates a zero-initialized Dense with the given shape and type.
func New(shape Shape, dtype DataType) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()
	return &Dense{
		data:   make([]byte, byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// Shape returns the array's shape.
func (d *Dense) Shape() Shape {
	return d.shape
}

// Strides returns the array's memory strides.
func (d *Dense) Strides() []int {
	return d.stride
}

// DType returns the array's data type.
func (d *Dense) DType() DataType {
	return d.dtype
}

// Ndim returns the number of dimensions.
func (d *Dense) Ndim() int {
	return len(d.shape)
}

// NumElements returns the total number of elements.
func (d *Dense) NumElements() int {
	return d.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (d *Dense) ByteSize() int {
	return d.NumElements() * d.dtype.Size()
}

// Data returns the raw row-major byte buffer.
// WARNING: Direct access to underlying memory. Use with caution.
func (d *Dense) Data() []byte {
	return d.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the array's dtype is not Float32.
func (d *Dense) AsFloat32() []float32 {
	if d.dtype != Float32 {
		panic(fmt.Sprintf("array dtype is %s, not float32", d.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&d.data[0])), d.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the array's dtype is not Float64.
func (d *Dense) AsFloat64() []float64 {
	if d.dtype != Float64 {
		panic(fmt.Sprintf("array dtype is %s, not float64", d.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&d.data[0])), d.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the array's dtype is not Int32.
func (d *Dense) AsInt32() []int32 {
	if d.dtype != Int32 {
		panic(fmt.Sprintf("array dtype is %s, not int32", d.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&d.data[0])), d.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the array's dtype is not Int64.
func (d *Dense) AsInt64() []int64 {
	if d.dtype != Int64 {
		panic(fmt.Sprintf("array dtype is %s, not int64", d.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&d.data[0])), d.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the array's dtype is not Uint8.
func (d *Dense) AsUint8() []uint8 {
	if d.dtype != Uint8 {
		panic(fmt.Sprintf("array dtype is %s, not uint8", d.dtype))
	}
	return d.data // Already []byte = []uint8
}

// AsBool interprets the data as []bool.
// Panics if the array's dtype is not Bool.
func (d *Dense) AsBool() []bool {
	if d.dtype != Bool {
		panic(fmt.Sprintf("array dtype is %s, not bool", d.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&d.data[0])), d.NumElements())
}

// Clone returns a deep copy. The clone shares no memory with the original.
func (d *Dense) Clone() *Dense {
	data := make([]byte, len(d.data))
	copy(data, d.data)
	return &Dense{
		data:   data,
		shape:  d.shape.Clone(),
		stride: append([]int(nil), d.stride...),
		dtype:  d.dtype,
	}
}

// flatIndex converts multi-dimensional indices into a flat element offset.
// Panics on rank mismatch or out-of-range indices.
func (d *Dense) flatIndex(indices []int) int {
	if len(indices) != len(d.shape) {
		panic(fmt.Sprintf("got %d indices for %d-d array", len(indices), len(d.shape)))
	}
	flat := 0
	for i, idx := range indices {
		if idx < 0 || idx >= d.shape[i] {
			panic(fmt.Sprintf("index %d out of range for dimension %d (size %d)", idx, i, d.shape[i]))
		}
		flat += idx * d.stride[i]
	}
	return flat
}
