package tensor

import "fmt"

// FromSlice creates a Dense from a typed slice and shape.
// The values are copied; the slice length must match the shape.
//
// Example:
//
//	t, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
func FromSlice[T DType](values []T, shape Shape) (*Dense, error) {
	var dummy T
	dtype := inferDataType(dummy)

	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s (%d elements)",
			len(values), shape, shape.NumElements())
	}

	d, err := New(shape, dtype)
	if err != nil {
		return nil, err
	}

	switch src := any(values).(type) {
	case []float32:
		copy(d.AsFloat32(), src)
	case []float64:
		copy(d.AsFloat64(), src)
	case []int32:
		copy(d.AsInt32(), src)
	case []int64:
		copy(d.AsInt64(), src)
	case []uint8:
		copy(d.AsUint8(), src)
	case []bool:
		copy(d.AsBool(), src)
	}
	return d, nil
}

// FromBytes wraps a row-major element buffer as a Dense. The buffer is
// retained, not copied; the caller must not reuse it afterwards.
func FromBytes(data []byte, shape Shape, dtype DataType) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("buffer is %d bytes, shape %s of %s needs %d",
			len(data), shape, dtype, want)
	}
	return &Dense{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// FromBytesColMajor builds a Dense from a column-major element buffer,
// re-permuting it into row-major order. NumPy Fortran-order payloads and
// MAT-file variables are stored this way.
func FromBytesColMajor(data []byte, shape Shape, dtype DataType) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	n := shape.NumElements()
	es := dtype.Size()
	if len(data) != n*es {
		return nil, fmt.Errorf("buffer is %d bytes, shape %s of %s needs %d",
			len(data), shape, dtype, n*es)
	}
	if len(shape) <= 1 {
		// 0-d and 1-d layouts are order-independent.
		return FromBytes(data, shape, dtype)
	}

	// Column-major strides, in elements: first axis fastest.
	fstride := make([]int, len(shape))
	fstride[0] = 1
	for i := 1; i < len(shape); i++ {
		fstride[i] = fstride[i-1] * shape[i-1]
	}

	out := make([]byte, len(data))
	idx := make([]int, len(shape))
	for dst := 0; dst < n; dst++ {
		src := 0
		for i, ix := range idx {
			src += ix * fstride[i]
		}
		copy(out[dst*es:(dst+1)*es], data[src*es:(src+1)*es])

		// Advance the row-major index, last axis fastest.
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return FromBytes(out, shape, dtype)
}

// ByteSwap reverses the byte order of each size-byte word in place.
// Format readers use it to normalize big-endian payloads before wrapping
// them with FromBytes.
func ByteSwap(data []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(data); i += size {
		for j, k := i, i+size-1; j < k; j, k = j+1, k-1 {
			data[j], data[k] = data[k], data[j]
		}
	}
}
