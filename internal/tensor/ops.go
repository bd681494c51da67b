package tensor

import "fmt"

// Float64At returns the element at the given indices converted to float64.
// Panics on rank mismatch or out-of-range indices.
func (d *Dense) Float64At(indices ...int) float64 {
	flat := d.flatIndex(indices)
	switch d.dtype {
	case Float32:
		return float64(d.AsFloat32()[flat])
	case Float64:
		return d.AsFloat64()[flat]
	case Int32:
		return float64(d.AsInt32()[flat])
	case Int64:
		return float64(d.AsInt64()[flat])
	case Uint8:
		return float64(d.AsUint8()[flat])
	case Bool:
		if d.AsBool()[flat] {
			return 1
		}
		return 0
	default:
		panic("unknown data type")
	}
}

// SetFloat64 stores v at the given indices, converting to the array dtype.
// Panics on rank mismatch or out-of-range indices.
func (d *Dense) SetFloat64(v float64, indices ...int) {
	flat := d.flatIndex(indices)
	switch d.dtype {
	case Float32:
		d.AsFloat32()[flat] = float32(v)
	case Float64:
		d.AsFloat64()[flat] = v
	case Int32:
		d.AsInt32()[flat] = int32(v)
	case Int64:
		d.AsInt64()[flat] = int64(v)
	case Uint8:
		d.AsUint8()[flat] = uint8(v)
	case Bool:
		d.AsBool()[flat] = v != 0
	default:
		panic("unknown data type")
	}
}

// Floats returns the whole array converted to a fresh []float64 in
// row-major order. Derivation math runs on these views.
func (d *Dense) Floats() []float64 {
	out := make([]float64, d.NumElements())
	switch d.dtype {
	case Float32:
		for i, v := range d.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, d.AsFloat64())
	case Int32:
		for i, v := range d.AsInt32() {
			out[i] = float64(v)
		}
	case Int64:
		for i, v := range d.AsInt64() {
			out[i] = float64(v)
		}
	case Uint8:
		for i, v := range d.AsUint8() {
			out[i] = float64(v)
		}
	case Bool:
		for i, v := range d.AsBool() {
			if v {
				out[i] = 1
			}
		}
	}
	return out
}

// Reshape returns a view with a new shape. The element count must match;
// the result shares the underlying buffer.
func (d *Dense) Reshape(shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != d.NumElements() {
		return nil, fmt.Errorf("cannot reshape %s into %s: element counts differ", d.shape, shape)
	}
	return &Dense{
		data:   d.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  d.dtype,
	}, nil
}

// FlattenTrailing collapses all axes after the first into one, turning
// (N, T, K) into (N, T*K). Arrays with fewer than two dimensions are
// returned unchanged. The result shares the underlying buffer.
func (d *Dense) FlattenTrailing() *Dense {
	if d.Ndim() < 2 {
		return d
	}
	rest := 1
	for _, dim := range d.shape[1:] {
		rest *= dim
	}
	out, _ := d.Reshape(Shape{d.shape[0], rest})
	return out
}

// Squeeze returns a view with all size-1 dimensions removed.
// The result shares the underlying buffer.
func (d *Dense) Squeeze() *Dense {
	squeezed := d.shape.Squeeze()
	if squeezed.Equal(d.shape) {
		return d
	}
	out, _ := d.Reshape(squeezed)
	return out
}

// Transpose2D returns the transpose of a 2D array. The data is copied.
func (d *Dense) Transpose2D() (*Dense, error) {
	if d.Ndim() != 2 {
		return nil, fmt.Errorf("transpose requires a 2D array, got %s", d.shape)
	}
	rows, cols := d.shape[0], d.shape[1]
	es := d.dtype.Size()
	out := make([]byte, len(d.data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			src := (r*cols + c) * es
			dst := (c*rows + r) * es
			copy(out[dst:dst+es], d.data[src:src+es])
		}
	}
	return FromBytes(out, Shape{cols, rows}, d.dtype)
}

// Convert returns a copy of the array converted to the target dtype.
// Values pass through float64; booleans map to 0/1 and back via != 0.
func (d *Dense) Convert(target DataType) *Dense {
	if target == d.dtype {
		return d.Clone()
	}
	out, err := New(d.shape, target)
	if err != nil {
		panic(err) // receiver shape is always valid
	}
	vals := d.Floats()
	switch target {
	case Float32:
		dst := out.AsFloat32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case Float64:
		copy(out.AsFloat64(), vals)
	case Int32:
		dst := out.AsInt32()
		for i, v := range vals {
			dst[i] = int32(v)
		}
	case Int64:
		dst := out.AsInt64()
		for i, v := range vals {
			dst[i] = int64(v)
		}
	case Uint8:
		dst := out.AsUint8()
		for i, v := range vals {
			dst[i] = uint8(v)
		}
	case Bool:
		dst := out.AsBool()
		for i, v := range vals {
			dst[i] = v != 0
		}
	}
	return out
}

// ScaleTrailing multiplies element [..., j] by scale[j], rescaling the
// trailing axis. The result is a fresh float64 array; the trailing
// dimension must match the scale vector length.
func (d *Dense) ScaleTrailing(scale []float64) (*Dense, error) {
	if d.Ndim() == 0 {
		return nil, fmt.Errorf("cannot scale a 0-d array")
	}
	k := d.shape[d.Ndim()-1]
	if k != len(scale) {
		return nil, fmt.Errorf("trailing dimension is %d, scale vector has %d entries", k, len(scale))
	}
	vals := d.Floats()
	for i := range vals {
		vals[i] *= scale[i%k]
	}
	return FromSlice(vals, d.shape)
}

// StackColumns stacks equal-length vectors as the columns of a new
// (n, len(cols)) float64 array.
func StackColumns(cols ...[]float64) (*Dense, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns to stack")
	}
	n := len(cols[0])
	for i, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf("column %d has %d entries, column 0 has %d", i, len(col), n)
		}
	}
	out, err := New(Shape{n, len(cols)}, Float64)
	if err != nil {
		return nil, err
	}
	dst := out.AsFloat64()
	for j, col := range cols {
		for i, v := range col {
			dst[i*len(cols)+j] = v
		}
	}
	return out, nil
}
