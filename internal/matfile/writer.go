package matfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"

	"github.com/rasterlab/raster/internal/tensor"
)

// WriteOptions controls MAT-file output.
type WriteOptions struct {
	// Compress wraps each variable in a zlib-deflated element, the
	// default layout MATLAB itself saves.
	Compress bool
}

// Write emits vars as an uncompressed little-endian Level 5 stream.
//
// Supported variable values are *tensor.Dense (numeric and logical
// arrays), string (character arrays), *Struct, []any (cell arrays) and
// nil (empty arrays). One-dimensional tensors are written as row
// vectors, matching how MATLAB represents vectors.
func Write(w io.Writer, vars []Variable) error {
	return WriteWithOptions(w, vars, WriteOptions{})
}

// WriteWithOptions emits vars as a Level 5 stream.
func WriteWithOptions(w io.Writer, vars []Variable, opts WriteOptions) error {
	if err := writeFileHeader(w); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range vars {
		if err := writeVariable(w, &vars[i], opts.Compress); err != nil {
			return fmt.Errorf("write variable %s: %w", vars[i].Name, err)
		}
	}
	return nil
}

// WriteFile writes an uncompressed MAT-file to disk.
func WriteFile(path string, vars []Variable) error {
	return WriteFileWithOptions(path, vars, WriteOptions{})
}

// WriteFileWithOptions writes a MAT-file to disk.
func WriteFileWithOptions(path string, vars []Variable, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := WriteWithOptions(f, vars, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func writeFileHeader(w io.Writer) error {
	buf := make([]byte, headerSize)
	text := fmt.Sprintf("MATLAB 5.0 MAT-file, Platform: %s, Created on: %s",
		runtime.GOOS, time.Now().Format(time.ANSIC))
	if len(text) > headerTextSize {
		text = text[:headerTextSize]
	}
	copy(buf, text)
	for i := len(text); i < headerTextSize; i++ {
		buf[i] = ' '
	}
	binary.LittleEndian.PutUint16(buf[124:], versionV5)
	buf[126], buf[127] = 'I', 'M'

	_, err := w.Write(buf)
	return err
}

func writeVariable(w io.Writer, v *Variable, compress bool) error {
	var body bytes.Buffer
	if err := writeMatrixValue(&body, v.Name, v.Value); err != nil {
		return err
	}

	if !compress {
		return writeElement(w, miMATRIX, body.Bytes())
	}

	var matrix bytes.Buffer
	if err := writeElement(&matrix, miMATRIX, body.Bytes()); err != nil {
		return err
	}
	var packed bytes.Buffer
	zw := zlib.NewWriter(&packed)
	if _, err := zw.Write(matrix.Bytes()); err != nil {
		return fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("deflate: %w", err)
	}

	// Compressed elements carry no trailing padding.
	var tag [8]byte
	binary.LittleEndian.PutUint32(tag[:4], miCOMPRESSED)
	binary.LittleEndian.PutUint32(tag[4:], uint32(packed.Len()))
	if _, err := w.Write(tag[:]); err != nil {
		return err
	}
	_, err := w.Write(packed.Bytes())
	return err
}

func writeMatrixValue(b *bytes.Buffer, name string, value any) error {
	switch val := value.(type) {
	case *tensor.Dense:
		return writeNumericMatrix(b, name, val)
	case string:
		return writeCharMatrix(b, name, val)
	case *Struct:
		return writeStructMatrix(b, name, val)
	case []any:
		return writeCellMatrix(b, name, val)
	case nil:
		return writeEmptyMatrix(b, name)
	default:
		return fmt.Errorf("unsupported variable value type %T", value)
	}
}

func writeNumericMatrix(b *bytes.Buffer, name string, d *tensor.Dense) error {
	class, mitype, logical, err := dtypeClass(d.DType())
	if err != nil {
		return err
	}
	data := d
	if logical {
		data = d.Convert(tensor.Uint8)
	}

	dims := d.Shape()
	if len(dims) == 1 {
		dims = tensor.Shape{1, dims[0]}
	}

	writeArrayFlags(b, class, logical, 0)
	writeDimensions(b, dims)
	writeNameElement(b, name)
	return writeElement(b, mitype, toColMajor(data))
}

func writeCharMatrix(b *bytes.Buffer, name string, s string) error {
	units := utf16.Encode([]rune(s))
	data := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(data[i*2:], u)
	}

	writeArrayFlags(b, mxCHAR, false, 0)
	writeDimensions(b, tensor.Shape{1, len(units)})
	writeNameElement(b, name)
	return writeElement(b, miUINT16, data)
}

func writeStructMatrix(b *bytes.Buffer, name string, st *Struct) error {
	writeArrayFlags(b, mxSTRUCT, false, 0)
	writeDimensions(b, tensor.Shape{1, 1})
	writeNameElement(b, name)

	maxLen := 1
	for _, f := range st.Fields {
		if len(f.Name)+1 > maxLen {
			maxLen = len(f.Name) + 1
		}
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(maxLen))
	if err := writeElement(b, miINT32, lenBuf); err != nil {
		return err
	}

	names := make([]byte, maxLen*len(st.Fields))
	for i, f := range st.Fields {
		copy(names[i*maxLen:], f.Name)
	}
	if err := writeElement(b, miINT8, names); err != nil {
		return err
	}

	for _, f := range st.Fields {
		var body bytes.Buffer
		if err := writeMatrixValue(&body, "", f.Value); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if err := writeElement(b, miMATRIX, body.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeCellMatrix(b *bytes.Buffer, name string, items []any) error {
	writeArrayFlags(b, mxCELL, false, 0)
	writeDimensions(b, tensor.Shape{1, len(items)})
	writeNameElement(b, name)

	for i, item := range items {
		var body bytes.Buffer
		if err := writeMatrixValue(&body, "", item); err != nil {
			return fmt.Errorf("cell item %d: %w", i, err)
		}
		if err := writeElement(b, miMATRIX, body.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeEmptyMatrix(b *bytes.Buffer, name string) error {
	writeArrayFlags(b, mxDOUBLE, false, 0)
	writeDimensions(b, tensor.Shape{0, 0})
	writeNameElement(b, name)
	return writeElement(b, miDOUBLE, nil)
}

func writeArrayFlags(b *bytes.Buffer, class uint32, logical bool, nzmax int) {
	flags := class
	if logical {
		flags |= flagLogical
	}
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, flags)
	binary.LittleEndian.PutUint32(data[4:], uint32(nzmax))
	_ = writeElement(b, miUINT32, data)
}

func writeDimensions(b *bytes.Buffer, dims tensor.Shape) {
	data := make([]byte, len(dims)*4)
	for i, d := range dims {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(d)))
	}
	_ = writeElement(b, miINT32, data)
}

func writeNameElement(b *bytes.Buffer, name string) {
	_ = writeElement(b, miINT8, []byte(name))
}

// writeElement emits a normal-format tagged element with trailing
// 8-byte alignment.
func writeElement(w io.Writer, mitype uint32, data []byte) error {
	var tag [8]byte
	binary.LittleEndian.PutUint32(tag[:4], mitype)
	binary.LittleEndian.PutUint32(tag[4:], uint32(len(data)))
	if _, err := w.Write(tag[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

// dtypeClass maps an element type to the MATLAB class and storage type
// it is written as.
func dtypeClass(dt tensor.DataType) (class, mitype uint32, logical bool, err error) {
	switch dt {
	case tensor.Float64:
		return mxDOUBLE, miDOUBLE, false, nil
	case tensor.Float32:
		return mxSINGLE, miSINGLE, false, nil
	case tensor.Int32:
		return mxINT32, miINT32, false, nil
	case tensor.Int64:
		return mxINT64, miINT64, false, nil
	case tensor.Uint8:
		return mxUINT8, miUINT8, false, nil
	case tensor.Bool:
		return mxUINT8, miUINT8, true, nil
	default:
		return 0, 0, false, fmt.Errorf("unsupported element type %s", dt)
	}
}

// toColMajor re-lays row-major tensor bytes into MATLAB's column-major
// element order.
func toColMajor(d *tensor.Dense) []byte {
	src := d.Data()
	out := make([]byte, len(src))
	if d.Ndim() <= 1 {
		copy(out, src)
		return out
	}

	shape := d.Shape()
	strides := shape.ComputeStrides()
	es := d.DType().Size()
	idx := make([]int, len(shape))
	for pos := 0; pos < d.NumElements(); pos++ {
		flat := 0
		for ax, i := range idx {
			flat += i * strides[ax]
		}
		copy(out[pos*es:(pos+1)*es], src[flat*es:(flat+1)*es])

		// Advance column-major: first axis varies fastest.
		for ax := 0; ax < len(idx); ax++ {
			idx[ax]++
			if idx[ax] < shape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
	return out
}
