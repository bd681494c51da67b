package matfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"

	"github.com/rasterlab/raster/internal/tensor"
)

// hdf5Signature opens every HDF5 file. A .mat that starts with it is a
// v7.3 container saved without the usual descriptive text block.
var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Parse reads a MAT v5 element stream.
func Parse(r io.Reader) (*File, error) {
	p := &parser{r: r, order: binary.LittleEndian}

	file := &File{}
	if err := p.parseHeader(&file.Header); err != nil {
		if errors.Is(err, ErrV73Format) {
			return nil, err
		}
		return nil, fmt.Errorf("parse header: %w", err)
	}

	for {
		v, err := p.nextVariable()
		if errors.Is(err, io.EOF) {
			return file, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse variable %d: %w", len(file.Variables), err)
		}
		file.Variables = append(file.Variables, *v)
	}
}

// ParseFile parses a MAT v5 file from disk. For v7.3 files it returns
// ErrV73Format; use ReadFile to fall back to a registered v7.3 reader.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	return Parse(f)
}

type parser struct {
	r     io.Reader
	order binary.ByteOrder
}

func (p *parser) parseHeader(h *Header) error {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	if bytes.Equal(buf[:len(hdf5Signature)], hdf5Signature) {
		return ErrV73Format
	}
	// MAT v4 files have no descriptive text; they begin with the first
	// data element whose leading type word is small, so the opening
	// bytes of a valid v5 banner are never all zero.
	if buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 0 {
		return errors.New("MAT v4 files are not supported")
	}

	h.Text = strings.TrimRight(string(buf[:headerTextSize]), " \x00")

	switch {
	case buf[126] == 'I' && buf[127] == 'M':
		p.order = binary.LittleEndian
	case buf[126] == 'M' && buf[127] == 'I':
		p.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid endian indicator %q", string(buf[126:128]))
	}

	h.Version = p.order.Uint16(buf[124:126])
	if h.Version == versionV73 {
		return ErrV73Format
	}
	if h.Version != versionV5 {
		return fmt.Errorf("unsupported MAT version 0x%04x", h.Version)
	}
	return nil
}

// element is one raw tagged data element.
type element struct {
	mitype uint32
	data   []byte
}

// readElement reads one tagged element, handling the packed small
// element form and the trailing 8-byte alignment. A clean io.EOF on the
// tag word marks the end of the stream.
func (p *parser) readElement() (*element, error) {
	var word uint32
	if err := binary.Read(p.r, p.order, &word); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read element tag: %w", err)
	}

	// Small element: byte count in the upper 16 bits of the tag word,
	// data packed into the remaining four tag bytes.
	if word>>16 != 0 {
		size := int(word >> 16)
		if size > 4 {
			return nil, fmt.Errorf("small element size %d exceeds 4 bytes", size)
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(p.r, buf); err != nil {
			return nil, fmt.Errorf("read small element data: %w", err)
		}
		return &element{mitype: word & 0xFFFF, data: buf[:size]}, nil
	}

	var size uint32
	if err := binary.Read(p.r, p.order, &size); err != nil {
		return nil, fmt.Errorf("read element size: %w", err)
	}
	if size > maxElementSize {
		return nil, fmt.Errorf("element size %d exceeds limit", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return nil, fmt.Errorf("read element data (%d bytes): %w", size, err)
	}

	el := &element{mitype: word, data: data}
	// Compressed variables are written without trailing padding.
	if el.mitype != miCOMPRESSED {
		if err := p.skipPadding(int(size)); err != nil {
			return nil, err
		}
	}
	return el, nil
}

// skipPadding discards the alignment bytes after an element body. EOF
// here is fine: the last element of a stream may omit its padding.
func (p *parser) skipPadding(n int) error {
	pad := (8 - n%8) % 8
	if pad == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, p.r, int64(pad)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("skip padding: %w", err)
	}
	return nil
}

// nextVariable reads one top-level variable, inflating compressed
// elements before decoding.
func (p *parser) nextVariable() (*Variable, error) {
	el, err := p.readElement()
	if err != nil {
		return nil, err
	}

	switch el.mitype {
	case miCOMPRESSED:
		body, err := inflate(el.data)
		if err != nil {
			return nil, fmt.Errorf("inflate variable: %w", err)
		}
		sub := &parser{r: bytes.NewReader(body), order: p.order}
		inner, err := sub.readElement()
		if err != nil {
			return nil, fmt.Errorf("read compressed element: %w", err)
		}
		if inner.mitype != miMATRIX {
			return nil, fmt.Errorf("compressed element has type %d, want miMATRIX", inner.mitype)
		}
		return p.parseMatrix(inner.data)

	case miMATRIX:
		return p.parseMatrix(el.data)

	default:
		return nil, fmt.Errorf("unexpected top-level element type %d", el.mitype)
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = zr.Close()
	}()
	return io.ReadAll(zr)
}

// parseMatrix decodes the body of a miMATRIX element.
func (p *parser) parseMatrix(body []byte) (*Variable, error) {
	m := &parser{r: bytes.NewReader(body), order: p.order}

	flagsEl, err := m.readElement()
	if err != nil {
		return nil, fmt.Errorf("read array flags: %w", err)
	}
	if flagsEl.mitype != miUINT32 || len(flagsEl.data) < 8 {
		return nil, fmt.Errorf("malformed array flags (type %d, %d bytes)", flagsEl.mitype, len(flagsEl.data))
	}
	flags := p.order.Uint32(flagsEl.data[:4])
	nzmax := int(p.order.Uint32(flagsEl.data[4:8]))
	class := flags & 0xFF
	logical := flags&flagLogical != 0
	isComplex := flags&flagComplex != 0

	dims, err := m.readDimensions()
	if err != nil {
		return nil, err
	}
	name, err := m.readName()
	if err != nil {
		return nil, err
	}

	v := &Variable{Name: name}
	switch class {
	case mxCHAR:
		s, err := p.readCharData(m)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		v.Value = s

	case mxCELL:
		items, err := p.readCellData(m, dims)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		v.Value = items

	case mxSTRUCT:
		st, err := p.readStructData(m, dims)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		v.Value = st

	case mxSPARSE:
		d, err := p.readSparseData(m, dims, nzmax, logical, isComplex)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		if d != nil {
			v.Value = d
		}
		v.Imag = isComplex

	case mxDOUBLE, mxSINGLE, mxINT8, mxUINT8, mxINT16, mxUINT16,
		mxINT32, mxUINT32, mxINT64, mxUINT64:
		target, _ := classDType(class, logical)
		prEl, err := m.readElement()
		if err != nil {
			return nil, fmt.Errorf("variable %s: read data: %w", name, err)
		}
		if !hasZeroDim(dims) {
			d, err := p.denseFromStorage(prEl, tensor.Shape(dims), target)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", name, err)
			}
			v.Value = d
		}
		if isComplex {
			if _, err := m.readElement(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("variable %s: read imaginary part: %w", name, err)
			}
			v.Imag = true
		}

	case mxOBJECT:
		return nil, fmt.Errorf("variable %s: MATLAB objects are not supported", name)

	default:
		return nil, fmt.Errorf("variable %s: unsupported array class %d", name, class)
	}

	return v, nil
}

func (p *parser) readDimensions() ([]int, error) {
	el, err := p.readElement()
	if err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if el.mitype != miINT32 {
		return nil, fmt.Errorf("dimensions element has type %d, want miINT32", el.mitype)
	}
	n := len(el.data) / 4
	if n < 1 || n > maxDims {
		return nil, fmt.Errorf("array has %d dimensions", n)
	}
	dims := make([]int, n)
	for i := range dims {
		dims[i] = int(int32(p.order.Uint32(el.data[i*4:])))
	}
	return dims, nil
}

func (p *parser) readName() (string, error) {
	el, err := p.readElement()
	if err != nil {
		return "", fmt.Errorf("read array name: %w", err)
	}
	if el.mitype != miINT8 {
		return "", fmt.Errorf("array name element has type %d, want miINT8", el.mitype)
	}
	return string(el.data), nil
}

// readCharData decodes a character array. Code units are taken in
// storage order, which matches reading order for the usual single-row
// strings.
func (p *parser) readCharData(m *parser) (string, error) {
	el, err := m.readElement()
	if err != nil {
		return "", fmt.Errorf("read character data: %w", err)
	}
	switch el.mitype {
	case miUTF8:
		return string(el.data), nil
	case miINT8, miUINT8:
		return string(el.data), nil
	case miUINT16, miUTF16:
		units := make([]uint16, len(el.data)/2)
		for i := range units {
			units[i] = p.order.Uint16(el.data[i*2:])
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", fmt.Errorf("unsupported character storage type %d", el.mitype)
	}
}

func (p *parser) readCellData(m *parser, dims []int) ([]any, error) {
	n := numElements(dims)
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		el, err := m.readElement()
		if err != nil {
			return nil, fmt.Errorf("read cell item %d: %w", i, err)
		}
		if el.mitype != miMATRIX {
			return nil, fmt.Errorf("cell item %d has type %d, want miMATRIX", i, el.mitype)
		}
		cv, err := p.parseMatrix(el.data)
		if err != nil {
			return nil, fmt.Errorf("cell item %d: %w", i, err)
		}
		items = append(items, cv.Value)
	}
	return items, nil
}

func (p *parser) readStructData(m *parser, dims []int) (*Struct, error) {
	if numElements(dims) != 1 {
		return nil, fmt.Errorf("struct arrays with %d elements are not supported", numElements(dims))
	}

	flEl, err := m.readElement()
	if err != nil {
		return nil, fmt.Errorf("read field name length: %w", err)
	}
	if flEl.mitype != miINT32 || len(flEl.data) < 4 {
		return nil, fmt.Errorf("malformed field name length element (type %d)", flEl.mitype)
	}
	maxLen := int(int32(p.order.Uint32(flEl.data)))

	fnEl, err := m.readElement()
	if err != nil {
		return nil, fmt.Errorf("read field names: %w", err)
	}
	if fnEl.mitype != miINT8 {
		return nil, fmt.Errorf("field names element has type %d, want miINT8", fnEl.mitype)
	}

	st := &Struct{}
	if maxLen <= 0 {
		return st, nil
	}
	for i := 0; i+maxLen <= len(fnEl.data); i += maxLen {
		fname := strings.TrimRight(string(fnEl.data[i:i+maxLen]), "\x00")
		el, err := m.readElement()
		if err != nil {
			return nil, fmt.Errorf("read field %s: %w", fname, err)
		}
		if el.mitype != miMATRIX {
			return nil, fmt.Errorf("field %s has type %d, want miMATRIX", fname, el.mitype)
		}
		fv, err := p.parseMatrix(el.data)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fname, err)
		}
		st.Fields = append(st.Fields, Field{Name: fname, Value: fv.Value})
	}
	return st, nil
}

// readSparseData densifies a sparse matrix from its compressed-column
// representation. Logical sparse arrays may omit the value element, in
// which case every stored entry is one.
func (p *parser) readSparseData(m *parser, dims []int, nzmax int, logical, isComplex bool) (*tensor.Dense, error) {
	if len(dims) != 2 {
		return nil, fmt.Errorf("sparse array has %d dimensions, want 2", len(dims))
	}

	ir, err := p.readInt32Element(m)
	if err != nil {
		return nil, fmt.Errorf("read row indices: %w", err)
	}
	jc, err := p.readInt32Element(m)
	if err != nil {
		return nil, fmt.Errorf("read column pointers: %w", err)
	}

	var vals []float64
	prEl, err := m.readElement()
	switch {
	case err == nil:
		vals, err = p.floatsFromStorage(prEl)
		if err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		if isComplex {
			if _, err := m.readElement(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read imaginary part: %w", err)
			}
		}
	case errors.Is(err, io.EOF) && logical:
		// Stored entries default to true.
	default:
		return nil, fmt.Errorf("read values: %w", err)
	}

	rows, cols := dims[0], dims[1]
	if rows <= 0 || cols <= 0 {
		return nil, nil
	}
	if len(jc) != cols+1 {
		return nil, fmt.Errorf("column pointer array has %d entries, want %d", len(jc), cols+1)
	}

	dtype := tensor.Float64
	if logical {
		dtype = tensor.Bool
	}
	out, err := tensor.New(tensor.Shape{rows, cols}, dtype)
	if err != nil {
		return nil, err
	}
	for j := 0; j < cols; j++ {
		for k := jc[j]; k < jc[j+1]; k++ {
			if k < 0 || int(k) >= len(ir) || int(k) >= nzmax && nzmax > 0 {
				return nil, fmt.Errorf("entry index %d out of range (nzmax %d)", k, nzmax)
			}
			val := 1.0
			if int(k) < len(vals) {
				val = vals[k]
			}
			row := int(ir[k])
			if row < 0 || row >= rows {
				return nil, fmt.Errorf("row index %d out of range (%d rows)", row, rows)
			}
			out.SetFloat64(val, row, j)
		}
	}
	return out, nil
}

func (p *parser) readInt32Element(m *parser) ([]int32, error) {
	el, err := m.readElement()
	if err != nil {
		return nil, err
	}
	if el.mitype != miINT32 {
		return nil, fmt.Errorf("element has type %d, want miINT32", el.mitype)
	}
	out := make([]int32, len(el.data)/4)
	for i := range out {
		out[i] = int32(p.order.Uint32(el.data[i*4:]))
	}
	return out, nil
}

// denseFromStorage converts a numeric storage element into a row-major
// tensor of the array's declared class, widening narrow storage and
// re-laying MATLAB's column-major order.
func (p *parser) denseFromStorage(el *element, shape tensor.Shape, target tensor.DataType) (*tensor.Dense, error) {
	size, widened, ok := storageDType(el.mitype)
	if !ok {
		return nil, fmt.Errorf("unsupported numeric storage type %d", el.mitype)
	}
	if len(el.data) != shape.NumElements()*size {
		return nil, fmt.Errorf("storage holds %d bytes, shape %s needs %d",
			len(el.data), shape, shape.NumElements()*size)
	}

	raw := el.data
	if p.order == binary.BigEndian && size > 1 {
		tensor.ByteSwap(raw, size)
	}
	buf, err := widenStorage(raw, el.mitype)
	if err != nil {
		return nil, err
	}
	d, err := tensor.FromBytesColMajor(buf, shape, widened)
	if err != nil {
		return nil, err
	}
	if widened != target {
		d = d.Convert(target)
	}
	return d, nil
}

// floatsFromStorage decodes a numeric storage element into a flat
// float64 slice, used for sparse values where the length is implied by
// the element itself.
func (p *parser) floatsFromStorage(el *element) ([]float64, error) {
	size, widened, ok := storageDType(el.mitype)
	if !ok {
		return nil, fmt.Errorf("unsupported numeric storage type %d", el.mitype)
	}
	n := len(el.data) / size
	if n == 0 {
		return nil, nil
	}
	raw := el.data[:n*size]
	if p.order == binary.BigEndian && size > 1 {
		tensor.ByteSwap(raw, size)
	}
	buf, err := widenStorage(raw, el.mitype)
	if err != nil {
		return nil, err
	}
	d, err := tensor.FromBytes(buf, tensor.Shape{n}, widened)
	if err != nil {
		return nil, err
	}
	return d.Floats(), nil
}

// storageDType maps a storage element type to its width and the dtype
// its bytes widen to.
func storageDType(mitype uint32) (size int, dt tensor.DataType, ok bool) {
	switch mitype {
	case miINT8:
		return 1, tensor.Int32, true
	case miUINT8:
		return 1, tensor.Uint8, true
	case miINT16, miUINT16:
		return 2, tensor.Int32, true
	case miINT32:
		return 4, tensor.Int32, true
	case miUINT32:
		return 4, tensor.Int64, true
	case miSINGLE:
		return 4, tensor.Float32, true
	case miDOUBLE:
		return 8, tensor.Float64, true
	case miINT64:
		return 8, tensor.Int64, true
	case miUINT64:
		return 8, tensor.Float64, true
	}
	return 0, 0, false
}

// classDType is the element type a numeric class decodes to.
func classDType(class uint32, logical bool) (tensor.DataType, bool) {
	if logical {
		return tensor.Bool, true
	}
	switch class {
	case mxDOUBLE:
		return tensor.Float64, true
	case mxSINGLE:
		return tensor.Float32, true
	case mxINT8, mxINT16, mxINT32, mxUINT16:
		return tensor.Int32, true
	case mxUINT8:
		return tensor.Uint8, true
	case mxUINT32, mxINT64:
		return tensor.Int64, true
	case mxUINT64:
		return tensor.Float64, true
	}
	return 0, false
}

// widenStorage converts little-endian storage bytes to the byte layout
// of the widened element type. Storage that already matches a supported
// width passes through untouched.
func widenStorage(raw []byte, mitype uint32) ([]byte, error) {
	switch mitype {
	case miUINT8, miINT32, miSINGLE, miDOUBLE, miINT64:
		return raw, nil

	case miINT8:
		out := make([]byte, len(raw)*4)
		for i, b := range raw {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(int8(b))))
		}
		return out, nil

	case miINT16:
		n := len(raw) / 2
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
		return out, nil

	case miUINT16:
		n := len(raw) / 2
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(raw[i*2:])
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
		return out, nil

	case miUINT32:
		n := len(raw) / 4
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint32(raw[i*4:])
			binary.LittleEndian.PutUint64(out[i*8:], uint64(int64(v)))
		}
		return out, nil

	case miUINT64:
		n := len(raw) / 8
		out := make([]byte, n*8)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint64(raw[i*8:])
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(float64(v)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported numeric storage type %d", mitype)
}

func hasZeroDim(dims []int) bool {
	for _, d := range dims {
		if d <= 0 {
			return true
		}
	}
	return false
}

func numElements(dims []int) int {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}
