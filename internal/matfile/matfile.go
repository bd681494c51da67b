// Package matfile reads and writes MATLAB Level 5 MAT-files.
//
// A Level 5 file is a 128-byte descriptive header followed by a
// sequence of tagged data elements, one per stored variable. The
// package decodes numeric, logical, character, cell, scalar-struct and
// sparse arrays, transparently inflating zlib-compressed variables and
// handling both byte orders. Numeric payloads are re-laid from MATLAB's
// column-major storage into row-major tensors, with the storage type
// upconverted to the array's declared class.
//
// MAT v7.3 files are HDF5 containers with an entirely different layout.
// Parse reports ErrV73Format for them; ReadFile forwards to a reader
// registered through RegisterV73 when one is available (importing the
// matv73 package registers the HDF5-backed implementation).
package matfile

import "errors"

const (
	headerSize     = 128
	headerTextSize = 116

	versionV5  = 0x0100
	versionV73 = 0x0200

	// maxElementSize bounds a single data element; anything larger is
	// treated as corruption rather than allocated.
	maxElementSize = 1 << 31

	// maxDims bounds the dimensions array of a single variable.
	maxDims = 32
)

// MAT-file data element types.
const (
	miINT8       uint32 = 1
	miUINT8      uint32 = 2
	miINT16      uint32 = 3
	miUINT16     uint32 = 4
	miINT32      uint32 = 5
	miUINT32     uint32 = 6
	miSINGLE     uint32 = 7
	miDOUBLE     uint32 = 9
	miINT64      uint32 = 12
	miUINT64     uint32 = 13
	miMATRIX     uint32 = 14
	miCOMPRESSED uint32 = 15
	miUTF8       uint32 = 16
	miUTF16      uint32 = 17
	miUTF32      uint32 = 18
)

// MATLAB array classes, stored in the low byte of the array flags word.
const (
	mxCELL   uint32 = 1
	mxSTRUCT uint32 = 2
	mxOBJECT uint32 = 3
	mxCHAR   uint32 = 4
	mxSPARSE uint32 = 5
	mxDOUBLE uint32 = 6
	mxSINGLE uint32 = 7
	mxINT8   uint32 = 8
	mxUINT8  uint32 = 9
	mxINT16  uint32 = 10
	mxUINT16 uint32 = 11
	mxINT32  uint32 = 12
	mxUINT32 uint32 = 13
	mxINT64  uint32 = 14
	mxUINT64 uint32 = 15
)

// Array flag bits in the array flags word.
const (
	flagLogical uint32 = 0x0200
	flagGlobal  uint32 = 0x0400
	flagComplex uint32 = 0x0800
)

var (
	// ErrV73Format reports a MAT v7.3 file, which is an HDF5 container
	// rather than a Level 5 element stream.
	ErrV73Format = errors.New("MAT v7.3 (HDF5) format")

	// ErrV73Unavailable reports a v7.3 file encountered with no v7.3
	// reader registered.
	ErrV73Unavailable = errors.New(`MAT v7.3 requires the HDF5 reader: import "github.com/rasterlab/raster/matv73"`)
)

// File is a parsed MAT-file.
type File struct {
	Header    Header
	Variables []Variable
}

// Var returns the named top-level variable.
func (f *File) Var(name string) (*Variable, bool) {
	for i := range f.Variables {
		if f.Variables[i].Name == name {
			return &f.Variables[i], true
		}
	}
	return nil, false
}

// Header is the descriptive preamble of a MAT-file.
type Header struct {
	// Text is the human-readable creation banner.
	Text string
	// Version is the raw version word (0x0100 for Level 5).
	Version uint16
}

// Variable is one named top-level array.
//
// Value holds one of:
//   - *tensor.Dense for numeric, logical and sparse arrays
//   - string for character arrays
//   - *Struct for scalar structs
//   - []any for cell arrays
//   - nil for empty arrays
type Variable struct {
	Name  string
	Value any

	// Imag is set when the stored array declared an imaginary part;
	// only the real part is retained.
	Imag bool
}

// Struct is a scalar MATLAB struct with fields in storage order.
type Struct struct {
	Fields []Field
}

// Field is a single struct field.
type Field struct {
	Name  string
	Value any
}

// Get returns the named field value.
func (s *Struct) Get(name string) (any, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return s.Fields[i].Value, true
		}
	}
	return nil, false
}
