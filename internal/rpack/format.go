// Package rpack implements the .rpk container used to cache normalized
// activity datasets on disk.
//
// An .rpk file holds named dense arrays behind a JSON header:
//
//	0x00-0x03  magic "RPAK"
//	0x04-0x07  format version (uint32, little-endian)
//	0x08-0x0B  flags (uint32, reserved)
//	0x0C-0x0F  reserved
//	0x10-0x17  header size (uint64)
//	0x18-0x1F  data size (uint64)
//	0x20-0x3F  SHA-256 checksum of the data section
//	0x40-...   JSON header, padded to a 64-byte boundary
//	...        tensor data, tightly packed in header order
//
// The checksum covers the data section only, so a reader can verify
// payload integrity before handing arrays to callers.
package rpack

import (
	"time"

	"github.com/rasterlab/raster/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "RPAK"
	FormatVersion   = 1
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // checksum offset in the fixed header
	HeaderAlignment = 64   // tensor data starts on a 64-byte boundary
)

// Data type string constants used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt32   = "int32"
	DTypeInt64   = "int64"
	DTypeUint8   = "uint8"
	DTypeBool    = "bool"
)

// Header is the JSON header of an .rpk file.
type Header struct {
	FormatVersion int          `json:"format_version"`
	CreatedAt     time.Time    `json:"created_at"`
	Source        string       `json:"source,omitempty"` // path of the activity file this cache was built from
	Tensors       []TensorMeta `json:"tensors"`
}

// TensorMeta describes one named array in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// NamedTensor pairs an array with the name it is stored under.
type NamedTensor struct {
	Name  string
	Dense *tensor.Dense
}

// dtypeToString converts tensor.DataType to its header string.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Int32:
		return DTypeInt32
	case tensor.Int64:
		return DTypeInt64
	case tensor.Uint8:
		return DTypeUint8
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype converts a header string back to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeInt64:
		return tensor.Int64, true
	case DTypeUint8:
		return tensor.Uint8, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
