package npy

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rasterlab/raster/internal/tensor"
)

// dtypeInfo is the decoded form of a NumPy descr string.
type dtypeInfo struct {
	dtype  tensor.DataType // element type after widening
	kind   byte            // numpy kind letter: f, i, u, b
	size   int             // storage element size in bytes
	big    bool            // big-endian storage
	object bool            // pickled object payload
}

// parseDescr decodes descr strings like "<f8", ">i4", "|u1", or "|O".
// Narrow integer storage widens to the nearest supported element type.
func parseDescr(descr string) (dtypeInfo, error) {
	s := descr
	var big bool
	if s != "" {
		switch s[0] {
		case '<', '=', '|':
			s = s[1:]
		case '>':
			big = true
			s = s[1:]
		}
	}
	if s == "" {
		return dtypeInfo{}, fmt.Errorf("unsupported descr %q", descr)
	}
	if s[0] == 'O' {
		return dtypeInfo{object: true}, nil
	}

	kind := s[0]
	size, err := strconv.Atoi(s[1:])
	if err != nil {
		return dtypeInfo{}, fmt.Errorf("unsupported descr %q", descr)
	}

	info := dtypeInfo{kind: kind, size: size, big: big}
	switch {
	case kind == 'f' && size == 4:
		info.dtype = tensor.Float32
	case kind == 'f' && size == 8:
		info.dtype = tensor.Float64
	case kind == 'i' && size == 1, kind == 'i' && size == 2, kind == 'i' && size == 4:
		info.dtype = tensor.Int32
	case kind == 'i' && size == 8:
		info.dtype = tensor.Int64
	case kind == 'u' && size == 1:
		info.dtype = tensor.Uint8
	case kind == 'u' && size == 2:
		info.dtype = tensor.Int32
	case kind == 'u' && size == 4:
		info.dtype = tensor.Int64
	case kind == 'u' && size == 8:
		info.dtype = tensor.Float64
	case kind == 'b' && size == 1:
		info.dtype = tensor.Bool
	default:
		return dtypeInfo{}, fmt.Errorf("unsupported descr %q", descr)
	}
	return info, nil
}

// widen converts raw storage bytes (already little-endian) into the
// target element width. Storage that matches a supported element type
// passes through untouched.
func widen(raw []byte, info dtypeInfo) ([]byte, error) {
	switch {
	case info.kind == 'f',
		info.kind == 'b',
		info.kind == 'i' && info.size >= 4,
		info.kind == 'u' && info.size == 1:
		return raw, nil
	}

	n := len(raw) / info.size
	out := make([]byte, n*info.dtype.Size())
	switch {
	case info.kind == 'i' && info.size == 1:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(int8(raw[i]))))
		}
	case info.kind == 'i' && info.size == 2:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
	case info.kind == 'u' && info.size == 2:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(raw[i*2:])
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
	case info.kind == 'u' && info.size == 4:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint32(raw[i*4:])
			binary.LittleEndian.PutUint64(out[i*8:], uint64(int64(v)))
		}
	case info.kind == 'u' && info.size == 8:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint64(raw[i*8:])
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(float64(v)))
		}
	default:
		return nil, fmt.Errorf("unsupported storage width %d for kind %q", info.size, info.kind)
	}
	return out, nil
}

// parseHeaderDict parses the Python dict literal from the .npy preamble,
// e.g. {'descr': '<f8', 'fortran_order': False, 'shape': (170, 5000), }.
func parseHeaderDict(s string) (descr string, fortran bool, shape tensor.Shape, err error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", false, nil, fmt.Errorf("header is not a dict literal: %q", s)
	}

	var haveDescr, haveFortran, haveShape bool
	for _, item := range splitTopLevel(s[1 : len(s)-1]) {
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			return "", false, nil, fmt.Errorf("malformed header entry %q", item)
		}
		key = strings.Trim(strings.TrimSpace(key), "'\"")
		value = strings.TrimSpace(value)

		switch key {
		case "descr":
			descr, err = unquote(value)
			if err != nil {
				return "", false, nil, fmt.Errorf("descr: %w", err)
			}
			haveDescr = true
		case "fortran_order":
			switch value {
			case "True":
				fortran = true
			case "False":
				fortran = false
			default:
				return "", false, nil, fmt.Errorf("fortran_order: unexpected value %q", value)
			}
			haveFortran = true
		case "shape":
			shape, err = parsePyTuple(value)
			if err != nil {
				return "", false, nil, fmt.Errorf("shape: %w", err)
			}
			haveShape = true
		default:
			return "", false, nil, fmt.Errorf("unexpected header field %q", key)
		}
	}

	if !haveDescr || !haveFortran || !haveShape {
		return "", false, nil, fmt.Errorf("header missing required fields: %q", s)
	}
	return descr, fortran, shape, nil
}

// splitTopLevel splits a dict body on commas that sit outside quotes,
// parentheses, and brackets. Empty items (trailing comma) are dropped.
func splitTopLevel(s string) []string {
	var items []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			if item := strings.TrimSpace(s[start:i]); item != "" {
				items = append(items, item)
			}
			start = i + 1
		}
	}
	if item := strings.TrimSpace(s[start:]); item != "" {
		items = append(items, item)
	}
	return items
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("expected quoted string, got %q", s)
	}
	return s[1 : len(s)-1], nil
}

// parsePyTuple parses shape tuples like "(170, 5000)", "(5,)", and "()".
func parsePyTuple(s string) (tensor.Shape, error) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("expected tuple, got %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return tensor.Shape{}, nil
	}

	shape := tensor.Shape{}
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue // trailing comma in 1-tuples
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid shape entry %q", part)
		}
		shape = append(shape, n)
	}
	return shape, nil
}
