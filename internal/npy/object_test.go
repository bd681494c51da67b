package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rasterlab/raster/internal/tensor"
)

// pickleWriter assembles protocol 3 pickle streams mirroring the opcode
// sequences np.save emits for object arrays.
type pickleWriter struct {
	buf bytes.Buffer
}

func buildPickle(emit func(p *pickleWriter)) []byte {
	p := &pickleWriter{}
	p.buf.Write([]byte{0x80, 3}) // PROTO 3
	emit(p)
	p.buf.WriteByte('.') // STOP
	return p.buf.Bytes()
}

func (p *pickleWriter) op(b byte) { p.buf.WriteByte(b) }

func (p *pickleWriter) global(module, name string) {
	p.op('c')
	p.buf.WriteString(module + "\n" + name + "\n")
}

func (p *pickleWriter) pyInt(n int) {
	if n >= 0 && n < 256 {
		p.op('K') // BININT1
		p.op(byte(n))
		return
	}
	p.op('J') // BININT
	_ = binary.Write(&p.buf, binary.LittleEndian, int32(n))
}

func (p *pickleWriter) pyFloat(f float64) {
	p.op('G') // BINFLOAT, big-endian
	_ = binary.Write(&p.buf, binary.BigEndian, math.Float64bits(f))
}

func (p *pickleWriter) pyStr(s string) {
	p.op('X') // BINUNICODE
	_ = binary.Write(&p.buf, binary.LittleEndian, uint32(len(s)))
	p.buf.WriteString(s)
}

func (p *pickleWriter) pyBytes(b []byte) {
	p.op('C') // SHORT_BINBYTES
	p.op(byte(len(b)))
	p.buf.Write(b)
}

func (p *pickleWriter) none() { p.op('N') }

func (p *pickleWriter) pyBool(v bool) {
	if v {
		p.op(0x88) // NEWTRUE
	} else {
		p.op(0x89) // NEWFALSE
	}
}

func (p *pickleWriter) shapeTuple(dims ...int) {
	switch len(dims) {
	case 0:
		p.op(')') // EMPTY_TUPLE
	case 1:
		p.pyInt(dims[0])
		p.op(0x85) // TUPLE1
	case 2:
		p.pyInt(dims[0])
		p.pyInt(dims[1])
		p.op(0x86) // TUPLE2
	default:
		p.op('(')
		for _, d := range dims {
			p.pyInt(d)
		}
		p.op('t')
	}
}

// dtype emits numpy.dtype(kind, 0, 1) plus the __setstate__ call that
// carries the byte order.
func (p *pickleWriter) dtype(kind, byteorder string) {
	p.global("numpy", "dtype")
	p.pyStr(kind)
	p.pyInt(0)
	p.pyInt(1)
	p.op(0x87) // TUPLE3
	p.op('R')  // REDUCE

	p.op('(')
	p.pyInt(3)
	p.pyStr(byteorder)
	p.none()
	p.none()
	p.none()
	p.pyInt(-1)
	p.pyInt(-1)
	p.pyInt(63)
	p.op('t')
	p.op('b') // BUILD
}

// ndarrayStart emits _reconstruct(ndarray, (0,), b'b') and leaves the
// fresh array on the stack for a BUILD.
func (p *pickleWriter) ndarrayStart() {
	p.global("numpy.core.multiarray", "_reconstruct")
	p.global("numpy", "ndarray")
	p.pyInt(0)
	p.op(0x85)
	p.pyBytes([]byte{'b'})
	p.op(0x87) // TUPLE3
	p.op('R')
}

// ndarrayF8 emits a pickled float64 array. Data bytes follow byteorder.
func (p *pickleWriter) ndarrayF8(dims []int, vals []float64, byteorder string, fortran bool) {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		if byteorder == ">" {
			binary.BigEndian.PutUint64(raw[i*8:], math.Float64bits(v))
		} else {
			binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
		}
	}

	p.ndarrayStart()
	p.op('(')
	p.pyInt(1)
	p.shapeTuple(dims...)
	p.dtype("f8", byteorder)
	p.pyBool(fortran)
	p.pyBytes(raw)
	p.op('t')
	p.op('b')
}

// objectArray emits a pickled object array whose elements come from emit.
func (p *pickleWriter) objectArray(dims []int, emit func()) {
	p.ndarrayStart()
	p.op('(')
	p.pyInt(1)
	p.shapeTuple(dims...)
	p.dtype("O8", "|")
	p.pyBool(false)
	p.op(']') // EMPTY_LIST
	p.op('(')
	emit()
	p.op('e') // APPENDS
	p.op('t')
	p.op('b')
}

func (p *pickleWriter) pyDict(emit func()) {
	p.op('}') // EMPTY_DICT
	p.op('(')
	emit()
	p.op('u') // SETITEMS
}

func (p *pickleWriter) pyList(emit func()) {
	p.op(']')
	p.op('(')
	emit()
	p.op('e')
}

// objectNpy wraps a pickle payload in a '|O' .npy preamble.
func objectNpy(shape string, pickled []byte) []byte {
	header := fmt.Sprintf("{'descr': '|O', 'fortran_order': False, 'shape': %s, }", shape)
	if rem := (10 + len(header) + 1) % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(pickled)
	return buf.Bytes()
}

// dictNpy wraps a single pickled dict in a 0-d object array, the layout
// np.save(dict) produces.
func dictNpy(emit func(p *pickleWriter)) []byte {
	payload := buildPickle(func(p *pickleWriter) {
		p.objectArray(nil, func() {
			p.pyDict(func() { emit(p) })
		})
	})
	return objectNpy("()", payload)
}

func TestReadObjectDict(t *testing.T) {
	raw := dictNpy(func(p *pickleWriter) {
		p.pyStr("spks")
		p.ndarrayF8([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}, "<", false)
		p.pyStr("n")
		p.pyInt(7)
		p.pyStr("hint")
		p.pyInt(4)
		p.pyInt(5)
		p.op(0x86) // TUPLE2
	})

	v, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	dict, ok := v.(*Dict)
	if !ok {
		t.Fatalf("decoded to %T, want *Dict", v)
	}
	if dict.Len() != 3 {
		t.Fatalf("dict has %d entries, want 3", dict.Len())
	}

	spks, ok := dict.Get("spks")
	if !ok {
		t.Fatal("missing spks entry")
	}
	d, ok := spks.(*tensor.Dense)
	if !ok {
		t.Fatalf("spks decoded to %T, want *tensor.Dense", spks)
	}
	if !d.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("spks shape = %s, want (2, 3)", d.Shape())
	}
	if got := d.Float64At(1, 2); got != 6 {
		t.Errorf("spks[1,2] = %v, want 6", got)
	}

	n, _ := dict.Get("n")
	if got, err := asInt(n); err != nil || got != 7 {
		t.Errorf("n = %v (%v), want 7", n, err)
	}

	hint, _ := dict.Get("hint")
	pair, ok := hint.([]any)
	if !ok || len(pair) != 2 {
		t.Fatalf("hint decoded to %T, want 2-element slice", hint)
	}
	if a, _ := asInt(pair[0]); a != 4 {
		t.Errorf("hint[0] = %v, want 4", pair[0])
	}
}

func TestReadObjectArrayOfDicts(t *testing.T) {
	payload := buildPickle(func(p *pickleWriter) {
		p.objectArray([]int{2}, func() {
			p.pyDict(func() {
				p.pyStr("med")
				p.ndarrayF8([]int{2}, []float64{31.5, 8.25}, "<", false)
			})
			p.pyDict(func() {
				p.pyStr("med")
				p.pyList(func() {
					p.pyFloat(1.5)
					p.pyFloat(2.5)
				})
			})
		})
	})

	v, err := Read(bytes.NewReader(objectNpy("(2,)", payload)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	elems, ok := v.([]any)
	if !ok || len(elems) != 2 {
		t.Fatalf("decoded to %T (len %d), want 2-element slice", v, len(elems))
	}

	first, ok := elems[0].(*Dict)
	if !ok {
		t.Fatalf("element 0 decoded to %T, want *Dict", elems[0])
	}
	med, _ := first.Get("med")
	d, ok := med.(*tensor.Dense)
	if !ok {
		t.Fatalf("med decoded to %T, want *tensor.Dense", med)
	}
	if got := d.Float64At(0); got != 31.5 {
		t.Errorf("med[0] = %v, want 31.5", got)
	}

	second := elems[1].(*Dict)
	medList, _ := second.Get("med")
	vals, ok := medList.([]any)
	if !ok || len(vals) != 2 {
		t.Fatalf("list med decoded to %T, want 2-element slice", medList)
	}
	if vals[1] != 2.5 {
		t.Errorf("list med[1] = %v, want 2.5", vals[1])
	}
}

func TestReadObjectScalar(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(3.5))

	payload := buildPickle(func(p *pickleWriter) {
		p.objectArray(nil, func() {
			p.global("numpy.core.multiarray", "scalar")
			p.dtype("f8", "<")
			p.pyBytes(raw)
			p.op(0x86) // TUPLE2
			p.op('R')
		})
	})

	v, err := Read(bytes.NewReader(objectNpy("()", payload)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f, ok := v.(float64); !ok || f != 3.5 {
		t.Errorf("decoded to %T %v, want float64 3.5", v, v)
	}
}

func TestReadObjectBigEndianArray(t *testing.T) {
	raw := dictNpy(func(p *pickleWriter) {
		p.pyStr("xy")
		p.ndarrayF8([]int{2}, []float64{10.5, -4}, ">", false)
	})

	v, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	xy, _ := v.(*Dict).Get("xy")
	d := xy.(*tensor.Dense)
	if got := d.Float64At(0); got != 10.5 {
		t.Errorf("element 0 = %v, want 10.5", got)
	}
	if got := d.Float64At(1); got != -4 {
		t.Errorf("element 1 = %v, want -4", got)
	}
}

func TestReadObjectFortranArray(t *testing.T) {
	// Column-major storage of [[1 2 3] [4 5 6]].
	raw := dictNpy(func(p *pickleWriter) {
		p.pyStr("U")
		p.ndarrayF8([]int{2, 3}, []float64{1, 4, 2, 5, 3, 6}, "<", true)
	})

	v, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	u, _ := v.(*Dict).Get("U")
	d := u.(*tensor.Dense)
	if got := d.Float64At(0, 1); got != 2 {
		t.Errorf("element (0,1) = %v, want 2", got)
	}
	if got := d.Float64At(1, 2); got != 6 {
		t.Errorf("element (1,2) = %v, want 6", got)
	}
}

func TestReadObjectBadData(t *testing.T) {
	// Object dtype with raw bytes where the element list should be.
	payload := buildPickle(func(p *pickleWriter) {
		p.ndarrayStart()
		p.op('(')
		p.pyInt(1)
		p.shapeTuple(2)
		p.dtype("O8", "|")
		p.pyBool(false)
		p.pyBytes([]byte{1, 2})
		p.op('t')
		p.op('b')
	})

	_, err := Read(bytes.NewReader(objectNpy("(2,)", payload)))
	if err == nil || !strings.Contains(err.Error(), "object array data") {
		t.Errorf("error = %v, want object array data error", err)
	}
}

func TestReadObjectZeroDimMultipleElements(t *testing.T) {
	payload := buildPickle(func(p *pickleWriter) {
		p.objectArray(nil, func() {
			p.pyInt(1)
			p.pyInt(2)
		})
	})

	_, err := Read(bytes.NewReader(objectNpy("()", payload)))
	if err == nil || !strings.Contains(err.Error(), "0-d object array") {
		t.Errorf("error = %v, want 0-d element count error", err)
	}
}

func TestReadObjectTruncatedPickle(t *testing.T) {
	payload := buildPickle(func(p *pickleWriter) {
		p.pyDict(func() {
			p.pyStr("a")
			p.pyInt(1)
		})
	})
	_, err := Read(bytes.NewReader(objectNpy("()", payload[:len(payload)-3])))
	if err == nil || !strings.Contains(err.Error(), "read object payload") {
		t.Errorf("error = %v, want unpickle failure", err)
	}
}
