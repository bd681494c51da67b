package activity

// Pickle fixture builder for object .npy files, emitting the opcode
// stream np.save(..., allow_pickle=True) produces under protocol 3.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
)

type pickler struct {
	bytes.Buffer
}

func (p *pickler) proto()   { p.Write([]byte{0x80, 3}) }
func (p *pickler) stop()    { p.WriteByte('.') }
func (p *pickler) mark()    { p.WriteByte('(') }
func (p *pickler) tuple()   { p.WriteByte('t') }
func (p *pickler) tuple1()  { p.WriteByte(0x85) }
func (p *pickler) tuple2()  { p.WriteByte(0x86) }
func (p *pickler) tuple3()  { p.WriteByte(0x87) }
func (p *pickler) none()    { p.WriteByte('N') }
func (p *pickler) reduce()  { p.WriteByte('R') }
func (p *pickler) build()   { p.WriteByte('b') }
func (p *pickler) newDict() { p.WriteByte('}') }
func (p *pickler) newList() { p.WriteByte(']') }
func (p *pickler) setItems() { p.WriteByte('u') }
func (p *pickler) appends()  { p.WriteByte('e') }

func (p *pickler) emptyTuple() { p.WriteByte(')') }

func (p *pickler) global(module, name string) {
	fmt.Fprintf(p, "c%s\n%s\n", module, name)
}

func (p *pickler) bool(v bool) {
	if v {
		p.WriteByte(0x88)
	} else {
		p.WriteByte(0x89)
	}
}

func (p *pickler) int(n int) {
	if n >= 0 && n <= 255 {
		p.WriteByte('K')
		p.WriteByte(byte(n))
		return
	}
	p.WriteByte('J')
	_ = binary.Write(p, binary.LittleEndian, int32(n))
}

func (p *pickler) float(f float64) {
	p.WriteByte('G')
	_ = binary.Write(p, binary.BigEndian, f)
}

func (p *pickler) str(s string) {
	p.WriteByte('X')
	_ = binary.Write(p, binary.LittleEndian, uint32(len(s)))
	p.WriteString(s)
}

func (p *pickler) binBytes(b []byte) {
	if len(b) <= 255 {
		p.WriteByte('C')
		p.WriteByte(byte(len(b)))
	} else {
		p.WriteByte('B')
		_ = binary.Write(p, binary.LittleEndian, uint32(len(b)))
	}
	p.Write(b)
}

func (p *pickler) shapeTuple(dims ...int) {
	switch len(dims) {
	case 0:
		p.emptyTuple()
	case 1:
		p.int(dims[0])
		p.tuple1()
	case 2:
		p.int(dims[0])
		p.int(dims[1])
		p.tuple2()
	default:
		p.mark()
		for _, d := range dims {
			p.int(d)
		}
		p.tuple()
	}
}

// dtype pushes numpy.dtype(kind) and applies the __setstate__ tuple
// that carries the byte order.
func (p *pickler) dtype(kind, byteorder string) {
	p.global("numpy", "dtype")
	p.str(kind)
	p.int(0)
	p.int(1)
	p.tuple3()
	p.reduce()
	p.mark()
	p.int(3)
	p.str(byteorder)
	p.none()
	p.none()
	p.none()
	p.int(-1)
	p.int(-1)
	p.int(63)
	p.tuple()
	p.build()
}

// ndarrayStart pushes _reconstruct(ndarray, (0,), b'b'), the empty
// array that __setstate__ fills in.
func (p *pickler) ndarrayStart() {
	p.global("numpy.core.multiarray", "_reconstruct")
	p.global("numpy", "ndarray")
	p.int(0)
	p.tuple1()
	p.binBytes([]byte{'b'})
	p.tuple3()
	p.reduce()
}

// ndarrayF8 pushes a little-endian float64 C-order array.
func (p *pickler) ndarrayF8(dims []int, vals []float64) {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	p.ndarrayStart()
	p.mark()
	p.int(1)
	p.shapeTuple(dims...)
	p.dtype("f8", "<")
	p.bool(false)
	p.binBytes(raw)
	p.tuple()
	p.build()
}

// objectNdarray pushes an object-dtype array whose elements come from
// the emit callbacks, one per element.
func (p *pickler) objectNdarray(dims []int, elems ...func()) {
	p.ndarrayStart()
	p.mark()
	p.int(1)
	p.shapeTuple(dims...)
	p.dtype("O8", "|")
	p.bool(false)
	p.newList()
	p.mark()
	for _, emit := range elems {
		emit()
	}
	p.appends()
	p.tuple()
	p.build()
}

// dict pushes a dict; the emit callback pushes alternating keys and
// values between MARK and SETITEMS.
func (p *pickler) dict(emit func()) {
	p.newDict()
	p.mark()
	emit()
	p.setItems()
}

// writeObjectNpy writes a .npy file with an object-dtype header and the
// given pickle stream as payload.
func writeObjectNpy(t *testing.T, path, shape string, pickled []byte) {
	t.Helper()

	header := fmt.Sprintf("{'descr': '|O', 'fortran_order': False, 'shape': %s, }", shape)
	pad := (64 - (10+len(header)+1)%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(pickled)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeDictNpy writes a .npy holding a 0-d object array that wraps a
// single dict, the layout np.save gives a plain Python dict.
func writeDictNpy(t *testing.T, path string, emit func(p *pickler)) {
	t.Helper()
	p := &pickler{}
	p.proto()
	p.objectNdarray(nil, func() {
		p.dict(func() { emit(p) })
	})
	p.stop()
	writeObjectNpy(t, path, "()", p.Bytes())
}
