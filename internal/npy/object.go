package npy

import (
	"fmt"
	"io"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/rasterlab/raster/internal/tensor"
)

// Dict is a decoded Python dictionary with insertion order preserved.
// Key order matters downstream: later recordings overwrite earlier ones
// during key resolution.
type Dict struct {
	Entries []DictEntry
}

// DictEntry is one key/value pair of a Dict.
type DictEntry struct {
	Key   string
	Value any
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (any, bool) {
	for i := range d.Entries {
		if d.Entries[i].Key == key {
			return d.Entries[i].Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.Entries)
}

// readObject unpickles an object payload and converts it into
// loader-facing values.
func readObject(r io.Reader) (any, error) {
	u := pickle.NewUnpickler(r)
	u.FindClass = findNumpyClass

	raw, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickle: %w", err)
	}
	return fromPickle(raw)
}

// findNumpyClass resolves the numpy callables np.save emits when pickling
// object arrays. Everything else resolves to a generic placeholder.
func findNumpyClass(module, name string) (any, error) {
	switch module {
	case "numpy.core.multiarray", "numpy._core.multiarray":
		switch name {
		case "_reconstruct":
			return reconstructFn{}, nil
		case "scalar":
			return scalarFn{}, nil
		}
	case "numpy":
		switch name {
		case "ndarray":
			return ndarrayMarker{}, nil
		case "dtype":
			return dtypeFn{}, nil
		}
	}
	return types.NewGenericClass(module, name), nil
}

// ndarrayMarker stands in for the numpy.ndarray type object; _reconstruct
// receives it as the subtype argument and ignores it.
type ndarrayMarker struct{}

// reconstructFn implements numpy.core.multiarray._reconstruct, which
// allocates the empty array that __setstate__ then fills.
type reconstructFn struct{}

// Call implements types.Callable.
func (reconstructFn) Call(_ ...any) (any, error) {
	return &ndarray{}, nil
}

// ndarray accumulates the __setstate__ payload of a pickled numpy array.
type ndarray struct {
	shape   tensor.Shape
	descr   *dtypeDescr
	fortran bool
	data    any // []byte, string, or *types.List for object dtypes
}

// PySetState implements the ndarray.__setstate__ tuple:
// (version, shape, dtype, is_fortran, data).
func (a *ndarray) PySetState(state any) error {
	t, ok := state.(*types.Tuple)
	if !ok || t.Len() != 5 {
		return fmt.Errorf("unexpected ndarray state %T", state)
	}

	shapeTuple, ok := t.Get(1).(*types.Tuple)
	if !ok {
		return fmt.Errorf("ndarray state: shape is %T", t.Get(1))
	}
	a.shape = make(tensor.Shape, shapeTuple.Len())
	for i := 0; i < shapeTuple.Len(); i++ {
		n, err := asInt(shapeTuple.Get(i))
		if err != nil {
			return fmt.Errorf("ndarray state: shape entry %d: %w", i, err)
		}
		a.shape[i] = n
	}

	descr, ok := t.Get(2).(*dtypeDescr)
	if !ok {
		return fmt.Errorf("ndarray state: dtype is %T", t.Get(2))
	}
	a.descr = descr

	if fortran, ok := t.Get(3).(bool); ok {
		a.fortran = fortran
	}
	a.data = t.Get(4)
	return nil
}

// toValue converts the accumulated state into a *tensor.Dense, or into
// its decoded elements for object dtypes: a 0-d object array unwraps to
// the single element, an n-d one flattens to []any.
func (a *ndarray) toValue() (any, error) {
	if a.descr == nil {
		return nil, fmt.Errorf("ndarray state missing dtype")
	}
	info, err := parseDescr(a.descr.descrString())
	if err != nil {
		return nil, err
	}

	if info.object {
		list, ok := a.data.(*types.List)
		if !ok {
			return nil, fmt.Errorf("object array data is %T", a.data)
		}
		elems := make([]any, list.Len())
		for i := range elems {
			elems[i], err = fromPickle(list.Get(i))
			if err != nil {
				return nil, fmt.Errorf("object array element %d: %w", i, err)
			}
		}
		if len(a.shape) == 0 {
			if len(elems) != 1 {
				return nil, fmt.Errorf("0-d object array with %d elements", len(elems))
			}
			return elems[0], nil
		}
		return elems, nil
	}

	raw, err := asBytes(a.data)
	if err != nil {
		return nil, fmt.Errorf("array data: %w", err)
	}
	if want := a.shape.NumElements() * info.size; len(raw) != want {
		return nil, fmt.Errorf("array data is %d bytes, want %d", len(raw), want)
	}
	if info.big {
		tensor.ByteSwap(raw, info.size)
	}

	buf, err := widen(raw, info)
	if err != nil {
		return nil, err
	}
	if a.fortran {
		return tensor.FromBytesColMajor(buf, a.shape, info.dtype)
	}
	return tensor.FromBytes(buf, a.shape, info.dtype)
}

// dtypeFn implements the numpy.dtype constructor.
type dtypeFn struct{}

// Call implements types.Callable.
func (dtypeFn) Call(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("numpy.dtype: no arguments")
	}
	kind, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("numpy.dtype: argument is %T", args[0])
	}
	return &dtypeDescr{kind: kind, byteorder: "="}, nil
}

// dtypeDescr carries a reconstructed numpy dtype. The constructor gets
// the kind string ("f8"); __setstate__ supplies the byte order.
type dtypeDescr struct {
	kind      string
	byteorder string
}

// PySetState implements dtype.__setstate__; the byte order sits at
// index 1 of the state tuple.
func (d *dtypeDescr) PySetState(state any) error {
	t, ok := state.(*types.Tuple)
	if !ok || t.Len() < 2 {
		return fmt.Errorf("unexpected dtype state %T", state)
	}
	if bo, ok := t.Get(1).(string); ok {
		d.byteorder = bo
	}
	return nil
}

// descrString rebuilds the full descr, e.g. "<f8" or "|O8".
func (d *dtypeDescr) descrString() string {
	bo := d.byteorder
	if bo == "" || bo == "=" {
		bo = "<"
	}
	return bo + d.kind
}

// scalarFn implements numpy.core.multiarray.scalar, which rebuilds 0-d
// numpy scalars from a dtype and raw bytes.
type scalarFn struct{}

// Call implements types.Callable.
func (scalarFn) Call(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("numpy scalar: got %d args, want 2", len(args))
	}
	d, ok := args[0].(*dtypeDescr)
	if !ok {
		return nil, fmt.Errorf("numpy scalar: dtype is %T", args[0])
	}
	raw, err := asBytes(args[1])
	if err != nil {
		return nil, fmt.Errorf("numpy scalar: %w", err)
	}

	info, err := parseDescr(d.descrString())
	if err != nil {
		return nil, err
	}
	if info.object || len(raw) != info.size {
		return nil, fmt.Errorf("numpy scalar: %d bytes for descr %q", len(raw), d.descrString())
	}
	if info.big {
		tensor.ByteSwap(raw, info.size)
	}

	buf, err := widen(raw, info)
	if err != nil {
		return nil, err
	}
	dense, err := tensor.FromBytes(buf, tensor.Shape{}, info.dtype)
	if err != nil {
		return nil, err
	}
	return dense.Float64At(), nil
}

// fromPickle converts the unpickled object graph into loader-facing
// values: numpy arrays become *tensor.Dense, dicts keep their order,
// tuples and lists become []any.
func fromPickle(v any) (any, error) {
	switch x := v.(type) {
	case *ndarray:
		return x.toValue()
	case *types.Dict:
		out := &Dict{Entries: make([]DictEntry, 0, x.Len())}
		for _, entry := range *x {
			key, ok := entry.Key.(string)
			if !ok {
				key = fmt.Sprint(entry.Key)
			}
			val, err := fromPickle(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("dict entry %q: %w", key, err)
			}
			out.Entries = append(out.Entries, DictEntry{Key: key, Value: val})
		}
		return out, nil
	case *types.List:
		out := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			var err error
			out[i], err = fromPickle(x.Get(i))
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case *types.Tuple:
		out := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			var err error
			out[i], err = fromPickle(x.Get(i))
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return v, nil
	}
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
}
