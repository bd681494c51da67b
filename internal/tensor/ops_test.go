package tensor

import (
	"testing"
)

func TestFloat64At(t *testing.T) {
	d, _ := FromSlice([]int32{10, 20, 30, 40, 50, 60}, Shape{2, 3})

	if got := d.Float64At(0, 0); got != 10 {
		t.Errorf("Float64At(0,0) = %v, want 10", got)
	}
	if got := d.Float64At(1, 2); got != 60 {
		t.Errorf("Float64At(1,2) = %v, want 60", got)
	}
}

func TestFloat64AtOutOfRangePanics(t *testing.T) {
	d, _ := FromSlice([]int32{1, 2, 3, 4}, Shape{2, 2})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Float64At with an out-of-range index should panic")
		}
	}()
	_ = d.Float64At(2, 0)
}

func TestSetFloat64(t *testing.T) {
	d, _ := New(Shape{2, 2}, Float32)
	d.SetFloat64(3.5, 1, 0)

	if got := d.AsFloat32()[2]; got != 3.5 {
		t.Errorf("element [1,0] = %v, want 3.5", got)
	}
}

func TestFloats(t *testing.T) {
	d, _ := FromSlice([]bool{true, false, true}, Shape{3})
	got := d.Floats()
	want := []float64{1, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Floats() = %v, want %v", got, want)
			break
		}
	}

	// Floats returns a fresh slice, not a view.
	got[0] = 99
	if d.AsBool()[0] != true {
		t.Error("mutating Floats() result should not affect the array")
	}
}

func TestReshape(t *testing.T) {
	d, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})

	r, err := d.Reshape(Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	if !r.Shape().Equal(Shape{3, 2}) {
		t.Errorf("reshaped shape = %v, want (3, 2)", r.Shape())
	}
	if r.Float64At(2, 1) != 6 {
		t.Errorf("element [2,1] = %v, want 6", r.Float64At(2, 1))
	}

	if _, err := d.Reshape(Shape{4, 2}); err == nil {
		t.Error("Reshape to a different element count should fail")
	}
}

func TestFlattenTrailing(t *testing.T) {
	d, _ := FromSlice([]float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}, Shape{2, 3, 2})

	flat := d.FlattenTrailing()
	if !flat.Shape().Equal(Shape{2, 6}) {
		t.Errorf("flattened shape = %v, want (2, 6)", flat.Shape())
	}
	if flat.Float64At(1, 5) != 12 {
		t.Errorf("element [1,5] = %v, want 12", flat.Float64At(1, 5))
	}

	// 1D arrays come back unchanged.
	v, _ := FromSlice([]float64{1, 2}, Shape{2})
	if !v.FlattenTrailing().Shape().Equal(Shape{2}) {
		t.Error("FlattenTrailing on a 1D array should be a no-op")
	}
}

func TestSqueeze(t *testing.T) {
	d, _ := FromSlice([]float64{1, 2, 3}, Shape{1, 3})
	s := d.Squeeze()
	if !s.Shape().Equal(Shape{3}) {
		t.Errorf("squeezed shape = %v, want (3)", s.Shape())
	}

	d2, _ := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2})
	if d2.Squeeze() != d2 {
		t.Error("Squeeze without unit dimensions should return the receiver")
	}
}

func TestTranspose2D(t *testing.T) {
	d, _ := FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
	}, Shape{2, 3})

	tr, err := d.Transpose2D()
	if err != nil {
		t.Fatalf("Transpose2D failed: %v", err)
	}
	if !tr.Shape().Equal(Shape{3, 2}) {
		t.Errorf("transposed shape = %v, want (3, 2)", tr.Shape())
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	got := tr.AsFloat64()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transposed data = %v, want %v", got, want)
			break
		}
	}

	v, _ := FromSlice([]float64{1, 2, 3}, Shape{3})
	if _, err := v.Transpose2D(); err == nil {
		t.Error("Transpose2D on a 1D array should fail")
	}
}

func TestConvert(t *testing.T) {
	d, _ := FromSlice([]int64{0, 1, 2, 3}, Shape{4})

	f := d.Convert(Float32)
	if f.DType() != Float32 {
		t.Errorf("converted dtype = %v, want Float32", f.DType())
	}
	if f.AsFloat32()[3] != 3 {
		t.Errorf("converted element [3] = %v, want 3", f.AsFloat32()[3])
	}

	b := d.Convert(Bool)
	wantBool := []bool{false, true, true, true}
	for i, want := range wantBool {
		if b.AsBool()[i] != want {
			t.Errorf("bool conversion = %v, want %v", b.AsBool(), wantBool)
			break
		}
	}

	// Identity conversion still copies.
	same := d.Convert(Int64)
	same.AsInt64()[0] = 42
	if d.AsInt64()[0] != 0 {
		t.Error("identity Convert should not share memory")
	}
}

func TestScaleTrailing(t *testing.T) {
	d, _ := FromSlice([]float64{
		1, 1, 1,
		2, 2, 2,
	}, Shape{2, 3})

	scaled, err := d.ScaleTrailing([]float64{1, 10, 100})
	if err != nil {
		t.Fatalf("ScaleTrailing failed: %v", err)
	}
	want := []float64{1, 10, 100, 2, 20, 200}
	got := scaled.AsFloat64()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scaled data = %v, want %v", got, want)
			break
		}
	}

	if _, err := d.ScaleTrailing([]float64{1, 2}); err == nil {
		t.Error("ScaleTrailing with a mismatched scale length should fail")
	}
}

func TestScaleTrailing3D(t *testing.T) {
	d, _ := FromSlice([]float32{
		1, 1,
		1, 1,

		1, 1,
		1, 1,
	}, Shape{2, 2, 2})

	scaled, err := d.ScaleTrailing([]float64{2, 3})
	if err != nil {
		t.Fatalf("ScaleTrailing failed: %v", err)
	}
	if scaled.DType() != Float64 {
		t.Errorf("scaled dtype = %v, want Float64", scaled.DType())
	}
	got := scaled.AsFloat64()
	for i := 0; i < len(got); i += 2 {
		if got[i] != 2 || got[i+1] != 3 {
			t.Errorf("scaled data = %v, want alternating 2, 3", got)
			break
		}
	}
}

func TestStackColumns(t *testing.T) {
	xy, err := StackColumns([]float64{1, 2, 3}, []float64{4, 5, 6})
	if err != nil {
		t.Fatalf("StackColumns failed: %v", err)
	}
	if !xy.Shape().Equal(Shape{3, 2}) {
		t.Errorf("stacked shape = %v, want (3, 2)", xy.Shape())
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	got := xy.AsFloat64()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stacked data = %v, want %v", got, want)
			break
		}
	}

	if _, err := StackColumns([]float64{1, 2}, []float64{1, 2, 3}); err == nil {
		t.Error("StackColumns with unequal lengths should fail")
	}
}
