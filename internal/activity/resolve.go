package activity

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rasterlab/raster/internal/tensor"
)

// record collects the raw slot candidates produced by key resolution.
// Later entries overwrite earlier ones slot-wise, matching the order
// the keys appear in the source file.
type record struct {
	x, usv, vsv *tensor.Dense
	u, v, sv    *tensor.Dense
	xpos, ypos  *tensor.Dense
	xy          *tensor.Dense

	ignored []string
}

// canonicalSlot maps a recognized key name onto its canonical slot.
// Matching is case-sensitive; "" means unrecognized.
func canonicalSlot(key string) string {
	switch key {
	case "Usv":
		return "Usv"
	case "Vsv":
		return "Vsv"
	case "U", "U0":
		return "U"
	case "V", "V0":
		return "V"
	case "Sv", "sv":
		return "Sv"
	case "X", "spks":
		return "X"
	case "xpos":
		return "xpos"
	case "ypos":
		return "ypos"
	case "xy", "xyz":
		return "xy"
	}
	return ""
}

// add routes one named entry into the record. Unrecognized names and
// recognized names whose payload is not a numeric array are collected
// as ignored, never an error.
func (r *record) add(name string, value any, log *slog.Logger) {
	slot := canonicalSlot(name)
	if slot == "" {
		r.ignored = append(r.ignored, name)
		return
	}
	d, ok := value.(*tensor.Dense)
	if !ok {
		log.Debug("entry is not a numeric array", "key", name, "type", fmt.Sprintf("%T", value))
		r.ignored = append(r.ignored, name)
		return
	}
	switch slot {
	case "X":
		r.x = d
	case "Usv":
		r.usv = d
	case "Vsv":
		r.vsv = d
	case "U":
		r.u = d
	case "V":
		r.v = d
	case "Sv":
		r.sv = d
	case "xpos":
		r.xpos = d
	case "ypos":
		r.ypos = d
	case "xy":
		r.xy = d
	}
}

// resolve turns the collected slots into a Dataset: factor completion
// and validation when X is absent, then coordinate resolution against
// the resulting unit count.
func (r *record) resolve(log *slog.Logger) (*Dataset, error) {
	if r.x == nil {
		if err := r.completeFactors(log); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{X: r.x, Usv: r.usv, Vsv: r.vsv}
	ds.XY = r.resolveCoords(ds, log)
	return ds, nil
}

// completeFactors derives missing singular values, scales unscaled
// factors, and validates the resulting pair. Called only when no
// activity matrix resolved.
func (r *record) completeFactors(log *slog.Logger) error {
	// Singular values only matter when a side arrived unscaled.
	needSv := (r.usv == nil && r.u != nil) || (r.vsv == nil && r.v != nil)

	var sv []float64
	if needSv && r.sv != nil {
		vec := r.sv.Squeeze()
		if vec.Ndim() != 1 {
			return &ShapeError{Field: "Sv", Constraint: "must be a vector of singular values", Shape: r.sv.Shape()}
		}
		sv = vec.Floats()
	}

	// An unscaled side without singular values: derive them as the
	// column norms of the other, already-scaled side.
	if r.usv == nil && r.u != nil && sv == nil {
		if r.vsv == nil {
			return ErrMissingScale
		}
		norms, err := columnNorms(r.vsv, "Vsv")
		if err != nil {
			return err
		}
		sv = norms
	} else if r.vsv == nil && r.v != nil && sv == nil {
		if r.usv == nil {
			return ErrMissingScale
		}
		norms, err := columnNorms(r.usv, "Usv")
		if err != nil {
			return err
		}
		sv = norms
	}

	if r.usv == nil && r.u != nil && sv != nil {
		scaled, err := r.u.ScaleTrailing(sv)
		if err != nil {
			return &ShapeError{
				Field:      "Sv",
				Constraint: fmt.Sprintf("has %d entries, U needs one per component", len(sv)),
				Shape:      r.u.Shape(),
			}
		}
		r.usv = scaled
	}
	if r.vsv == nil && r.v != nil && sv != nil {
		scaled, err := r.v.ScaleTrailing(sv)
		if err != nil {
			return &ShapeError{
				Field:      "Sv",
				Constraint: fmt.Sprintf("has %d entries, V needs one per component", len(sv)),
				Shape:      r.v.Shape(),
			}
		}
		r.vsv = scaled
	}

	switch {
	case r.usv == nil && r.vsv == nil:
		return nil // nothing resolved; the caller reports absence
	case r.usv == nil:
		log.Warn("Vsv provided without Usv, ignoring factors")
		r.vsv = nil
		return nil
	case r.vsv == nil:
		log.Warn("Usv provided without Vsv, ignoring factors")
		r.usv = nil
		return nil
	}

	if r.usv.Ndim() == 0 || r.vsv.Ndim() == 0 {
		return &ShapeError{Field: "Usv", Constraint: "and Vsv must be arrays, not scalars"}
	}
	us, vs := r.usv.Shape(), r.vsv.Shape()
	if us[len(us)-1] != vs[len(vs)-1] {
		return &ShapeError{Field: "Usv", Constraint: "and Vsv must have the same number of components"}
	}
	if r.usv.Ndim() > 3 {
		return &ShapeError{Field: "Usv", Constraint: "cannot have more than 3 dimensions", Shape: us}
	}
	if r.vsv.Ndim() != 2 {
		return &ShapeError{Field: "Vsv", Constraint: "must have 2 dimensions", Shape: vs}
	}
	return nil
}

// columnNorms computes the Euclidean norm of each column of a 2-D
// array: the singular values implied by a scaled factor.
func columnNorms(d *tensor.Dense, field string) ([]float64, error) {
	if d.Ndim() != 2 {
		return nil, &ShapeError{Field: field, Constraint: "must have 2 dimensions to derive singular values from", Shape: d.Shape()}
	}
	s := d.Shape()
	m := mat.NewDense(s[0], s[1], d.Convert(tensor.Float64).AsFloat64())

	norms := make([]float64, s[1])
	col := make([]float64, s[0])
	for j := range norms {
		mat.Col(col, j, m)
		norms[j] = floats.Norm(col, 2)
	}
	return norms, nil
}
