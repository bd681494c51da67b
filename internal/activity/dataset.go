// Package activity normalizes neuroscience recordings stored as .mat,
// .npy, or .npz files into a common in-memory representation: a dense
// activity matrix (units x timepoints) or a low-rank factor pair
// (Usv, Vsv), plus optional per-unit spatial coordinates.
//
// Loading is synchronous and allocates fresh value objects per call;
// the only process-wide state is the optional MAT v7.3 reader registered
// by importing the matv73 package.
package activity

import "github.com/rasterlab/raster/internal/tensor"

// Dataset is the normalized result of loading an activity file. The
// four array slots are independently nil: either X or the Usv/Vsv pair
// carries the recording, never both.
type Dataset struct {
	X   *tensor.Dense // activity matrix, units x timepoints
	Usv *tensor.Dense // left factor scaled by singular values
	Vsv *tensor.Dense // right factor scaled by singular values
	XY  *tensor.Dense // per-unit coordinates, units x 2 (or 3)

	Source  string   // path the dataset was loaded from
	Ignored []string // input keys that matched no recognized slot
}

// Empty reports whether nothing resolved. An empty dataset is the soft
// "no usable data" outcome, distinct from a load error.
func (d *Dataset) Empty() bool {
	return d.X == nil && d.Usv == nil && d.Vsv == nil && d.XY == nil
}

// Units returns the number of recorded units: the row count of X when
// present, else of Usv, else 0.
func (d *Dataset) Units() int {
	switch {
	case d.X != nil && d.X.Ndim() > 0:
		return d.X.Shape()[0]
	case d.Usv != nil && d.Usv.Ndim() > 0:
		return d.Usv.Shape()[0]
	default:
		return 0
	}
}
