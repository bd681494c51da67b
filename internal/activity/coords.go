package activity

import (
	"log/slog"

	"github.com/rasterlab/raster/internal/tensor"
)

// resolveCoords builds the per-unit coordinate array: an explicit xy/xyz
// entry wins, otherwise xpos/ypos are stacked column-wise. All failures
// here are soft: a warning is logged and coordinates degrade to absent.
func (r *record) resolveCoords(ds *Dataset, log *slog.Logger) *tensor.Dense {
	xy := r.xy
	if xy == nil && (r.xpos != nil || r.ypos != nil) {
		xy = stackPositions(r.xpos, r.ypos, log)
	}
	if xy == nil {
		return nil
	}

	if xy.Ndim() != 2 {
		log.Warn("cannot use xy from file: x and y positions of neurons must be 2-dimensional")
		return nil
	}
	// (2, N) and (3, N) layouts are stored transposed.
	if s := xy.Shape(); s[0] == 2 || s[0] == 3 {
		t, err := xy.Transpose2D()
		if err != nil {
			log.Warn("cannot use xy from file", "err", err)
			return nil
		}
		xy = t
	}

	units := ds.Units()
	if units == 0 {
		// No primary representation; the dataset degrades to empty
		// and coordinates go with it.
		return nil
	}
	if xy.Shape()[0] != units {
		log.Warn("cannot use xy from file: x and y positions of neurons are not same size as activity")
		return nil
	}
	return xy
}

// stackPositions combines separate xpos/ypos vectors into an (N, 2)
// array. Either side missing or a length mismatch discards both.
func stackPositions(xpos, ypos *tensor.Dense, log *slog.Logger) *tensor.Dense {
	if xpos == nil || ypos == nil {
		log.Warn("cannot use xpos/ypos from file: both must be present")
		return nil
	}
	xv, yv := xpos.Squeeze(), ypos.Squeeze()
	if xv.Ndim() != 1 || yv.Ndim() != 1 || xv.NumElements() != yv.NumElements() {
		log.Warn("cannot use xpos/ypos from file: x and y positions must be equal-length vectors")
		return nil
	}
	xy, err := tensor.StackColumns(xv.Floats(), yv.Floats())
	if err != nil {
		log.Warn("cannot use xpos/ypos from file", "err", err)
		return nil
	}
	return xy
}
