package activity

import (
	"log/slog"
	"path/filepath"

	"github.com/rasterlab/raster/internal/npy"
	"github.com/rasterlab/raster/internal/tensor"
)

// IsCell is the per-unit classifier output read from a sibling
// iscell.npy: a keep-flag and a probability per unit.
type IsCell struct {
	Mask []bool    // column 0 != 0
	Prob []float64 // column 1
	Path string
}

// LookupIsCell looks for an iscell.npy next to the activity file and
// returns its per-unit mask and probabilities. Any failure (file
// absent, wrong shape, wrong payload) returns nil; the reason is
// distinguishable in debug logs but never propagates.
func LookupIsCell(activityPath string) *IsCell {
	path := filepath.Join(filepath.Dir(activityPath), "iscell.npy")
	v, err := npy.ReadFile(path)
	if err != nil {
		slog.Debug("iscell lookup failed", "path", path, "err", err)
		return nil
	}
	d, ok := v.(*tensor.Dense)
	if !ok || d.Ndim() != 2 || d.Shape()[1] < 2 {
		slog.Debug("iscell has an unexpected layout", "path", path)
		return nil
	}

	n := d.Shape()[0]
	out := &IsCell{Mask: make([]bool, n), Prob: make([]float64, n), Path: path}
	for i := 0; i < n; i++ {
		out.Mask[i] = d.Float64At(i, 0) != 0
		out.Prob[i] = d.Float64At(i, 1)
	}
	return out
}

// LookupStat looks for a stat.npy next to the activity file: an object
// array of per-unit records whose "med" field holds a 2-element median
// position. Returns the stacked (N, 2) positions and the sibling path,
// or nil and "" on any failure; like LookupIsCell, failures only show
// up in debug logs.
func LookupStat(activityPath string) (*tensor.Dense, string) {
	path := filepath.Join(filepath.Dir(activityPath), "stat.npy")
	v, err := npy.ReadFile(path)
	if err != nil {
		slog.Debug("stat lookup failed", "path", path, "err", err)
		return nil, ""
	}
	records, ok := v.([]any)
	if !ok {
		slog.Debug("stat has an unexpected layout", "path", path)
		return nil, ""
	}

	c0 := make([]float64, len(records))
	c1 := make([]float64, len(records))
	for i, rec := range records {
		dict, ok := rec.(*npy.Dict)
		if !ok {
			slog.Debug("stat record is not a dict", "path", path, "index", i)
			return nil, ""
		}
		med, ok := dict.Get("med")
		if !ok {
			slog.Debug("stat record has no med field", "path", path, "index", i)
			return nil, ""
		}
		pair, ok := medPair(med)
		if !ok {
			slog.Debug("stat med field is not a 2-element position", "path", path, "index", i)
			return nil, ""
		}
		c0[i], c1[i] = pair[0], pair[1]
	}

	xy, err := tensor.StackColumns(c0, c1)
	if err != nil {
		slog.Debug("stat is empty", "path", path)
		return nil, ""
	}
	return xy, path
}

// medPair extracts a 2-element median position, stored either as a
// small numeric array or as a plain Python sequence.
func medPair(v any) ([2]float64, bool) {
	switch m := v.(type) {
	case *tensor.Dense:
		if m.NumElements() != 2 {
			return [2]float64{}, false
		}
		f := m.Floats()
		return [2]float64{f[0], f[1]}, true
	case []any:
		if len(m) != 2 {
			return [2]float64{}, false
		}
		a, ok := asFloat(m[0])
		if !ok {
			return [2]float64{}, false
		}
		b, ok := asFloat(m[1])
		if !ok {
			return [2]float64{}, false
		}
		return [2]float64{a, b}, true
	}
	return [2]float64{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
