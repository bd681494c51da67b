package activity

import (
	"fmt"

	"github.com/rasterlab/raster/internal/rpack"
	"github.com/rasterlab/raster/internal/tensor"
)

// Slot names used in .rpk dataset caches.
const (
	slotX   = "X"
	slotUsv = "Usv"
	slotVsv = "Vsv"
	slotXY  = "xy"
)

// SaveDataset writes a normalized dataset to an .rpk cache file.
// Only present slots are stored; Source records provenance.
func SaveDataset(path string, ds *Dataset) error {
	var tensors []rpack.NamedTensor
	add := func(name string, d *tensor.Dense) {
		if d != nil {
			tensors = append(tensors, rpack.NamedTensor{Name: name, Dense: d})
		}
	}
	add(slotX, ds.X)
	add(slotUsv, ds.Usv)
	add(slotVsv, ds.Vsv)
	add(slotXY, ds.XY)

	return rpack.WriteFile(path, ds.Source, tensors)
}

// LoadDataset reads a dataset back from an .rpk cache file. Slots the
// cache does not name land in Ignored, so stale or foreign caches stay
// inspectable.
func LoadDataset(path string) (*Dataset, error) {
	r, err := rpack.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close() // Ignore close error on read-only file.
	}()

	ds := &Dataset{Source: r.Source()}
	for _, name := range r.TensorNames() {
		d, err := r.Tensor(name)
		if err != nil {
			return nil, fmt.Errorf("cache slot %s: %w", name, err)
		}
		switch name {
		case slotX:
			ds.X = d
		case slotUsv:
			ds.Usv = d
		case slotVsv:
			ds.Vsv = d
		case slotXY:
			ds.XY = d
		default:
			ds.Ignored = append(ds.Ignored, name)
		}
	}
	return ds, nil
}
