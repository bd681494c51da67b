package cli

import (
	"path/filepath"
	"strings"

	"github.com/rasterlab/raster/internal/activity"
)

// openDataset loads either a raw activity file or an .rpk cache, picked
// by extension.
func openDataset(path string) (*activity.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".rpk") {
		return activity.LoadDataset(path)
	}
	return activity.Load(path)
}
