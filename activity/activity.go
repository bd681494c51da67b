// Copyright 2025 Rasterlab. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package activity loads neural recordings from the file formats
// processing pipelines actually emit and normalizes them into a
// Dataset: an activity matrix X (units by timepoints), or a factorized
// Usv/Vsv pair, with optional unit coordinates.
//
// The extension picks the parser (.mat, .npy, .npz); recognized keys
// inside the file are resolved by name, unscaled factors are rescaled
// from singular values, and shapes are validated. Soft problems such as
// unusable coordinates or half a factor pair degrade with a logged
// warning instead of failing the load.
//
// Example:
//
//	ds, err := activity.Load("/data/mouse1/spks.npy")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if ds.X != nil {
//	    fmt.Println(ds.X.Shape())
//	}
//	if cells := activity.LookupIsCell(ds.Source); cells != nil {
//	    fmt.Printf("%d units classified\n", len(cells.Mask))
//	}
package activity

import (
	"github.com/rasterlab/raster/internal/activity"
	"github.com/rasterlab/raster/tensor"
)

// Dataset is one loaded recording.
type Dataset = activity.Dataset

// Options tunes a single load.
type Options = activity.Options

// IsCell is the per-unit classifier output from a sibling iscell.npy.
type IsCell = activity.IsCell

// ShapeError reports an input array that violates one of the loader's
// shape constraints.
type ShapeError = activity.ShapeError

// Sentinel errors surfaced by Load.
var (
	// ErrUnsupportedFileType is returned for extensions other than
	// .mat, .npy, and .npz.
	ErrUnsupportedFileType = activity.ErrUnsupportedFileType

	// ErrMissingScale is returned when a factor arrives unscaled and
	// neither singular values nor a scaled opposite side are available
	// to derive them from.
	ErrMissingScale = activity.ErrMissingScale
)

// Load reads one activity file with the process-default logger.
func Load(path string) (*Dataset, error) {
	return activity.Load(path)
}

// LoadWithOptions reads one activity file.
func LoadWithOptions(path string, opts Options) (*Dataset, error) {
	return activity.LoadWithOptions(path, opts)
}

// LookupIsCell looks for an iscell.npy next to the activity file.
// Missing or malformed files return nil.
func LookupIsCell(activityPath string) *IsCell {
	return activity.LookupIsCell(activityPath)
}

// LookupStat looks for a stat.npy next to the activity file and stacks
// each record's median position into an (N, 2) matrix. Missing or
// malformed files return nil and an empty path.
func LookupStat(activityPath string) (*tensor.Dense, string) {
	return activity.LookupStat(activityPath)
}

// SaveDataset writes ds to an .rpk cache file.
func SaveDataset(path string, ds *Dataset) error {
	return activity.SaveDataset(path, ds)
}

// LoadDataset reads an .rpk cache file back into a Dataset.
func LoadDataset(path string) (*Dataset, error) {
	return activity.LoadDataset(path)
}
