// Copyright 2025 Rasterlab. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package stats exposes the numerical helpers applied to activity
// matrices after loading: per-unit standardization and row binning.
package stats

import (
	"github.com/rasterlab/raster/internal/stats"
	"github.com/rasterlab/raster/tensor"
)

// Zscore standardizes each row of a 2-D matrix to zero mean and unit
// population variance. Rows with no variance come out as zeros; the
// result is always float64.
func Zscore(x *tensor.Dense) (*tensor.Dense, error) {
	return stats.Zscore(x)
}

// Bin1D averages consecutive rows in bins of binSize and drops the
// trailing partial bin. A binSize of one or less returns a float64
// copy unchanged.
func Bin1D(x *tensor.Dense, binSize int) (*tensor.Dense, error) {
	return stats.Bin1D(x, binSize)
}
