// Package stats holds the numerical helpers applied to activity
// matrices after loading: per-unit standardization and row binning.
package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rasterlab/raster/internal/parallel"
	"github.com/rasterlab/raster/internal/tensor"
)

// flatGuard keeps rows with no variance finite instead of dividing by
// zero; such rows standardize to all zeros.
const flatGuard = 1e-10

// Zscore standardizes each row of a 2-D matrix to zero mean and unit
// population variance. The result is always float64.
func Zscore(x *tensor.Dense) (*tensor.Dense, error) {
	if x == nil || x.Ndim() != 2 {
		return nil, fmt.Errorf("zscore requires a 2D matrix, got %s", shapeOf(x))
	}

	rows, cols := x.Shape()[0], x.Shape()[1]
	src := x.Convert(tensor.Float64).AsFloat64()
	out := make([]float64, len(src))

	parallel.For(rows, func(i int) {
		row := src[i*cols : (i+1)*cols]
		dst := out[i*cols : (i+1)*cols]

		mean := stat.Mean(row, nil)
		std := stat.PopStdDev(row, nil)

		copy(dst, row)
		floats.AddConst(-mean, dst)
		floats.Scale(1/(flatGuard+std), dst)
	}, parallel.DefaultConfig())

	return tensor.FromSlice(out, tensor.Shape{rows, cols})
}

// Bin1D averages consecutive rows in bins of binSize and drops the
// trailing partial bin. A binSize of one or less returns a float64 copy
// unchanged.
func Bin1D(x *tensor.Dense, binSize int) (*tensor.Dense, error) {
	if x == nil || x.Ndim() != 2 {
		return nil, fmt.Errorf("bin1d requires a 2D matrix, got %s", shapeOf(x))
	}

	converted := x.Convert(tensor.Float64)
	if binSize <= 1 {
		return converted, nil
	}

	rows, cols := x.Shape()[0], x.Shape()[1]
	nbins := rows / binSize
	if nbins == 0 {
		return nil, fmt.Errorf("bin size %d leaves no complete bins over %d rows", binSize, rows)
	}

	src := converted.AsFloat64()
	out := make([]float64, nbins*cols)
	inv := 1 / float64(binSize)

	parallel.For(nbins, func(b int) {
		dst := out[b*cols : (b+1)*cols]
		for r := b * binSize; r < (b+1)*binSize; r++ {
			floats.Add(dst, src[r*cols:(r+1)*cols])
		}
		floats.Scale(inv, dst)
	}, parallel.DefaultConfig())

	return tensor.FromSlice(out, tensor.Shape{nbins, cols})
}

func shapeOf(x *tensor.Dense) string {
	if x == nil {
		return "nil"
	}
	return x.Shape().String()
}
