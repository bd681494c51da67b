//go:build hdf5

package main

// Building with -tags hdf5 links the HDF5-backed MAT v7.3 reader into
// the binary. The default build stays CGo-free and reports v7.3 files
// as unsupported.
import _ "github.com/rasterlab/raster/matv73"
