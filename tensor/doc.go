// Copyright 2025 Rasterlab. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense n-dimensional arrays that every
// raster package trades in: the format readers produce them, the
// activity loader validates them, the cache stores them, and the stats
// helpers transform them.
//
// # Overview
//
// A Dense is a row-major array over one of six element types (float32,
// float64, int32, int64, uint8, bool). Narrower storage found on disk
// is widened to one of these while reading, so downstream code never
// sees int8 or uint16 payloads.
//
// # Basic Usage
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(x.Shape())         // (2, 3)
//	fmt.Println(x.Float64At(1, 2)) // 6
//
// Accessors follow NumPy conventions: Shape is outermost-first,
// AsFloat64 exposes the backing slice without copying, and Floats
// converts any element type into a fresh []float64.
package tensor
