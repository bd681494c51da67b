// Package npz reads NumPy .npz archives: zip containers whose members
// are individual .npy files. Member order is preserved; the member name
// minus its ".npy" suffix is the array's key.
package npz

import (
	"io"

	"github.com/rasterlab/raster/internal/npz"
)

// Entry is one named member of an archive, in archive order.
type Entry = npz.Entry

// Read parses an .npz archive from r.
func Read(r io.ReaderAt, size int64) ([]Entry, error) {
	return npz.Read(r, size)
}

// ReadFile parses an .npz archive from disk.
func ReadFile(path string) ([]Entry, error) {
	return npz.ReadFile(path)
}

// Keys returns the member names in archive order.
func Keys(entries []Entry) []string {
	return npz.Keys(entries)
}
