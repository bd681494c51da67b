// Package npz reads NumPy .npz archives.
//
// An .npz file is a zip archive whose members are individual .npy files;
// the member name minus the ".npy" suffix is the array's key. Member
// order is preserved because key resolution gives later entries
// precedence over earlier ones.
package npz

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/rasterlab/raster/internal/npy"
)

// Entry is one named member of an .npz archive, in archive order.
// Value is a *tensor.Dense for plain array members, or the decoded
// object graph for pickled object members.
type Entry struct {
	Name  string
	Value any
}

// Read parses an .npz archive from r.
func Read(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	registerDeflate(zr)
	return readMembers(zr.File)
}

// ReadFile parses an .npz archive from disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ReadFile(path string) ([]Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() {
		_ = zr.Close() // Ignore close error on read-only archive.
	}()

	registerDeflate(&zr.Reader)
	entries, err := readMembers(zr.File)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// registerDeflate routes deflate members through the klauspost inflater.
// np.savez writes stored members; np.savez_compressed writes deflate.
func registerDeflate(zr *zip.Reader) {
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
}

func readMembers(files []*zip.File) ([]Entry, error) {
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %s: %w", f.Name, err)
		}
		v, err := npy.Read(rc)
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", f.Name, err)
		}

		entries = append(entries, Entry{
			Name:  strings.TrimSuffix(f.Name, ".npy"),
			Value: v,
		})
	}
	return entries, nil
}

// Keys returns the member names in archive order.
func Keys(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i := range entries {
		keys[i] = entries[i].Name
	}
	return keys
}
