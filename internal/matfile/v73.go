package matfile

import (
	"errors"
	"fmt"
	"path/filepath"
)

// V73Reader loads the variables of a MAT v7.3 (HDF5) container.
//
// The implementation lives in a separate package because it needs the
// system HDF5 library through cgo; keeping it behind this interface
// leaves the core parser free of that build requirement.
type V73Reader interface {
	ReadFile(path string) ([]Variable, error)
}

var v73Reader V73Reader

// RegisterV73 installs the reader ReadFile uses for v7.3 files. It is
// meant to be called from an init function; the last registration wins.
func RegisterV73(r V73Reader) {
	v73Reader = r
}

// ReadFile parses a MAT-file from disk, forwarding v7.3 containers to
// the registered HDF5-backed reader. Without a registration, v7.3
// files fail with ErrV73Unavailable.
func ReadFile(path string) (*File, error) {
	f, err := ParseFile(path)
	if err == nil || !errors.Is(err, ErrV73Format) {
		return f, err
	}

	if v73Reader == nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrV73Unavailable)
	}
	vars, err := v73Reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read v7.3 file: %w", err)
	}
	return &File{
		Header:    Header{Text: "MATLAB 7.3 MAT-file (HDF5)", Version: versionV73},
		Variables: vars,
	}, nil
}
