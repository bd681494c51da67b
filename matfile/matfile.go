// Package matfile reads and writes MATLAB Level 5 MAT-files.
//
// Numeric, logical, character, sparse, cell, and scalar-struct
// variables are supported. Sparse arrays densify on read; complex
// arrays keep only their real part and flag it on the Variable.
//
// MAT v7.3 files are HDF5 containers, not Level 5 streams: Parse
// reports them as ErrV73Format, and ReadFile forwards them to a reader
// registered by importing the matv73 package. Without one, ReadFile
// fails with ErrV73Unavailable.
//
// Example:
//
//	f, err := matfile.ReadFile("rec.mat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, v := range f.Variables {
//	    fmt.Println(v.Name)
//	}
package matfile

import (
	"io"

	"github.com/rasterlab/raster/internal/matfile"
)

// File is a parsed MAT-file.
type File = matfile.File

// Header is the descriptive preamble of a MAT-file.
type Header = matfile.Header

// Variable is one named top-level array.
type Variable = matfile.Variable

// Struct is a scalar MATLAB struct with fields in storage order.
type Struct = matfile.Struct

// Field is a single struct field.
type Field = matfile.Field

// WriteOptions controls MAT-file output.
type WriteOptions = matfile.WriteOptions

// V73Reader loads variables out of a MAT v7.3 (HDF5) container.
type V73Reader = matfile.V73Reader

// Version sentinels.
var (
	// ErrV73Format reports a MAT v7.3 file, which is an HDF5 container
	// rather than a Level 5 stream.
	ErrV73Format = matfile.ErrV73Format

	// ErrV73Unavailable reports a v7.3 file encountered with no v7.3
	// reader registered.
	ErrV73Unavailable = matfile.ErrV73Unavailable
)

// Parse parses a Level 5 stream from r.
func Parse(r io.Reader) (*File, error) {
	return matfile.Parse(r)
}

// ParseFile parses a Level 5 MAT-file from disk. v7.3 files fail with
// ErrV73Format; use ReadFile to fall back to a registered v7.3 reader.
func ParseFile(path string) (*File, error) {
	return matfile.ParseFile(path)
}

// ReadFile parses a MAT-file of either vintage: Level 5 directly, v7.3
// through the registered reader.
func ReadFile(path string) (*File, error) {
	return matfile.ReadFile(path)
}

// RegisterV73 installs the process-wide v7.3 reader. The matv73
// package calls this from its init.
func RegisterV73(r V73Reader) {
	matfile.RegisterV73(r)
}

// Write emits vars as an uncompressed little-endian Level 5 stream.
func Write(w io.Writer, vars []Variable) error {
	return matfile.Write(w, vars)
}

// WriteWithOptions emits vars as a Level 5 stream.
func WriteWithOptions(w io.Writer, vars []Variable, opts WriteOptions) error {
	return matfile.WriteWithOptions(w, vars, opts)
}

// WriteFile writes an uncompressed MAT-file to disk.
func WriteFile(path string, vars []Variable) error {
	return matfile.WriteFile(path, vars)
}

// WriteFileWithOptions writes a MAT-file to disk.
func WriteFileWithOptions(path string, vars []Variable, opts WriteOptions) error {
	return matfile.WriteFileWithOptions(path, vars, opts)
}
