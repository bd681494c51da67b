package activity

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rasterlab/raster/internal/matfile"
	"github.com/rasterlab/raster/internal/npy"
	"github.com/rasterlab/raster/internal/npz"
	"github.com/rasterlab/raster/internal/tensor"
)

// Options configures a load call.
type Options struct {
	// Logger receives progress and warning messages; nil means
	// slog.Default(). Messages are observational only and never change
	// what Load returns.
	Logger *slog.Logger
}

// Load reads an activity file and normalizes it into a Dataset.
//
// Fatal conditions (unsupported extension, shape violations, missing
// factor scaling, unreadable files) return an error. Soft conditions
// (discarded coordinates, nothing recognized) log a warning and
// degrade; an all-nil Dataset with a nil error means "no usable data".
func Load(path string) (*Dataset, error) {
	return LoadWithOptions(path, Options{})
}

// LoadWithOptions is Load with explicit options.
func LoadWithOptions(path string, opts Options) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("loading activity file", "path", path)

	var rec record
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mat":
		rec, err = loadMat(path, log)
	case ".npy":
		rec, err = loadNpy(path, log)
	case ".npz":
		rec, err = loadNpz(path, log)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFileType)
	}
	if err != nil {
		return nil, err
	}
	if len(rec.ignored) > 0 {
		log.Debug("ignoring unrecognized keys", "keys", rec.ignored)
	}

	ds, err := rec.resolve(log)
	if err != nil {
		return nil, err
	}
	ds.Source = path
	ds.Ignored = rec.ignored

	// Neither an activity matrix nor a complete factor pair: report
	// absence, not an error.
	if ds.X == nil && (ds.Usv == nil || ds.Vsv == nil) {
		log.Warn("no usable activity data found", "path", path)
		return &Dataset{Source: path, Ignored: rec.ignored}, nil
	}

	if ds.X != nil {
		if err := validateX(ds, log); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// loadMat reads a MAT-file. A single numeric variable is the activity
// payload itself; a single scalar struct resolves by field name; multiple
// variables resolve by variable name.
func loadMat(path string, log *slog.Logger) (record, error) {
	f, err := matfile.ReadFile(path)
	if err != nil {
		return record{}, err
	}

	var rec record
	for _, v := range f.Variables {
		if v.Imag {
			log.Warn("dropping imaginary part of complex variable", "name", v.Name)
		}
	}

	switch vars := f.Variables; len(vars) {
	case 0:
		log.Warn("no variables in MAT-file")
	case 1:
		switch payload := vars[0].Value.(type) {
		case *tensor.Dense:
			rec.x = payload
		case *matfile.Struct:
			for _, fld := range payload.Fields {
				rec.add(fld.Name, fld.Value, log)
			}
		default:
			log.Warn("MAT variable is not a numeric array", "name", vars[0].Name)
		}
	default:
		for _, v := range vars {
			rec.add(v.Name, v.Value, log)
		}
	}
	return rec, nil
}

// loadNpy reads a .npy file. A plain array is the activity payload; a
// pickled dict resolves by key.
func loadNpy(path string, log *slog.Logger) (record, error) {
	v, err := npy.ReadFile(path)
	if err != nil {
		return record{}, err
	}

	var rec record
	switch payload := v.(type) {
	case *tensor.Dense:
		rec.x = payload
	case *npy.Dict:
		for _, e := range payload.Entries {
			rec.add(e.Key, e.Value, log)
		}
	default:
		log.Warn("file holds neither a numeric array nor a dictionary", "path", path)
	}
	return rec, nil
}

// loadNpz reads a .npz archive and resolves its members by name.
func loadNpz(path string, log *slog.Logger) (record, error) {
	entries, err := npz.ReadFile(path)
	if err != nil {
		return record{}, err
	}

	var rec record
	for _, e := range entries {
		rec.add(e.Name, e.Value, log)
	}
	return rec, nil
}

// validateX enforces the activity-matrix constraints and flattens 3-D
// inputs, mutating ds.X in place.
func validateX(ds *Dataset, log *slog.Logger) error {
	x := ds.X
	switch {
	case x.Ndim() < 2:
		return &ShapeError{Field: "X", Constraint: "requires 2D array", Shape: x.Shape()}
	case x.Ndim() > 3:
		return &ShapeError{Field: "X", Constraint: "requires 2D array, too many dimensions", Shape: x.Shape()}
	case x.Ndim() == 3:
		log.Warn("3D array provided, will flatten to 2D", "shape", x.Shape())
	}
	if x.Shape()[0] < 10 {
		return &ShapeError{Field: "X", Constraint: "has fewer than 10 neurons", Shape: x.Shape()}
	}
	if x.Ndim() == 3 {
		ds.X = x.FlattenTrailing()
		log.Info("flattened activity matrix", "shape", ds.X.Shape())
	}
	return nil
}
