package activity

import (
	"errors"
	"fmt"

	"github.com/rasterlab/raster/internal/tensor"
)

// Fatal load errors. Soft conditions (discarded coordinates, missing
// siblings, nothing resolved) never surface as errors; they log a
// warning and degrade instead.
var (
	// ErrUnsupportedFileType is returned for extensions other than
	// .mat, .npy, and .npz.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMissingScale is returned when a factor arrives unscaled and
	// neither singular values nor a scaled opposite side are available
	// to derive them from.
	ErrMissingScale = errors.New("no Sv scaling for PCs available")
)

// ShapeError reports an input array that violates one of the loader's
// shape constraints. Field names the offending slot so callers can
// branch on more than the message text.
type ShapeError struct {
	Field      string       // canonical slot name ("X", "Usv", "Vsv", "Sv")
	Constraint string       // violated constraint, phrased after Field
	Shape      tensor.Shape // offending shape, nil when not applicable
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if len(e.Shape) > 0 {
		return fmt.Sprintf("%s %s (shape %s)", e.Field, e.Constraint, e.Shape)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Constraint)
}
