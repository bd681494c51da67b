package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rasterlab/raster/internal/activity"
	"github.com/rasterlab/raster/internal/npy"
	"github.com/rasterlab/raster/internal/stats"
	"github.com/rasterlab/raster/internal/tensor"
)

var (
	exportSlot   string
	exportZscore bool
	exportBin    int
)

var exportCmd = &cobra.Command{
	Use:   "export <in> <out.npy>",
	Short: "Write one slot of a loaded dataset as a plain .npy array",
	Long: `Load an activity file (or .rpk cache), pick one slot, optionally
z-score each row and bin timepoints, and write the result as a
plain .npy file.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportSlot, "slot", "X", "slot to export: X, Usv, Vsv, or xy")
	exportCmd.Flags().BoolVar(&exportZscore, "zscore", false, "z-score each row before writing")
	exportCmd.Flags().IntVar(&exportBin, "bin", 0, "average consecutive rows in bins of this size")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}

	d, err := pickSlot(ds, exportSlot)
	if err != nil {
		return err
	}
	if exportZscore {
		if d, err = stats.Zscore(d); err != nil {
			return err
		}
	}
	if exportBin > 1 {
		if d, err = stats.Bin1D(d, exportBin); err != nil {
			return err
		}
	}

	if err := npy.WriteFile(args[1], d); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s %s\n", args[1], d.Shape())
	return nil
}

func pickSlot(ds *activity.Dataset, slot string) (*tensor.Dense, error) {
	var d *tensor.Dense
	switch slot {
	case "X":
		d = ds.X
	case "Usv":
		d = ds.Usv
	case "Vsv":
		d = ds.Vsv
	case "xy":
		d = ds.XY
	default:
		return nil, fmt.Errorf("unknown slot %q (valid: X, Usv, Vsv, xy)", slot)
	}
	if d == nil {
		return nil, fmt.Errorf("dataset has no %s slot", slot)
	}
	return d, nil
}
