package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rasterlab/raster/internal/activity"
	"github.com/rasterlab/raster/internal/tensor"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show what an activity file resolves to",
	Long: `Load an activity file (or .rpk cache) and print the resolved slots
with their shapes and element types, any unrecognized keys, and the
sibling classifier files found next to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source: %s\n", ds.Source)
	fmt.Fprintf(out, "units: %d\n", ds.Units())
	printSlot(out, "X", ds.X)
	printSlot(out, "Usv", ds.Usv)
	printSlot(out, "Vsv", ds.Vsv)
	printSlot(out, "xy", ds.XY)
	if ds.Empty() {
		fmt.Fprintln(out, "no usable activity data")
	}
	if len(ds.Ignored) > 0 {
		fmt.Fprintf(out, "ignored keys: %v\n", ds.Ignored)
	}

	if cells := activity.LookupIsCell(args[0]); cells != nil {
		fmt.Fprintf(out, "iscell: %s (%d units)\n", cells.Path, len(cells.Mask))
	}
	if med, path := activity.LookupStat(args[0]); med != nil {
		fmt.Fprintf(out, "stat: %s %s\n", path, med.Shape())
	}
	return nil
}

func printSlot(out io.Writer, name string, d *tensor.Dense) {
	if d == nil {
		return
	}
	fmt.Fprintf(out, "%s: %s %s\n", name, d.Shape(), d.DType())
}
