package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rasterlab/raster/internal/activity"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out.rpk>",
	Short: "Convert an activity file into an .rpk dataset cache",
	Long: `Load an activity file, resolve its contents, and save the result as
an .rpk dataset cache that later loads take as-is.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ds, err := activity.Load(args[0])
	if err != nil {
		return err
	}
	if err := activity.SaveDataset(args[1], ds); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
	return nil
}
