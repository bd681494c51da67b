// Package cli implements the raster command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "raster",
	Short: "Inspect and convert neural activity recordings",
	Long: `raster loads neural activity recordings saved as .mat, .npy, or .npz,
normalizes them into an activity matrix or a factorized pair, and
converts between the on-disk formats and the .rpk dataset cache.`,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log verbosity: debug, info, warn, or error")
}

// setupLogging routes loader messages to stderr at the requested level,
// keeping stdout clean for command output.
func setupLogging(_ *cobra.Command, _ []string) error {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
