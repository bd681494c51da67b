// Command raster inspects and converts neural activity recordings.
package main

import (
	"os"

	"github.com/rasterlab/raster/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
