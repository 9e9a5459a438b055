package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is injected at build time with
// -ldflags="-X github.com/mosaicwallet/tx-engine/cmd/version.Version=..."
var Version = "development"

var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the current version of the transaction engine",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("%s\n", Version)
	},
}
