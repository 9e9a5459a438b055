package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mosaicwallet/tx-engine/cmd/run"
	"github.com/mosaicwallet/tx-engine/cmd/version"
)

var rootCmd = &cobra.Command{
	Use:   "tx-engine",
	Short: "Commands for the wallet transaction engine",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("failed to run command")
		os.Exit(1)
	}
}

func main() {
	rootCmd.AddCommand(version.Cmd)
	rootCmd.AddCommand(run.Cmd)

	Execute()
}
