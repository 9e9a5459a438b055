package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mosaicwallet/tx-engine/bootstrap"
	"github.com/mosaicwallet/tx-engine/config"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the wallet transaction engine",
	RunE: func(command *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(command.Context())
		defer cancel()

		if err := parseConfigFromFlags(); err != nil {
			return fmt.Errorf("failed to parse flags: %w", err)
		}

		done := make(chan struct{})
		ready := make(chan struct{})
		once := sync.Once{}
		closeReady := func() {
			once.Do(func() {
				close(ready)
			})
		}
		go func() {
			defer close(done)
			// In case an error happens before ready is called we need to close the ready channel
			defer closeReady()

			err := bootstrap.Run(ctx, cfg, closeReady)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Err(err).Msg("transaction engine runtime error")
			}
		}()

		<-ready

		osSig := make(chan os.Signal, 1)
		signal.Notify(osSig, syscall.SIGINT, syscall.SIGTERM)

		// wait for the engine to exit or for a shutdown signal
		select {
		case <-osSig:
			log.Info().Msg("OS Signal to shutdown received, shutting down")
			cancel()
		case <-done:
			log.Info().Msg("done, shutting down")
		}

		// Wait for the engine to completely stop
		<-done

		return nil
	},
}

var (
	cfg       = &config.Config{}
	chains    []string
	logLevel  string
	logWriter string
)

func parseConfigFromFlags() error {
	for _, entry := range chains {
		// each entry has the form "{chain-id},{rpc-endpoint},{polling-tier}"
		parts := strings.Split(entry, ",")
		if len(parts) != 3 {
			return fmt.Errorf("wrong format for chain: %s", entry)
		}
		chainID, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chain ID: %s", parts[0])
		}
		cfg.Chains = append(cfg.Chains, config.ChainConfig{
			ChainID:     chainID,
			RPCEndpoint: parts[1],
			PollingTier: config.PollingTier(parts[2]),
		})
	}

	// configure logging
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", logLevel)
	}
	cfg.LogLevel = level

	if logWriter == "stderr" {
		cfg.LogWriter = os.Stderr
	} else {
		cfg.LogWriter = zerolog.NewConsoleWriter()
	}

	return cfg.Validate()
}

func init() {
	Cmd.Flags().StringVar(&cfg.DatabaseDir, "database-dir", "./db", "Path to the directory for the database")
	Cmd.Flags().StringArrayVar(&chains, "chain", nil, `Chain to submit to and watch, defined following the schema: {chain-id},{rpc-endpoint},{polling-tier} (e.g. "1,https://eth.example.org,fast"). Repeat the flag for every chain.`)
	Cmd.Flags().StringVar(&cfg.SignerKey, "signer-key", "", "ECDSA private key used for signing transactions. WARNING: This should only be used locally or for testing, never in production.")
	Cmd.Flags().StringVar(&cfg.SignerPassword, "signer-password", "", "Password guarding wallet unlock for the in-memory signer")
	Cmd.Flags().Float64Var(&cfg.ReplacementFeeFactor, "replacement-fee-factor", 1.2, "Minimum fee multiplier over a replaced transaction for a cancel or speed-up to be accepted")
	Cmd.Flags().Float64Var(&cfg.GasLimitBuffer, "gas-limit-buffer", 0.2, "Fraction added on top of the estimated gas limit")
	Cmd.Flags().Uint64Var(&cfg.QuoteValidityBlocks, "quote-validity-blocks", 4, "Number of blocks a fee quote stays usable")
	Cmd.Flags().Uint64Var(&cfg.StaleAfterBlocks, "stale-after-blocks", 30, "Blocks past the submission block before a receiptless transaction is flagged stale")
	Cmd.Flags().IntVar(&cfg.StaleAfterMisses, "stale-after-misses", 5, "Consecutive receipt misses required before the staleness flag is considered")
	Cmd.Flags().Uint64Var(&cfg.RateLimit, "rate-limit", 50, "Rate-limit requests per second made by the client against each RPC endpoint, zero disables limiting")
	Cmd.Flags().IntVar(&cfg.MetricsPort, "metrics-port", 9091, "Port for the metrics server")
	Cmd.Flags().StringVar(&logLevel, "log-level", "debug", "Define verbosity of the log output ('debug', 'info', 'warn', 'error', 'fatal', 'panic')")
	Cmd.Flags().StringVar(&logWriter, "log-writer", "stderr", "Log writer used for output ('stderr', 'console')")
}
