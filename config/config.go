package config

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// PollingTier selects how aggressively a chain's watcher polls for
// receipts. Low-latency chains use the fast tier, chains with long block
// times the slow one.
type PollingTier string

const (
	PollingTierFast PollingTier = "fast"
	PollingTierSlow PollingTier = "slow"
)

const (
	FastPollingInterval = 3 * time.Second
	SlowPollingInterval = 12 * time.Second
)

// Interval returns the watcher tick interval for the tier.
func (t PollingTier) Interval() time.Duration {
	if t == PollingTierSlow {
		return SlowPollingInterval
	}
	return FastPollingInterval
}

// ChainConfig holds the per-chain settings for one supported network.
type ChainConfig struct {
	ChainID     uint64
	RPCEndpoint string
	PollingTier PollingTier
}

type Config struct {
	// DatabaseDir is the directory for the transaction record database
	DatabaseDir string
	// Chains are the networks the engine submits to and watches
	Chains []ChainConfig
	// SignerKey is the hex-encoded ECDSA private key used for signing
	SignerKey string
	// SignerPassword guards wallet unlock for signing
	SignerPassword string
	// ReplacementFeeFactor is the minimum multiplier over the replaced
	// transaction's fees for a cancel or speed-up to be accepted by nodes
	ReplacementFeeFactor float64
	// GasLimitBuffer is the fraction added on top of estimated gas
	GasLimitBuffer float64
	// QuoteValidityBlocks is how many blocks a fee quote stays usable
	QuoteValidityBlocks uint64
	// StaleAfterBlocks is how far the head must pass the submission block
	// before a receiptless transaction is flagged stale
	StaleAfterBlocks uint64
	// StaleAfterMisses is the consecutive receipt misses required before
	// the staleness flag is considered
	StaleAfterMisses int
	// RateLimit is the per-chain requests per second made against the RPC
	// endpoint, zero disables limiting
	RateLimit uint64
	// MetricsPort is the port for the metrics server
	MetricsPort int
	// LogLevel defines verbosity of the log output
	LogLevel zerolog.Level
	// LogWriter defines the log output
	LogWriter io.Writer
}

func (c *Config) Validate() error {
	if c.DatabaseDir == "" {
		return fmt.Errorf("database dir required")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain required")
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain ID must be non-zero")
		}
		if chain.RPCEndpoint == "" {
			return fmt.Errorf("RPC endpoint required for chain %d", chain.ChainID)
		}
		if chain.PollingTier != PollingTierFast && chain.PollingTier != PollingTierSlow {
			return fmt.Errorf(
				"polling tier %s for chain %d not supported, valid values are ('fast', 'slow')",
				chain.PollingTier, chain.ChainID,
			)
		}
		if _, ok := seen[chain.ChainID]; ok {
			return fmt.Errorf("chain %d configured twice", chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}
	}
	if c.ReplacementFeeFactor < 1 {
		return fmt.Errorf("replacement fee factor must be >= 1")
	}
	if c.StaleAfterMisses <= 0 {
		return fmt.Errorf("stale-after-misses must be > 0")
	}
	return nil
}
