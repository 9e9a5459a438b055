package gas

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/services/gateway"
)

const (
	// DefaultReplacementFeeFactor is the minimum multiplier a replacement
	// (cancel or speed-up) must apply to the original fees for the chain
	// to accept it over the original on the same nonce.
	DefaultReplacementFeeFactor = 1.2

	// DefaultGasLimitBuffer pads the simulated gas limit so state drift
	// between simulation and inclusion does not run the transaction out
	// of gas.
	DefaultGasLimitBuffer = 0.2

	// DefaultQuoteValidityBlocks bounds how many blocks a quote may be
	// reused before it risks underpricing against a moving base fee.
	DefaultQuoteValidityBlocks = 4
)

// priority fee multipliers per tier, in percent
var tierBumpPercent = map[models.PriorityTier]int64{
	models.PriorityNormal: 100,
	models.PriorityFast:   125,
	models.PriorityUrgent: 150,
}

type Config struct {
	ReplacementFeeFactor float64
	GasLimitBuffer       float64
	QuoteValidityBlocks  uint64
}

func DefaultConfig() Config {
	return Config{
		ReplacementFeeFactor: DefaultReplacementFeeFactor,
		GasLimitBuffer:       DefaultGasLimitBuffer,
		QuoteValidityBlocks:  DefaultQuoteValidityBlocks,
	}
}

// Estimator computes fee quotes for submissions and replacements. It is a
// pure request/response unit: transient RPC failures are wrapped as
// EstimationError and retried by the caller, never internally.
type Estimator struct {
	client gateway.ChainClient
	config Config
	logger zerolog.Logger
}

func NewEstimator(client gateway.ChainClient, config Config, logger zerolog.Logger) *Estimator {
	return &Estimator{
		client: client,
		config: config,
		logger: logger.With().Str("component", "gas-estimator").Logger(),
	}
}

// Estimate produces a fresh quote for the request at the given priority tier.
func (e *Estimator) Estimate(
	ctx context.Context,
	req models.TransactionRequest,
	tier models.PriorityTier,
) (models.GasFeeQuote, error) {
	fees, err := e.client.SuggestFees(ctx)
	if err != nil {
		return models.GasFeeQuote{}, errs.NewEstimationError(err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimated, err := e.client.EstimateGas(ctx, req)
		if err != nil {
			return models.GasFeeQuote{}, errs.NewEstimationError(err)
		}
		gasLimit = estimated + uint64(float64(estimated)*e.config.GasLimitBuffer)
	}

	block, err := e.client.BlockNumber(ctx)
	if err != nil {
		return models.GasFeeQuote{}, errs.NewEstimationError(err)
	}

	priority := mulPercent(fees.PriorityFee, tierBumpPercent[tier])
	// max fee covers two full base fee increases plus the tip
	maxFee := new(big.Int).Mul(fees.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, priority)

	quote := models.GasFeeQuote{
		BaseFee:         (*hexutil.Big)(fees.BaseFee),
		PriorityFee:     (*hexutil.Big)(priority),
		MaxFee:          (*hexutil.Big)(maxFee),
		GasLimit:        gasLimit,
		ValidUntilBlock: block + e.config.QuoteValidityBlocks,
	}

	e.logger.Debug().
		Uint64("gas-limit", quote.GasLimit).
		Str("max-fee", maxFee.String()).
		Uint64("valid-until-block", quote.ValidUntilBlock).
		Msg("computed fee quote")

	return quote, nil
}

// EstimateReplacement produces a quote for a replacement of a transaction
// priced with the original quote. The result satisfies the chain's minimum
// replacement fee rules: both the max fee and the priority fee are bumped
// by at least the replacement factor. A caller-proposed max fee below that
// minimum fails with FeeTooLowError instead of being raised silently, so
// the user can be prompted.
func (e *Estimator) EstimateReplacement(
	ctx context.Context,
	req models.TransactionRequest,
	original models.GasFeeQuote,
	proposedMaxFee *big.Int,
	tier models.PriorityTier,
) (models.GasFeeQuote, error) {
	minMaxFee := bump(original.MaxFeeOrZero(), e.config.ReplacementFeeFactor)
	minPriority := bump(original.PriorityFeeOrZero(), e.config.ReplacementFeeFactor)

	if proposedMaxFee != nil && proposedMaxFee.Cmp(minMaxFee) < 0 {
		return models.GasFeeQuote{}, errs.NewFeeTooLowError(proposedMaxFee, minMaxFee)
	}

	quote, err := e.Estimate(ctx, req, tier)
	if err != nil {
		return models.GasFeeQuote{}, err
	}

	maxFee := maxBig(quote.MaxFeeOrZero(), minMaxFee)
	if proposedMaxFee != nil {
		maxFee = maxBig(maxFee, proposedMaxFee)
	}
	priority := maxBig(quote.PriorityFeeOrZero(), minPriority)
	if priority.Cmp(maxFee) > 0 {
		priority = maxFee
	}

	quote.MaxFee = (*hexutil.Big)(maxFee)
	quote.PriorityFee = (*hexutil.Big)(priority)

	return quote, nil
}

// bump multiplies the fee by the factor, rounding up so the result never
// undershoots the chain's minimum.
func bump(fee *big.Int, factor float64) *big.Int {
	percent := big.NewInt(int64(factor * 100))
	result := new(big.Int).Mul(fee, percent)
	result.Add(result, big.NewInt(99))
	return result.Div(result, big.NewInt(100))
}

func mulPercent(v *big.Int, percent int64) *big.Int {
	result := new(big.Int).Mul(v, big.NewInt(percent))
	return result.Div(result, big.NewInt(100))
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
