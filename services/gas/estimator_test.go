package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/services/gateway"
	"github.com/mosaicwallet/tx-engine/services/gateway/mocks"
	storageMock "github.com/mosaicwallet/tx-engine/storage/mocks"
)

func newTestEstimator(t *testing.T, client gateway.ChainClient) *Estimator {
	return NewEstimator(client, DefaultConfig(), zerolog.New(zerolog.NewTestWriter(t)))
}

func Test_Estimate(t *testing.T) {
	t.Run("computes quote from fee suggestion", func(t *testing.T) {
		client := &mocks.ChainClient{}
		client.
			On("SuggestFees", mock.Anything).
			Return(gateway.FeeSuggestion{
				BaseFee:     big.NewInt(100),
				PriorityFee: big.NewInt(10),
			}, nil)
		client.
			On("EstimateGas", mock.Anything, mock.Anything).
			Return(uint64(50_000), nil)
		client.
			On("BlockNumber", mock.Anything).
			Return(uint64(10), nil)

		quote, err := newTestEstimator(t, client).Estimate(
			context.Background(),
			storageMock.NewRequest(0),
			models.PriorityNormal,
		)
		require.NoError(t, err)

		// simulated limit plus the drift buffer
		require.Equal(t, uint64(60_000), quote.GasLimit)
		// twice the base fee plus the tip
		require.Equal(t, big.NewInt(210), quote.MaxFeeOrZero())
		require.Equal(t, big.NewInt(10), quote.PriorityFeeOrZero())
		require.Equal(t, uint64(14), quote.ValidUntilBlock)
	})

	t.Run("explicit gas limit skips simulation", func(t *testing.T) {
		client := &mocks.ChainClient{}
		client.
			On("SuggestFees", mock.Anything).
			Return(gateway.FeeSuggestion{
				BaseFee:     big.NewInt(100),
				PriorityFee: big.NewInt(10),
			}, nil)
		client.
			On("BlockNumber", mock.Anything).
			Return(uint64(10), nil)

		req := storageMock.NewRequest(0)
		req.GasLimit = 21_000

		quote, err := newTestEstimator(t, client).Estimate(context.Background(), req, models.PriorityNormal)
		require.NoError(t, err)
		require.Equal(t, uint64(21_000), quote.GasLimit)
		client.AssertNotCalled(t, "EstimateGas", mock.Anything, mock.Anything)
	})

	t.Run("urgent tier bumps the priority fee", func(t *testing.T) {
		client := &mocks.ChainClient{}
		client.
			On("SuggestFees", mock.Anything).
			Return(gateway.FeeSuggestion{
				BaseFee:     big.NewInt(100),
				PriorityFee: big.NewInt(10),
			}, nil)
		client.
			On("BlockNumber", mock.Anything).
			Return(uint64(10), nil)

		req := storageMock.NewRequest(0)
		req.GasLimit = 21_000

		quote, err := newTestEstimator(t, client).Estimate(context.Background(), req, models.PriorityUrgent)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(15), quote.PriorityFeeOrZero())
	})

	t.Run("provider failure wraps as estimation error", func(t *testing.T) {
		client := &mocks.ChainClient{}
		client.
			On("SuggestFees", mock.Anything).
			Return(gateway.FeeSuggestion{}, fmt.Errorf("connection refused"))

		_, err := newTestEstimator(t, client).Estimate(
			context.Background(),
			storageMock.NewRequest(0),
			models.PriorityNormal,
		)

		var estErr *errs.EstimationError
		require.ErrorAs(t, err, &estErr)
	})
}

func Test_EstimateReplacement(t *testing.T) {
	original := models.GasFeeQuote{
		BaseFee:     (*hexutil.Big)(big.NewInt(5)),
		PriorityFee: (*hexutil.Big)(big.NewInt(2)),
		MaxFee:      (*hexutil.Big)(big.NewInt(10)),
		GasLimit:    21_000,
	}

	newClient := func() *mocks.ChainClient {
		client := &mocks.ChainClient{}
		client.
			On("SuggestFees", mock.Anything).
			Return(gateway.FeeSuggestion{
				BaseFee:     big.NewInt(4),
				PriorityFee: big.NewInt(1),
			}, nil)
		client.
			On("BlockNumber", mock.Anything).
			Return(uint64(10), nil)
		return client
	}

	req := storageMock.NewRequest(0)
	req.GasLimit = 21_000

	t.Run("proposed fee below the minimum bump is rejected", func(t *testing.T) {
		// original max fee 10 requires at least 12 to replace
		_, err := newTestEstimator(t, newClient()).EstimateReplacement(
			context.Background(), req, original, big.NewInt(11), models.PriorityFast,
		)

		var feeErr *errs.FeeTooLowError
		require.ErrorAs(t, err, &feeErr)
		require.Equal(t, big.NewInt(11), feeErr.Proposed)
		require.Equal(t, big.NewInt(12), feeErr.Minimum)
		require.False(t, errors.Is(err, errs.ErrNotFound))
	})

	t.Run("proposed fee at the minimum bump is accepted", func(t *testing.T) {
		quote, err := newTestEstimator(t, newClient()).EstimateReplacement(
			context.Background(), req, original, big.NewInt(12), models.PriorityFast,
		)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(12), quote.MaxFeeOrZero())
	})

	t.Run("without a proposal the minimum bump wins over a cold market", func(t *testing.T) {
		quote, err := newTestEstimator(t, newClient()).EstimateReplacement(
			context.Background(), req, original, nil, models.PriorityNormal,
		)
		require.NoError(t, err)

		// fresh estimate would price max fee 9 and priority 1, both below
		// the replacement minimums of 12 and 3
		require.Equal(t, big.NewInt(12), quote.MaxFeeOrZero())
		require.Equal(t, big.NewInt(3), quote.PriorityFeeOrZero())
	})
}
