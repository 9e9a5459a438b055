package signer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func newTestSigner(t *testing.T) *InMemorySigner {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return NewInMemorySigner(key, "open sesame")
}

func testRequest() (models.TransactionRequest, models.GasFeeQuote) {
	req := models.TransactionRequest{
		From:    common.HexToAddress("0x01"),
		To:      common.HexToAddress("0x02"),
		Value:   (*hexutil.Big)(big.NewInt(1337)),
		ChainID: 1,
	}
	quote := models.GasFeeQuote{
		BaseFee:     (*hexutil.Big)(big.NewInt(100)),
		PriorityFee: (*hexutil.Big)(big.NewInt(10)),
		MaxFee:      (*hexutil.Big)(big.NewInt(210)),
		GasLimit:    21_000,
	}
	return req, quote
}

func Test_Sign(t *testing.T) {
	t.Run("produces a decodable dynamic fee transaction", func(t *testing.T) {
		s := newTestSigner(t)
		req, quote := testRequest()

		signed, err := s.Sign(context.Background(), req, 5, quote)
		require.NoError(t, err)
		require.Equal(t, uint64(5), signed.Nonce)

		tx := &gethTypes.Transaction{}
		require.NoError(t, tx.UnmarshalBinary(signed.RawBytes))

		require.Equal(t, signed.Hash, tx.Hash())
		require.Equal(t, uint8(gethTypes.DynamicFeeTxType), tx.Type())
		require.Equal(t, uint64(5), tx.Nonce())
		require.Equal(t, big.NewInt(210), tx.GasFeeCap())
		require.Equal(t, big.NewInt(10), tx.GasTipCap())
		require.Equal(t, uint64(21_000), tx.Gas())
		require.Equal(t, req.To, *tx.To())
		require.Equal(t, big.NewInt(1337), tx.Value())

		sender, err := gethTypes.Sender(gethTypes.LatestSignerForChainID(big.NewInt(1)), tx)
		require.NoError(t, err)
		require.Equal(t, s.Address(), sender)
	})

	t.Run("cancelled context models a dismissed prompt", func(t *testing.T) {
		s := newTestSigner(t)
		req, quote := testRequest()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Sign(ctx, req, 5, quote)
		require.ErrorIs(t, err, errs.ErrSigningRejected)
	})

	t.Run("locked wallet rejects signing until unlocked", func(t *testing.T) {
		s := newTestSigner(t)
		req, quote := testRequest()

		s.Lock()
		_, err := s.Sign(context.Background(), req, 5, quote)
		require.ErrorIs(t, err, errs.ErrWalletLocked)

		require.ErrorIs(t, s.Unlock("wrong"), errs.ErrWalletLocked)

		require.NoError(t, s.Unlock("open sesame"))
		_, err = s.Sign(context.Background(), req, 5, quote)
		require.NoError(t, err)
	})
}
