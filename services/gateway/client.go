package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

// FeeSuggestion is the chain's current fee market snapshot.
type FeeSuggestion struct {
	BaseFee     *big.Int
	PriorityFee *big.Int
}

// ChainClient is the thin wrapper over a chain's JSON-RPC provider. It is
// the only suspension surface of the lifecycle components: fee estimation,
// nonce fetch, broadcast and receipt polling all go through it.
type ChainClient interface {
	// TransactionCount returns the account's confirmed transaction count,
	// i.e. the lowest unused nonce from the chain's point of view.
	TransactionCount(ctx context.Context, account common.Address) (uint64, error)

	// EstimateGas simulates the request and returns a gas limit.
	EstimateGas(ctx context.Context, req models.TransactionRequest) (uint64, error)

	// SuggestFees returns the current base fee and a suggested priority fee.
	SuggestFees(ctx context.Context) (FeeSuggestion, error)

	// Broadcast submits a signed transaction. Chain-level rejections are
	// returned as BroadcastRejectedError.
	Broadcast(ctx context.Context, signed models.SignedTransaction) (common.Hash, error)

	// Receipt returns the receipt for a hash, or (nil, nil) while the
	// transaction is not yet included in a block.
	Receipt(ctx context.Context, hash common.Hash) (*models.Receipt, error)

	BlockNumber(ctx context.Context) (uint64, error)
}

var _ ChainClient = &RPCClient{}

// RPCClient implements ChainClient over go-ethereum's ethclient.
type RPCClient struct {
	client  *ethclient.Client
	logger  zerolog.Logger
	chainID uint64
}

func NewRPCClient(endpoint string, chainID uint64, logger zerolog.Logger) (*RPCClient, error) {
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint %s: %w", endpoint, err)
	}

	return &RPCClient{
		client: client,
		logger: logger.With().
			Str("component", "chain-client").
			Uint64("chain-id", chainID).
			Logger(),
		chainID: chainID,
	}, nil
}

func (c *RPCClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	return c.client.NonceAt(ctx, account, nil)
}

func (c *RPCClient) EstimateGas(ctx context.Context, req models.TransactionRequest) (uint64, error) {
	to := req.To
	return c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Value: req.ValueOrZero(),
		Data:  req.Data,
	})
}

func (c *RPCClient) SuggestFees(ctx context.Context) (FeeSuggestion, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeSuggestion{}, err
	}

	tip, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeSuggestion{}, err
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		// pre-1559 chains report no base fee
		baseFee = new(big.Int)
	}

	return FeeSuggestion{
		BaseFee:     baseFee,
		PriorityFee: tip,
	}, nil
}

func (c *RPCClient) Broadcast(ctx context.Context, signed models.SignedTransaction) (common.Hash, error) {
	tx := &gethTypes.Transaction{}
	if err := tx.UnmarshalBinary(signed.RawBytes); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		if reason, rejected := classifyBroadcastError(err); rejected {
			return common.Hash{}, errs.NewBroadcastRejectedError(reason, err)
		}
		return common.Hash{}, err
	}

	c.logger.Debug().
		Str("tx-hash", tx.Hash().Hex()).
		Uint64("nonce", signed.Nonce).
		Msg("transaction broadcast to network")

	return tx.Hash(), nil
}

func (c *RPCClient) Receipt(ctx context.Context, hash common.Hash) (*models.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, err
	}

	rcp := &models.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		BlockHash:   receipt.BlockHash,
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}
	if receipt.EffectiveGasPrice != nil {
		rcp.EffectiveGasPrice = (*hexutil.Big)(receipt.EffectiveGasPrice)
	}
	if receipt.ContractAddress != (common.Address{}) {
		rcp.ContractAddress = receipt.ContractAddress
	}

	return rcp, nil
}

func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}
