package mocks

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/mosaicwallet/tx-engine/models"
)

const ChainID = uint64(1)

var Account = common.HexToAddress("0xf02c1c8e6114b1dbe8937a39260b5b0a374432bb")

func NewRequest(nonce uint64) models.TransactionRequest {
	return models.TransactionRequest{
		From:    Account,
		To:      common.HexToAddress(fmt.Sprintf("0x0%d", nonce+1)),
		Value:   (*hexutil.Big)(big.NewInt(1337)),
		Data:    hexutil.Bytes{},
		ChainID: ChainID,
	}
}

func NewQuote() models.GasFeeQuote {
	return models.GasFeeQuote{
		BaseFee:         (*hexutil.Big)(big.NewInt(100)),
		PriorityFee:     (*hexutil.Big)(big.NewInt(10)),
		MaxFee:          (*hexutil.Big)(big.NewInt(210)),
		GasLimit:        21_000,
		ValidUntilBlock: 14,
	}
}

// NewPendingRecord builds a pending send record claiming the given nonce,
// the shape the orchestrator produces right after a successful broadcast.
func NewPendingRecord(nonce uint64) *models.TransactionRecord {
	req := NewRequest(nonce)
	return &models.TransactionRecord{
		LocalID: uuid.New(),
		Hash:    common.HexToHash(fmt.Sprintf("0xff%d", nonce)),
		ChainID: ChainID,
		Account: Account,
		Nonce:   nonce,
		Status:  models.StatusPending,
		TypeInfo: models.TypeInfo{
			Kind:      models.TxKindSend,
			Recipient: req.To,
			Amount:    req.Value,
		},
		Request:          req,
		FeeQuote:         NewQuote(),
		SubmittedAtBlock: 10,
		SubmittedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func NewReceipt(rec *models.TransactionRecord, block uint64, status uint64) *models.Receipt {
	return &models.Receipt{
		TxHash:            rec.Hash,
		BlockNumber:       block,
		BlockHash:         common.HexToHash(fmt.Sprintf("0x1337%d", block)),
		GasUsed:           21_000,
		EffectiveGasPrice: (*hexutil.Big)(big.NewInt(110)),
		Status:            status,
	}
}
