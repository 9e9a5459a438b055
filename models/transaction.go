package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionRequest is the immutable intent to move value or call a
// contract. It is produced by a calling flow (swap, send, approve, wrap)
// and never mutated after construction.
type TransactionRequest struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Value   *hexutil.Big   `json:"value"`
	Data    hexutil.Bytes  `json:"data"`
	ChainID uint64         `json:"chainId"`
	// GasLimit is optional. When zero the gas fee estimator
	// computes the limit from a simulation.
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

// ValueOrZero returns the request value, defaulting to zero for requests
// that carry no native amount (approvals, contract calls).
func (r TransactionRequest) ValueOrZero() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return r.Value.ToInt()
}

// PriorityTier selects how aggressively a transaction should be priced.
type PriorityTier string

const (
	PriorityNormal PriorityTier = "normal"
	PriorityFast   PriorityTier = "fast"
	PriorityUrgent PriorityTier = "urgent"
)

// GasFeeQuote is a fee quote for a single submission attempt. Quotes are
// recomputed whenever a transaction is (re)submitted and expire after
// ValidUntilBlock to avoid underpricing against a moving base fee.
type GasFeeQuote struct {
	BaseFee         *hexutil.Big `json:"baseFee"`
	PriorityFee     *hexutil.Big `json:"priorityFee"`
	MaxFee          *hexutil.Big `json:"maxFee"`
	GasLimit        uint64       `json:"gasLimit"`
	ValidUntilBlock uint64       `json:"validUntilBlock"`
}

// MaxFeeOrZero returns the quoted max fee, never nil.
func (q GasFeeQuote) MaxFeeOrZero() *big.Int {
	if q.MaxFee == nil {
		return new(big.Int)
	}
	return q.MaxFee.ToInt()
}

// PriorityFeeOrZero returns the quoted priority fee, never nil.
func (q GasFeeQuote) PriorityFeeOrZero() *big.Int {
	if q.PriorityFee == nil {
		return new(big.Int)
	}
	return q.PriorityFee.ToInt()
}

// SignedTransaction is the product of a single signing attempt. A cancel or
// speed-up produces a new SignedTransaction reusing the same nonce.
type SignedTransaction struct {
	RawBytes []byte
	Hash     common.Hash
	Nonce    uint64
}

// Receipt is the chain's terminal record of a submitted transaction's
// execution outcome.
type Receipt struct {
	TxHash            common.Hash    `json:"transactionHash"`
	BlockNumber       uint64         `json:"blockNumber"`
	BlockHash         common.Hash    `json:"blockHash"`
	GasUsed           uint64         `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big   `json:"effectiveGasPrice"`
	Status            uint64         `json:"status"`
	ContractAddress   common.Address `json:"contractAddress,omitempty"`
	RevertReason      string         `json:"revertReason,omitempty"`
}

// Successful reports whether the transaction executed without reverting.
func (r *Receipt) Successful() bool {
	return r.Status == 1
}
