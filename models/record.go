package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// Status is the user-visible lifecycle status of a transaction record.
// Only these five statuses are ever persisted; the pre-broadcast phases
// (building, signing, broadcasting) exist solely inside the orchestrator
// and leave no trace when they fail.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusReplaced  Status = "replaced"
)

// Terminal reports whether the status is absorbing. A record never leaves
// a terminal status once entered.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled, StatusReplaced:
		return true
	default:
		return false
	}
}

// TxKind discriminates the semantic payload of a transaction. It is used
// for downstream presentation and notifications only, never for lifecycle
// decisions.
type TxKind string

const (
	TxKindSwap    TxKind = "swap"
	TxKindSend    TxKind = "send"
	TxKindApprove TxKind = "approve"
	TxKindWrap    TxKind = "wrap"
	// TxKindCancel marks the self-transfer replacement submitted to
	// cancel a pending transaction on the same nonce.
	TxKindCancel TxKind = "cancel"
)

// TypeInfo is the discriminated payload describing what a transaction does.
// Only the fields relevant to the Kind are set.
type TypeInfo struct {
	Kind TxKind `json:"kind"`

	// swap
	InputToken   common.Address `json:"inputToken,omitempty"`
	OutputToken  common.Address `json:"outputToken,omitempty"`
	InputAmount  *hexutil.Big   `json:"inputAmount,omitempty"`
	OutputAmount *hexutil.Big   `json:"outputAmount,omitempty"`

	// send
	Recipient common.Address `json:"recipient,omitempty"`
	Amount    *hexutil.Big   `json:"amount,omitempty"`

	// approve
	Spender common.Address `json:"spender,omitempty"`

	// wrap
	Unwrap bool `json:"unwrap,omitempty"`
}

// TransactionRecord is the durable unit of transaction state. Records are
// created at submission, advanced by the orchestrator (pre-broadcast) and
// the watcher (post-broadcast), and never deleted, only marked terminal.
type TransactionRecord struct {
	// LocalID is the stable identity of the record, generated locally
	// before the transaction has a hash. Never reused.
	LocalID uuid.UUID `json:"localId"`

	// Hash is empty until broadcast and changes across replacements.
	Hash    common.Hash    `json:"hash,omitempty"`
	ChainID uint64         `json:"chainId"`
	Account common.Address `json:"account"`
	Nonce   uint64         `json:"nonce"`

	Status   Status   `json:"status"`
	TypeInfo TypeInfo `json:"typeInfo"`

	Request  TransactionRequest `json:"request"`
	FeeQuote GasFeeQuote        `json:"feeQuote"`

	SubmittedAtBlock uint64    `json:"submittedAtBlock"`
	SubmittedAt      time.Time `json:"submittedAt"`
	ConfirmedAtBlock uint64    `json:"confirmedAtBlock,omitempty"`

	// Receipt is set only on terminal success or failure.
	Receipt *Receipt `json:"receipt,omitempty"`

	// FailureReason preserves the provider's rejection reason for records
	// that failed at broadcast, and the revert reason for reverted ones.
	FailureReason string `json:"failureReason,omitempty"`

	// Replaces and ReplacedBy link the replacement chain on a nonce.
	Replaces   uuid.UUID `json:"replaces,omitempty"`
	ReplacedBy uuid.UUID `json:"replacedBy,omitempty"`

	// IsStale is set by the watcher when the record sat pending past the
	// staleness threshold. It is a UI signal, not a status change.
	IsStale bool `json:"isStale,omitempty"`
}

// RecordSchemaVersion is the current version of the persisted record layout.
// Older envelopes are migrated forward on read.
const RecordSchemaVersion = 3

// recordEnvelope wraps a serialized record with its schema version.
type recordEnvelope struct {
	Version uint64          `json:"version"`
	Record  json.RawMessage `json:"record"`
}

// Active reports whether the record still occupies its nonce slot,
// i.e. it is not terminal.
func (r *TransactionRecord) Active() bool {
	return !r.Status.Terminal()
}

// MarshalBinary encodes the record as a versioned envelope.
func (r *TransactionRecord) MarshalBinary() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordEnvelope{
		Version: RecordSchemaVersion,
		Record:  raw,
	})
}

// UnmarshalRecord decodes a versioned envelope into a record, migrating
// older payloads forward with the provided migration set.
func UnmarshalRecord(data []byte, migrate func(version uint64, payload map[string]any) (map[string]any, error)) (*TransactionRecord, error) {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode record envelope: %w", err)
	}

	raw := env.Record
	if env.Version < RecordSchemaVersion {
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode record payload: %w", err)
		}
		migrated, err := migrate(env.Version, payload)
		if err != nil {
			return nil, err
		}
		raw, err = json.Marshal(migrated)
		if err != nil {
			return nil, err
		}
	}

	var rec TransactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// FinalizedTransaction is the payload delivered to notification and
// analytics subscribers when a record reaches a terminal status.
type FinalizedTransaction struct {
	LocalID  uuid.UUID
	Hash     common.Hash
	ChainID  uint64
	Status   Status
	TypeInfo TypeInfo
}
