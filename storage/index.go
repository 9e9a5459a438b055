package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mosaicwallet/tx-engine/models"
)

// TransactionIndexer is the durable, ordered record of all known
// transactions per account and chain. It is the single source of truth for
// record state: the orchestrator and the watcher mutate records exclusively
// through the atomic operations below, never through get/mutate/set cycles,
// so concurrently-initiated transactions from the same account cannot race.
//
// Writes to records in a terminal status fail with ErrRecordTerminal,
// which is what makes watcher reconciliation idempotent.
type TransactionIndexer interface {
	// InsertPending stores a newly broadcast record and claims its
	// (account, chain, nonce) slot. Fails with ErrNonceConflict when the
	// slot is held by an active or confirmed record, and with
	// ErrDuplicateHash when the hash is already indexed on the chain.
	InsertPending(rec *models.TransactionRecord) error

	// InsertFailed stores a terminal failed record for a broadcast
	// rejection. The record keeps a durable trail of the attempt but does
	// not claim a nonce slot, since the transaction never reached the
	// mempool.
	InsertFailed(rec *models.TransactionRecord) error

	// Replace atomically marks the old record Replaced and inserts the
	// new pending record on the same nonce. Both writes commit together;
	// a reader never observes two active records on one nonce.
	Replace(oldID uuid.UUID, newRec *models.TransactionRecord) error

	// MarkConfirmed finalizes a record with a successful receipt.
	MarkConfirmed(id uuid.UUID, receipt *models.Receipt) error

	// MarkFailed finalizes a record with a revert receipt, keeping the
	// receipt for diagnostics.
	MarkFailed(id uuid.UUID, receipt *models.Receipt, reason string) error

	// MarkCancelled finalizes a confirmed cancellation record. The record
	// keeps occupying its nonce so the account's nonce sequence stays
	// gapless.
	MarkCancelled(id uuid.UUID, receipt *models.Receipt) error

	// MarkStale flags a long-pending record for the UI layer. It is not a
	// status transition and may be applied repeatedly.
	MarkStale(id uuid.UUID) error

	Get(id uuid.UUID) (*models.TransactionRecord, error)
	GetByHash(chainID uint64, hash common.Hash) (*models.TransactionRecord, error)

	// Pending lists all pending records for a chain, the watcher's work
	// set on each tick.
	Pending(chainID uint64) ([]*models.TransactionRecord, error)

	// ActiveByNonce returns the record currently holding the nonce slot,
	// or ErrNotFound.
	ActiveByNonce(account common.Address, chainID uint64, nonce uint64) (*models.TransactionRecord, error)

	// NextNonce returns one past the highest nonce held by an active or
	// confirmed record of the account on the chain, or 0 when the account
	// has no records. Callers combine it with the chain-reported
	// transaction count.
	NextNonce(account common.Address, chainID uint64) (uint64, error)
}
