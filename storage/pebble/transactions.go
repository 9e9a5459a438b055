package pebble

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/storage"
)

var _ storage.TransactionIndexer = &Transactions{}

// Transactions is the pebble-backed transaction repository. Every
// multi-key write goes through a single batch so the invariants hold even
// if the process crashes between logical steps: a nonce slot is claimed
// atomically with the record insert, and a replacement commits the old
// record's demotion together with the new record's insert.
type Transactions struct {
	store *Storage
	mux   sync.RWMutex
}

func NewTransactions(store *Storage) *Transactions {
	return &Transactions{
		store: store,
		mux:   sync.RWMutex{},
	}
}

func (t *Transactions) InsertPending(rec *models.TransactionRecord) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if rec.Status != models.StatusPending {
		return fmt.Errorf("pending insert with status %s", rec.Status)
	}

	// the nonce slot must be free: any holder is either active, or
	// terminal and still consuming the nonce on chain
	_, err := t.store.get(nonceToIDKey, nonceIndexKey(rec.Account, rec.ChainID, rec.Nonce))
	if err == nil {
		return errs.ErrNonceConflict
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	if _, err := t.store.get(hashToIDKey, hashIndexKey(rec.ChainID, rec.Hash)); err == nil {
		return errs.ErrDuplicateHash
	}

	return WithBatch(t.store, func(batch *pebble.Batch) error {
		return t.writePending(rec, batch)
	})
}

func (t *Transactions) InsertFailed(rec *models.TransactionRecord) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if rec.Status != models.StatusFailed {
		return fmt.Errorf("failed insert with status %s", rec.Status)
	}

	// a rejected broadcast never reached the mempool, so the record keeps
	// no nonce slot and no pending entry, only the durable trail
	return WithBatch(t.store, func(batch *pebble.Batch) error {
		val, err := rec.MarshalBinary()
		if err != nil {
			return err
		}
		if err := t.store.set(recordIDKey, idBytes(rec.LocalID), val, batch); err != nil {
			return err
		}
		if rec.Hash != (common.Hash{}) {
			idVal := idBytes(rec.LocalID)
			if err := t.store.set(hashToIDKey, hashIndexKey(rec.ChainID, rec.Hash), idVal, batch); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Transactions) Replace(oldID uuid.UUID, newRec *models.TransactionRecord) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	old, err := t.getByID(oldID)
	if err != nil {
		return err
	}
	if old.Status.Terminal() {
		return errs.ErrRecordTerminal
	}
	if old.Status != models.StatusPending {
		return errs.ErrNotReplaceable
	}
	if newRec.Nonce != old.Nonce || newRec.ChainID != old.ChainID || newRec.Account != old.Account {
		return fmt.Errorf(
			"replacement record does not match the original nonce slot: %d != %d",
			newRec.Nonce, old.Nonce,
		)
	}

	if _, err := t.store.get(hashToIDKey, hashIndexKey(newRec.ChainID, newRec.Hash)); err == nil {
		return errs.ErrDuplicateHash
	}

	old.Status = models.StatusReplaced
	old.ReplacedBy = newRec.LocalID
	newRec.Status = models.StatusPending
	newRec.Replaces = oldID

	return WithBatch(t.store, func(batch *pebble.Batch) error {
		oldVal, err := old.MarshalBinary()
		if err != nil {
			return err
		}
		if err := t.store.set(recordIDKey, idBytes(old.LocalID), oldVal, batch); err != nil {
			return err
		}
		if err := t.store.delete(pendingSetKey, pendingKey(old.ChainID, old.LocalID), batch); err != nil {
			return err
		}
		// the nonce slot and pending set are repointed to the new record
		// in the same batch
		return t.writePending(newRec, batch)
	})
}

func (t *Transactions) MarkConfirmed(id uuid.UUID, receipt *models.Receipt) error {
	return t.finalize(id, func(rec *models.TransactionRecord) {
		rec.Status = models.StatusConfirmed
		rec.Receipt = receipt
		rec.ConfirmedAtBlock = receipt.BlockNumber
		rec.IsStale = false
	})
}

func (t *Transactions) MarkFailed(id uuid.UUID, receipt *models.Receipt, reason string) error {
	return t.finalize(id, func(rec *models.TransactionRecord) {
		rec.Status = models.StatusFailed
		rec.Receipt = receipt
		if receipt != nil {
			rec.ConfirmedAtBlock = receipt.BlockNumber
		}
		rec.FailureReason = reason
		rec.IsStale = false
	})
}

func (t *Transactions) MarkCancelled(id uuid.UUID, receipt *models.Receipt) error {
	return t.finalize(id, func(rec *models.TransactionRecord) {
		rec.Status = models.StatusCancelled
		rec.Receipt = receipt
		if receipt != nil {
			rec.ConfirmedAtBlock = receipt.BlockNumber
		}
		rec.IsStale = false
	})
}

func (t *Transactions) MarkStale(id uuid.UUID) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	rec, err := t.getByID(id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return errs.ErrRecordTerminal
	}
	if rec.IsStale {
		return nil
	}

	rec.IsStale = true
	val, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return t.store.set(recordIDKey, idBytes(id), val, nil)
}

func (t *Transactions) Get(id uuid.UUID) (*models.TransactionRecord, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	return t.getByID(id)
}

func (t *Transactions) GetByHash(chainID uint64, hash common.Hash) (*models.TransactionRecord, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	idVal, err := t.store.get(hashToIDKey, hashIndexKey(chainID, hash))
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(idVal)
	if err != nil {
		return nil, fmt.Errorf("corrupted hash index entry: %w", err)
	}
	return t.getByID(id)
}

func (t *Transactions) Pending(chainID uint64) ([]*models.TransactionRecord, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	var pending []*models.TransactionRecord
	err := t.store.iterate(pendingSetKey, uint64Bytes(chainID), func(key, _ []byte) error {
		id, err := uuid.FromBytes(key)
		if err != nil {
			return fmt.Errorf("corrupted pending set entry: %w", err)
		}
		rec, err := t.getByID(id)
		if err != nil {
			return err
		}
		pending = append(pending, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (t *Transactions) ActiveByNonce(
	account common.Address,
	chainID uint64,
	nonce uint64,
) (*models.TransactionRecord, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	idVal, err := t.store.get(nonceToIDKey, nonceIndexKey(account, chainID, nonce))
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(idVal)
	if err != nil {
		return nil, fmt.Errorf("corrupted nonce index entry: %w", err)
	}
	return t.getByID(id)
}

func (t *Transactions) NextNonce(account common.Address, chainID uint64) (uint64, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	var next uint64
	err := t.store.iterate(nonceToIDKey, noncePrefix(account, chainID), func(key, _ []byte) error {
		if len(key) != 8 {
			return fmt.Errorf("corrupted nonce index key of length %d", len(key))
		}
		// keys are scanned in ascending nonce order
		next = binary.BigEndian.Uint64(key) + 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// writePending stores the record and claims its indices inside the batch.
func (t *Transactions) writePending(rec *models.TransactionRecord, batch *pebble.Batch) error {
	val, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	idVal := idBytes(rec.LocalID)

	if err := t.store.set(recordIDKey, idVal, val, batch); err != nil {
		return err
	}
	if err := t.store.set(hashToIDKey, hashIndexKey(rec.ChainID, rec.Hash), idVal, batch); err != nil {
		return err
	}
	if err := t.store.set(nonceToIDKey, nonceIndexKey(rec.Account, rec.ChainID, rec.Nonce), idVal, batch); err != nil {
		return err
	}
	return t.store.set(pendingSetKey, pendingKey(rec.ChainID, rec.LocalID), nil, batch)
}

// finalize transitions a record to a terminal status and drops it from the
// pending set, in one batch. Terminal records reject further writes, which
// is what makes re-applying the same receipt a no-op for callers.
func (t *Transactions) finalize(id uuid.UUID, mutate func(rec *models.TransactionRecord)) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	rec, err := t.getByID(id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return errs.ErrRecordTerminal
	}

	mutate(rec)

	return WithBatch(t.store, func(batch *pebble.Batch) error {
		val, err := rec.MarshalBinary()
		if err != nil {
			return err
		}
		if err := t.store.set(recordIDKey, idBytes(id), val, batch); err != nil {
			return err
		}
		return t.store.delete(pendingSetKey, pendingKey(rec.ChainID, id), batch)
	})
}

func (t *Transactions) getByID(id uuid.UUID) (*models.TransactionRecord, error) {
	val, err := t.store.get(recordIDKey, idBytes(id))
	if err != nil {
		return nil, err
	}
	return models.UnmarshalRecord(val, storage.MigrateRecordPayload)
}
