package pebble

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/storage/mocks"
)

func runDB(name string, t *testing.T, f func(t *testing.T, db *Storage)) {
	dir := t.TempDir()

	db, err := New(dir, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)

	t.Run(name, func(t *testing.T) {
		f(t, db)
	})
}

func Test_InsertPending(t *testing.T) {
	runDB("insert and get back", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(rec))

		ret, err := txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.Equal(t, rec, ret)

		byHash, err := txs.GetByHash(rec.ChainID, rec.Hash)
		require.NoError(t, err)
		require.Equal(t, rec.LocalID, byHash.LocalID)
	})

	runDB("nonce slot is exclusive", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		first := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(first))

		second := mocks.NewPendingRecord(5)
		err := txs.InsertPending(second)
		require.ErrorIs(t, err, errs.ErrNonceConflict)

		// the loser left no trace
		_, err = txs.Get(second.LocalID)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	runDB("duplicate hash rejected", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		first := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(first))

		second := mocks.NewPendingRecord(6)
		second.Hash = first.Hash
		require.ErrorIs(t, txs.InsertPending(second), errs.ErrDuplicateHash)
	})

	runDB("non-existing record", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		_, err := txs.Get(uuid.New())
		require.ErrorIs(t, err, errs.ErrNotFound)

		_, err = txs.GetByHash(mocks.ChainID, common.HexToHash("0x10"))
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func Test_Finalize(t *testing.T) {
	runDB("confirm removes from pending set", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(rec))

		receipt := mocks.NewReceipt(rec, 100, 1)
		require.NoError(t, txs.MarkConfirmed(rec.LocalID, receipt))

		ret, err := txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.Equal(t, models.StatusConfirmed, ret.Status)
		require.Equal(t, uint64(100), ret.ConfirmedAtBlock)
		require.Equal(t, receipt, ret.Receipt)

		pending, err := txs.Pending(mocks.ChainID)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	runDB("terminal records reject writes", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(rec))

		receipt := mocks.NewReceipt(rec, 100, 1)
		require.NoError(t, txs.MarkConfirmed(rec.LocalID, receipt))

		require.ErrorIs(t, txs.MarkConfirmed(rec.LocalID, receipt), errs.ErrRecordTerminal)
		require.ErrorIs(t, txs.MarkFailed(rec.LocalID, receipt, "reverted"), errs.ErrRecordTerminal)
		require.ErrorIs(t, txs.MarkCancelled(rec.LocalID, receipt), errs.ErrRecordTerminal)
		require.ErrorIs(t, txs.MarkStale(rec.LocalID), errs.ErrRecordTerminal)
	})

	runDB("failed keeps revert reason", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(rec))

		receipt := mocks.NewReceipt(rec, 100, 0)
		require.NoError(t, txs.MarkFailed(rec.LocalID, receipt, "execution reverted"))

		ret, err := txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.Equal(t, models.StatusFailed, ret.Status)
		require.Equal(t, "execution reverted", ret.FailureReason)
	})

	runDB("stale flag is sticky until finalized", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(rec))

		require.NoError(t, txs.MarkStale(rec.LocalID))
		// flagging again is a no-op
		require.NoError(t, txs.MarkStale(rec.LocalID))

		ret, err := txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.True(t, ret.IsStale)
		require.Equal(t, models.StatusPending, ret.Status)

		receipt := mocks.NewReceipt(rec, 100, 1)
		require.NoError(t, txs.MarkConfirmed(rec.LocalID, receipt))

		ret, err = txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.False(t, ret.IsStale)
	})
}

func Test_Replace(t *testing.T) {
	runDB("replacement repoints the nonce slot", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		old := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(old))

		repl := mocks.NewPendingRecord(5)
		repl.Hash = common.HexToHash("0xabcd")
		require.NoError(t, txs.Replace(old.LocalID, repl))

		oldRet, err := txs.Get(old.LocalID)
		require.NoError(t, err)
		require.Equal(t, models.StatusReplaced, oldRet.Status)
		require.Equal(t, repl.LocalID, oldRet.ReplacedBy)

		newRet, err := txs.Get(repl.LocalID)
		require.NoError(t, err)
		require.Equal(t, models.StatusPending, newRet.Status)
		require.Equal(t, old.LocalID, newRet.Replaces)

		active, err := txs.ActiveByNonce(mocks.Account, mocks.ChainID, 5)
		require.NoError(t, err)
		require.Equal(t, repl.LocalID, active.LocalID)

		// only the replacement is watched
		pending, err := txs.Pending(mocks.ChainID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, repl.LocalID, pending[0].LocalID)
	})

	runDB("terminal originals are not replaceable", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		old := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(old))
		require.NoError(t, txs.MarkConfirmed(old.LocalID, mocks.NewReceipt(old, 100, 1)))

		repl := mocks.NewPendingRecord(5)
		repl.Hash = common.HexToHash("0xabcd")
		require.ErrorIs(t, txs.Replace(old.LocalID, repl), errs.ErrRecordTerminal)
	})

	runDB("nonce slot mismatch rejected", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		old := mocks.NewPendingRecord(5)
		require.NoError(t, txs.InsertPending(old))

		repl := mocks.NewPendingRecord(6)
		require.Error(t, txs.Replace(old.LocalID, repl))
	})
}

func Test_NextNonce(t *testing.T) {
	runDB("empty account starts at zero", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		next, err := txs.NextNonce(mocks.Account, mocks.ChainID)
		require.NoError(t, err)
		require.Equal(t, uint64(0), next)
	})

	runDB("next follows the highest claimed nonce", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		for _, nonce := range []uint64{3, 4, 7} {
			require.NoError(t, txs.InsertPending(mocks.NewPendingRecord(nonce)))
		}

		next, err := txs.NextNonce(mocks.Account, mocks.ChainID)
		require.NoError(t, err)
		require.Equal(t, uint64(8), next)
	})

	runDB("terminal records keep their nonce claimed", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(3)
		require.NoError(t, txs.InsertPending(rec))
		require.NoError(t, txs.MarkConfirmed(rec.LocalID, mocks.NewReceipt(rec, 100, 1)))

		next, err := txs.NextNonce(mocks.Account, mocks.ChainID)
		require.NoError(t, err)
		require.Equal(t, uint64(4), next)
	})
}

func Test_InsertFailed(t *testing.T) {
	runDB("broadcast failure claims no nonce", t, func(t *testing.T, db *Storage) {
		txs := NewTransactions(db)

		rec := mocks.NewPendingRecord(5)
		rec.Status = models.StatusFailed
		rec.FailureReason = "insufficient funds"
		require.NoError(t, txs.InsertFailed(rec))

		next, err := txs.NextNonce(mocks.Account, mocks.ChainID)
		require.NoError(t, err)
		require.Equal(t, uint64(0), next)

		pending, err := txs.Pending(mocks.ChainID)
		require.NoError(t, err)
		require.Empty(t, pending)

		ret, err := txs.Get(rec.LocalID)
		require.NoError(t, err)
		require.Equal(t, models.StatusFailed, ret.Status)
	})
}
