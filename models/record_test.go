package models

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

func Test_StatusTerminal(t *testing.T) {
	terminal := []Status{StatusConfirmed, StatusFailed, StatusCancelled, StatusReplaced}
	for _, s := range terminal {
		require.True(t, s.Terminal(), string(s))
	}
	require.False(t, StatusPending.Terminal())
}

func Test_RecordEnvelope(t *testing.T) {
	noMigrations := func(version uint64, payload map[string]any) (map[string]any, error) {
		t.Fatal("migration must not run for current version")
		return payload, nil
	}

	t.Run("round trip at current version", func(t *testing.T) {
		rec := &TransactionRecord{
			ChainID: 1,
			Nonce:   5,
			Status:  StatusPending,
			TypeInfo: TypeInfo{
				Kind: TxKindSend,
			},
			Request: TransactionRequest{
				ChainID: 1,
				Data:    hexutil.Bytes{},
			},
		}

		data, err := rec.MarshalBinary()
		require.NoError(t, err)

		// the envelope carries the schema version alongside the payload
		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &env))
		require.Contains(t, env, "version")
		require.Contains(t, env, "record")

		ret, err := UnmarshalRecord(data, noMigrations)
		require.NoError(t, err)
		require.Equal(t, rec, ret)
	})

	t.Run("older envelope is migrated forward", func(t *testing.T) {
		data := []byte(`{"version":0,"record":{"status":"success","nonce":5,"chainId":1}}`)

		ret, err := UnmarshalRecord(data, func(version uint64, payload map[string]any) (map[string]any, error) {
			require.Equal(t, uint64(0), version)
			payload["status"] = string(StatusConfirmed)
			return payload, nil
		})
		require.NoError(t, err)
		require.Equal(t, StatusConfirmed, ret.Status)
		require.Equal(t, uint64(5), ret.Nonce)
	})

	t.Run("corrupted envelope", func(t *testing.T) {
		_, err := UnmarshalRecord([]byte("not json"), noMigrations)
		require.Error(t, err)
		require.NotErrorIs(t, err, errs.ErrNotFound)
	})
}
