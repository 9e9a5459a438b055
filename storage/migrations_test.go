package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicwallet/tx-engine/models"
)

func Test_MigrateRecordPayload(t *testing.T) {
	t.Run("v0 success status becomes confirmed", func(t *testing.T) {
		payload := map[string]any{
			"status":   "success",
			"gasPrice": "0x64",
			"typeInfo": map[string]any{"type": "swap"},
		}

		migrated, err := MigrateRecordPayload(0, payload)
		require.NoError(t, err)

		require.Equal(t, "confirmed", migrated["status"])
		quote, ok := migrated["feeQuote"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "0x64", quote["maxFee"])
		info, ok := migrated["typeInfo"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "swap", info["kind"])
		require.NotContains(t, info, "type")
	})

	t.Run("missing fields are defaulted, never rejected", func(t *testing.T) {
		migrated, err := MigrateRecordPayload(0, map[string]any{})
		require.NoError(t, err)

		info, ok := migrated["typeInfo"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, string(models.TxKindSend), info["kind"])
		require.Contains(t, migrated, "feeQuote")
	})

	t.Run("re-applying is idempotent", func(t *testing.T) {
		payload := map[string]any{
			"status":   "success",
			"gasPrice": "0x64",
			"typeInfo": map[string]any{"type": "approve"},
		}

		once, err := MigrateRecordPayload(0, payload)
		require.NoError(t, err)
		twice, err := MigrateRecordPayload(0, once)
		require.NoError(t, err)
		require.Equal(t, once, twice)
	})

	t.Run("current version is untouched", func(t *testing.T) {
		payload := map[string]any{"status": "pending"}
		migrated, err := MigrateRecordPayload(models.RecordSchemaVersion, payload)
		require.NoError(t, err)
		require.Equal(t, payload, migrated)
	})

	t.Run("every version up to current has a migration", func(t *testing.T) {
		for v := uint64(0); v < models.RecordSchemaVersion; v++ {
			require.Contains(t, migrations, v)
		}
	})
}
