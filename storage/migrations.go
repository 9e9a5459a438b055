package storage

import (
	"fmt"

	"github.com/mosaicwallet/tx-engine/models"
)

// migrations advance a persisted record payload from version N to N+1.
// Every migration is idempotent when re-applied to already-migrated state
// and never fails closed: missing or malformed fields are defaulted so a
// usable record always comes back.
var migrations = map[uint64]func(payload map[string]any) map[string]any{
	// v0 stored the success status as "success"; later versions use
	// "confirmed" to match the receipt wording.
	0: func(payload map[string]any) map[string]any {
		if status, ok := payload["status"].(string); ok && status == "success" {
			payload["status"] = string(models.StatusConfirmed)
		}
		return payload
	},

	// v1 predates fee quotes: records carried a single legacy "gasPrice"
	// field. Lift it into a feeQuote envelope as the max fee.
	1: func(payload map[string]any) map[string]any {
		if _, ok := payload["feeQuote"]; !ok {
			quote := map[string]any{}
			if gasPrice, ok := payload["gasPrice"]; ok {
				quote["maxFee"] = gasPrice
			}
			payload["feeQuote"] = quote
		}
		delete(payload, "gasPrice")
		return payload
	},

	// v2 renamed the typeInfo discriminator from "type" to "kind" and
	// made it mandatory, defaulting unknown payloads to plain sends.
	2: func(payload map[string]any) map[string]any {
		info, ok := payload["typeInfo"].(map[string]any)
		if !ok {
			info = map[string]any{}
		}
		if _, ok := info["kind"]; !ok {
			if legacy, ok := info["type"].(string); ok {
				info["kind"] = legacy
			} else {
				info["kind"] = string(models.TxKindSend)
			}
		}
		delete(info, "type")
		payload["typeInfo"] = info
		return payload
	},
}

// MigrateRecordPayload applies all migrations from the stored version up
// to the current schema version, in order.
func MigrateRecordPayload(version uint64, payload map[string]any) (map[string]any, error) {
	for v := version; v < models.RecordSchemaVersion; v++ {
		migrate, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("missing migration for record schema version %d", v)
		}
		payload = migrate(payload)
	}
	return payload, nil
}
