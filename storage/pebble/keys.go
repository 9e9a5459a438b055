package pebble

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	// record keys
	recordIDKey = byte(1)

	// secondary indices
	hashToIDKey   = byte(2)
	nonceToIDKey  = byte(3)
	pendingSetKey = byte(4)
)

// makePrefix builds a key from the key code and the concatenated parts.
func makePrefix(code byte, parts ...[]byte) []byte {
	length := 1
	for _, p := range parts {
		length += len(p)
	}

	key := make([]byte, 0, length)
	key = append(key, code)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// upperBound returns the smallest key strictly greater than every key with
// the given prefix.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff, no upper bound
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func idBytes(id uuid.UUID) []byte {
	return id[:]
}

// hashIndexKey is chainID + hash, pointing to the record's local ID.
func hashIndexKey(chainID uint64, hash common.Hash) []byte {
	return append(uint64Bytes(chainID), hash.Bytes()...)
}

// nonceIndexKey is account + chainID + nonce, pointing to the local ID of
// the record currently claiming the nonce slot. Big-endian nonce encoding
// keeps prefix scans over an account ordered by nonce.
func nonceIndexKey(account common.Address, chainID uint64, nonce uint64) []byte {
	key := make([]byte, 0, common.AddressLength+16)
	key = append(key, account.Bytes()...)
	key = append(key, uint64Bytes(chainID)...)
	key = append(key, uint64Bytes(nonce)...)
	return key
}

// noncePrefix scans all nonce slots of an account on a chain.
func noncePrefix(account common.Address, chainID uint64) []byte {
	key := make([]byte, 0, common.AddressLength+8)
	key = append(key, account.Bytes()...)
	key = append(key, uint64Bytes(chainID)...)
	return key
}

// pendingKey is chainID + localID, the per-chain pending work set.
func pendingKey(chainID uint64, id uuid.UUID) []byte {
	return append(uint64Bytes(chainID), idBytes(id)...)
}
