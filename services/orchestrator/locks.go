package orchestrator

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type lockKey struct {
	account common.Address
	chainID uint64
}

// accountLocks serializes submissions per (account, chain). A second
// submission for the same account must not begin nonce allocation until
// the prior one's repository insert has committed, otherwise both read the
// same pending count and collide on a nonce.
type accountLocks struct {
	locks sync.Map // map[lockKey]*sync.Mutex
}

func (l *accountLocks) get(account common.Address, chainID uint64) *sync.Mutex {
	lock, _ := l.locks.LoadOrStore(lockKey{account: account, chainID: chainID}, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
