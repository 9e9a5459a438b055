package errors

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNotFound is returned when a transaction record is not in the repository.
	ErrNotFound = errors.New("transaction record not found")

	// ErrRecordTerminal is returned on any attempt to mutate a record that
	// already reached a terminal status. Terminal statuses are absorbing.
	ErrRecordTerminal = errors.New("transaction record is in a terminal state")

	// ErrNonceConflict is returned when inserting a pending record whose
	// (account, chain, nonce) slot is already taken by an active or
	// confirmed record.
	ErrNonceConflict = errors.New("nonce already occupied by an active transaction")

	// ErrDuplicateHash is returned when a record with the same transaction
	// hash already exists on the chain.
	ErrDuplicateHash = errors.New("transaction hash already indexed")

	// ErrSigningRejected is returned by a signer when the user aborted the
	// signing request. No transaction artifact is persisted in that case.
	ErrSigningRejected = errors.New("signing rejected by user")

	// ErrWalletLocked is returned by a signer when the keyring is locked.
	ErrWalletLocked = errors.New("wallet is locked")

	// ErrNotReplaceable is returned when a cancel or speed-up is requested
	// for a record that is not pending anymore.
	ErrNotReplaceable = errors.New("transaction is not pending and cannot be replaced")

	// ErrDisconnected is a recoverable error signaling that an engine lost
	// its connection and should be restarted.
	ErrDisconnected = errors.New("disconnected")
)

// EstimationError wraps a transient failure of the fee estimation RPC.
// Callers may retry with backoff.
type EstimationError struct {
	err error
}

func NewEstimationError(err error) *EstimationError {
	return &EstimationError{err: err}
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("fee estimation failed: %s", e.err)
}

func (e *EstimationError) Unwrap() error {
	return e.err
}

// FeeTooLowError is returned when a replacement fee does not satisfy the
// chain-level minimum replacement fee rules. The caller must prompt the user
// for a higher fee instead of retrying silently.
type FeeTooLowError struct {
	Proposed *big.Int
	Minimum  *big.Int
}

func NewFeeTooLowError(proposed, minimum *big.Int) *FeeTooLowError {
	return &FeeTooLowError{Proposed: proposed, Minimum: minimum}
}

func (e *FeeTooLowError) Error() string {
	return fmt.Sprintf(
		"replacement fee %s below minimum accepted fee %s",
		e.Proposed, e.Minimum,
	)
}

// BroadcastRejectedError is returned when the chain provider rejects a
// signed transaction at submission. The attempt is recorded as a terminal
// failed record and is never retried automatically.
type BroadcastRejectedError struct {
	Reason string
	err    error
}

func NewBroadcastRejectedError(reason string, err error) *BroadcastRejectedError {
	return &BroadcastRejectedError{Reason: reason, err: err}
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("broadcast rejected: %s", e.Reason)
}

func (e *BroadcastRejectedError) Unwrap() error {
	return e.err
}

// NetworkUnavailableError wraps a watcher poll failure. It is logged and
// retried on the next tick and never surfaced as a transaction failure.
type NetworkUnavailableError struct {
	err error
}

func NewNetworkUnavailableError(err error) *NetworkUnavailableError {
	return &NetworkUnavailableError{err: err}
}

func (e *NetworkUnavailableError) Error() string {
	return fmt.Sprintf("network unavailable: %s", e.err)
}

func (e *NetworkUnavailableError) Unwrap() error {
	return e.err
}
