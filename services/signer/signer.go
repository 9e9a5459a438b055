package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

// Signer produces a signed transaction blob for an unsigned request. The
// keyring behind it is a black box: private key material never crosses
// this interface. Signing may involve user interaction (biometric or
// password prompt) and is therefore a long, cancellable suspension point;
// implementations must honor context cancellation and return
// ErrSigningRejected on user abort.
type Signer interface {
	Sign(
		ctx context.Context,
		req models.TransactionRequest,
		nonce uint64,
		quote models.GasFeeQuote,
	) (models.SignedTransaction, error)

	Address() common.Address
}

var _ Signer = &InMemorySigner{}

// InMemorySigner signs with a raw in-process key. It backs tests and the
// local development command; production deployments plug in a hardware or
// keystore backed implementation.
type InMemorySigner struct {
	mux          sync.Mutex
	key          *ecdsa.PrivateKey
	address      common.Address
	passwordHash [32]byte
	locked       bool
}

func NewInMemorySigner(key *ecdsa.PrivateKey, password string) *InMemorySigner {
	return &InMemorySigner{
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		passwordHash: sha256.Sum256([]byte(password)),
	}
}

func (s *InMemorySigner) Address() common.Address {
	return s.address
}

// Lock locks the signer until the next successful Unlock.
func (s *InMemorySigner) Lock() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.locked = true
}

// Unlock verifies the password and unlocks the signer.
func (s *InMemorySigner) Unlock(password string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	digest := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(digest[:], s.passwordHash[:]) != 1 {
		return errs.ErrWalletLocked
	}
	s.locked = false
	return nil
}

func (s *InMemorySigner) Sign(
	ctx context.Context,
	req models.TransactionRequest,
	nonce uint64,
	quote models.GasFeeQuote,
) (models.SignedTransaction, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	// a cancelled context models the user dismissing the signing prompt
	if err := ctx.Err(); err != nil {
		return models.SignedTransaction{}, errs.ErrSigningRejected
	}
	if s.locked {
		return models.SignedTransaction{}, errs.ErrWalletLocked
	}

	to := req.To
	tx := gethTypes.NewTx(&gethTypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(req.ChainID),
		Nonce:     nonce,
		GasTipCap: quote.PriorityFeeOrZero(),
		GasFeeCap: quote.MaxFeeOrZero(),
		Gas:       quote.GasLimit,
		To:        &to,
		Value:     req.ValueOrZero(),
		Data:      req.Data,
	})

	chainID := new(big.Int).SetUint64(req.ChainID)
	signed, err := gethTypes.SignTx(tx, gethTypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return models.SignedTransaction{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return models.SignedTransaction{}, err
	}

	return models.SignedTransaction{
		RawBytes: raw,
		Hash:     signed.Hash(),
		Nonce:    nonce,
	}, nil
}
