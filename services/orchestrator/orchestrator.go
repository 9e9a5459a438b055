package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/mosaicwallet/tx-engine/metrics"
	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/services/gas"
	"github.com/mosaicwallet/tx-engine/services/gateway"
	"github.com/mosaicwallet/tx-engine/services/signer"
	"github.com/mosaicwallet/tx-engine/storage"
)

const (
	estimationRetries = 3
	cancelGasLimit    = 21_000
)

// Orchestrator drives a transaction through the pre-broadcast lifecycle:
// building a fee quote, allocating a nonce, signing, and broadcasting.
// Once a record is pending, finalization belongs exclusively to the
// watcher; the two writers' state sets are disjoint by construction, which
// is what removes the need for a lock around status transitions.
//
// Estimation and signing failures are reported synchronously and leave no
// artifact. Broadcast rejections persist a terminal failed record so the
// user keeps a durable trail of the attempt.
type Orchestrator struct {
	clients    map[uint64]gateway.ChainClient
	estimators map[uint64]*gas.Estimator
	signer     signer.Signer
	repo       storage.TransactionIndexer
	logger     zerolog.Logger
	collector  metrics.Collector
	locks      accountLocks
}

func New(
	clients map[uint64]gateway.ChainClient,
	estimators map[uint64]*gas.Estimator,
	txSigner signer.Signer,
	repo storage.TransactionIndexer,
	logger zerolog.Logger,
	collector metrics.Collector,
) *Orchestrator {
	return &Orchestrator{
		clients:    clients,
		estimators: estimators,
		signer:     txSigner,
		repo:       repo,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		collector:  collector,
	}
}

// Submit runs a transaction intent through quote, nonce allocation,
// signing and broadcast, and returns the pending record on success.
//
// Nonce allocation and the insert of the pending record are a single
// serialized unit per (account, chain), so two back-to-back submissions
// receive sequential nonces without collision.
func (o *Orchestrator) Submit(
	ctx context.Context,
	req models.TransactionRequest,
	typeInfo models.TypeInfo,
	tier models.PriorityTier,
) (*models.TransactionRecord, error) {
	client, estimator, err := o.chain(req.ChainID)
	if err != nil {
		return nil, err
	}

	quote, err := o.estimateWithRetry(ctx, estimator, req, tier)
	if err != nil {
		return nil, err
	}

	lock := o.locks.get(req.From, req.ChainID)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := o.allocateNonce(ctx, client, req)
	if err != nil {
		return nil, err
	}

	return o.signAndBroadcast(ctx, client, req, typeInfo, quote, nonce)
}

// Cancel replaces a pending transaction with a zero-value self-transfer on
// the same nonce. When proposedMaxFee is set it must satisfy the minimum
// replacement fee rules, otherwise FeeTooLowError is returned and the
// original record stays pending untouched.
func (o *Orchestrator) Cancel(
	ctx context.Context,
	localID uuid.UUID,
	proposedMaxFee *big.Int,
) (*models.TransactionRecord, error) {
	return o.replace(ctx, localID, proposedMaxFee, models.PriorityFast, true)
}

// SpeedUp rebroadcasts a pending transaction on the same nonce with
// bumped fees.
func (o *Orchestrator) SpeedUp(
	ctx context.Context,
	localID uuid.UUID,
	tier models.PriorityTier,
) (*models.TransactionRecord, error) {
	return o.replace(ctx, localID, nil, tier, false)
}

func (o *Orchestrator) replace(
	ctx context.Context,
	localID uuid.UUID,
	proposedMaxFee *big.Int,
	tier models.PriorityTier,
	cancel bool,
) (*models.TransactionRecord, error) {
	original, err := o.repo.Get(localID)
	if err != nil {
		return nil, err
	}
	if original.Status != models.StatusPending {
		return nil, errs.ErrNotReplaceable
	}

	client, estimator, err := o.chain(original.ChainID)
	if err != nil {
		return nil, err
	}

	req := original.Request
	typeInfo := original.TypeInfo
	if cancel {
		req = models.TransactionRequest{
			From:     original.Account,
			To:       original.Account,
			ChainID:  original.ChainID,
			GasLimit: cancelGasLimit,
		}
		typeInfo = models.TypeInfo{Kind: models.TxKindCancel}
	}

	quote, err := estimator.EstimateReplacement(ctx, req, original.FeeQuote, proposedMaxFee, tier)
	if err != nil {
		// a FeeTooLowError propagates to the caller so the user can be
		// prompted for a higher fee; the original record is untouched
		return nil, err
	}

	lock := o.locks.get(original.Account, original.ChainID)
	lock.Lock()
	defer lock.Unlock()

	// the record may have finalized while the quote was being computed
	original, err = o.repo.Get(localID)
	if err != nil {
		return nil, err
	}
	if original.Status != models.StatusPending {
		return nil, errs.ErrNotReplaceable
	}

	signed, err := o.signer.Sign(ctx, req, original.Nonce, quote)
	if err != nil {
		return nil, err
	}

	hash, err := client.Broadcast(ctx, signed)
	if err != nil {
		var rejected *errs.BroadcastRejectedError
		if errors.As(err, &rejected) {
			// keep a durable trail of the failed replacement attempt;
			// the original stays pending and keeps its nonce slot
			o.recordBroadcastFailure(req, typeInfo, quote, signed, original.Nonce, rejected.Reason)
		}
		return nil, err
	}

	newRec := o.newRecord(req, typeInfo, quote, original.Nonce, hash)
	newRec.SubmittedAtBlock = o.currentBlock(ctx, client)

	if err := o.repo.Replace(localID, newRec); err != nil {
		return nil, fmt.Errorf("failed to commit replacement: %w", err)
	}

	o.collector.TransactionReplaced(req.ChainID)
	o.logger.Info().
		Str("local-id", newRec.LocalID.String()).
		Str("replaces", localID.String()).
		Str("tx-hash", hash.Hex()).
		Uint64("nonce", newRec.Nonce).
		Bool("cancel", cancel).
		Msg("replacement transaction broadcast")

	return newRec, nil
}

// allocateNonce combines the chain-reported transaction count with the
// repository's active nonces, so transactions still in flight locally are
// accounted for even before the chain sees them.
func (o *Orchestrator) allocateNonce(
	ctx context.Context,
	client gateway.ChainClient,
	req models.TransactionRequest,
) (uint64, error) {
	chainCount, err := client.TransactionCount(ctx, req.From)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transaction count: %w", err)
	}

	repoNext, err := o.repo.NextNonce(req.From, req.ChainID)
	if err != nil {
		return 0, err
	}

	nonce := chainCount
	if repoNext > nonce {
		nonce = repoNext
	}

	// the slot must be free before any signing effort is spent
	_, err = o.repo.ActiveByNonce(req.From, req.ChainID, nonce)
	if err == nil {
		return 0, errs.ErrNonceConflict
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return 0, err
	}

	return nonce, nil
}

func (o *Orchestrator) signAndBroadcast(
	ctx context.Context,
	client gateway.ChainClient,
	req models.TransactionRequest,
	typeInfo models.TypeInfo,
	quote models.GasFeeQuote,
	nonce uint64,
) (*models.TransactionRecord, error) {
	signed, err := o.signer.Sign(ctx, req, nonce, quote)
	if err != nil {
		// a user-rejected signature discards the attempt entirely
		return nil, err
	}

	hash, err := client.Broadcast(ctx, signed)
	if err != nil {
		var rejected *errs.BroadcastRejectedError
		if errors.As(err, &rejected) {
			rec := o.recordBroadcastFailure(req, typeInfo, quote, signed, nonce, rejected.Reason)
			return rec, err
		}
		return nil, err
	}

	rec := o.newRecord(req, typeInfo, quote, nonce, hash)
	rec.SubmittedAtBlock = o.currentBlock(ctx, client)

	if err := o.repo.InsertPending(rec); err != nil {
		return nil, fmt.Errorf("failed to persist pending record: %w", err)
	}

	o.collector.TransactionSubmitted(req.ChainID)
	o.logger.Info().
		Str("local-id", rec.LocalID.String()).
		Str("tx-hash", hash.Hex()).
		Uint64("chain-id", req.ChainID).
		Uint64("nonce", nonce).
		Msg("transaction broadcast")

	return rec, nil
}

func (o *Orchestrator) estimateWithRetry(
	ctx context.Context,
	estimator *gas.Estimator,
	req models.TransactionRequest,
	tier models.PriorityTier,
) (models.GasFeeQuote, error) {
	var quote models.GasFeeQuote

	backoff := retry.WithMaxRetries(estimationRetries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		quote, err = estimator.Estimate(ctx, req, tier)
		if err != nil {
			var estimation *errs.EstimationError
			if errors.As(err, &estimation) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.GasFeeQuote{}, err
	}

	return quote, nil
}

func (o *Orchestrator) newRecord(
	req models.TransactionRequest,
	typeInfo models.TypeInfo,
	quote models.GasFeeQuote,
	nonce uint64,
	hash common.Hash,
) *models.TransactionRecord {
	return &models.TransactionRecord{
		LocalID:     uuid.New(),
		Hash:        hash,
		ChainID:     req.ChainID,
		Account:     req.From,
		Nonce:       nonce,
		Status:      models.StatusPending,
		TypeInfo:    typeInfo,
		Request:     req,
		FeeQuote:    quote,
		SubmittedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) recordBroadcastFailure(
	req models.TransactionRequest,
	typeInfo models.TypeInfo,
	quote models.GasFeeQuote,
	signed models.SignedTransaction,
	nonce uint64,
	reason string,
) *models.TransactionRecord {
	rec := o.newRecord(req, typeInfo, quote, nonce, signed.Hash)
	rec.Status = models.StatusFailed
	rec.FailureReason = reason

	if err := o.repo.InsertFailed(rec); err != nil {
		o.logger.Error().Err(err).
			Str("local-id", rec.LocalID.String()).
			Msg("failed to persist broadcast failure record")
	}

	o.collector.TransactionDropped(req.ChainID)
	o.logger.Warn().
		Str("local-id", rec.LocalID.String()).
		Str("reason", reason).
		Uint64("nonce", nonce).
		Msg("broadcast rejected by provider")

	return rec
}

func (o *Orchestrator) currentBlock(ctx context.Context, client gateway.ChainClient) uint64 {
	block, err := client.BlockNumber(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to fetch block number for submission height")
		return 0
	}
	return block
}

func (o *Orchestrator) chain(chainID uint64) (gateway.ChainClient, *gas.Estimator, error) {
	client, ok := o.clients[chainID]
	if !ok {
		return nil, nil, fmt.Errorf("no client configured for chain %d", chainID)
	}
	estimator, ok := o.estimators[chainID]
	if !ok {
		return nil, nil, fmt.Errorf("no estimator configured for chain %d", chainID)
	}
	return client, estimator, nil
}
