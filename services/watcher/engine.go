package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mosaicwallet/tx-engine/metrics"
	"github.com/mosaicwallet/tx-engine/models"
	errs "github.com/mosaicwallet/tx-engine/models/errors"
	"github.com/mosaicwallet/tx-engine/services/gateway"
	"github.com/mosaicwallet/tx-engine/storage"
)

type Config struct {
	ChainID uint64

	// Interval between reconciliation ticks, tuned to the chain's block
	// cadence via the polling tier.
	Interval time.Duration

	// StaleAfterBlocks is how far the chain head must advance past the
	// submission block before a receiptless record is flagged stale.
	StaleAfterBlocks uint64

	// StaleAfterMisses is the number of consecutive receipt misses
	// required before the staleness flag is considered.
	StaleAfterMisses int
}

// maxConcurrentPolls bounds the receipt requests in flight per tick so a
// large pending set does not hammer the RPC endpoint.
const maxConcurrentPolls = 4

var _ models.Engine = &Engine{}

// Engine reconciles one chain's pending transactions against confirmed
// chain state. On each tick it polls receipts for every pending record and
// finalizes the ones that were included in a block.
//
// The engine is the only writer of post-broadcast record state. It never
// unilaterally fails a receiptless transaction, no matter how long it sits
// pending: it only flags it stale so the UI can offer a manual cancel or
// speed-up. Ticks are idempotent, since the repository rejects writes to
// terminal records; re-processing a hash before a status change is a no-op
// and triggers no duplicate notifications.
//
// Watchers for different chains run independently; a slow or unreachable
// endpoint on one chain never delays reconciliation on another.
type Engine struct {
	*models.EngineStatus

	config    Config
	client    gateway.ChainClient
	repo      storage.TransactionIndexer
	publisher *models.Publisher[models.FinalizedTransaction]
	logger    zerolog.Logger
	collector metrics.Collector

	// consecutive receipt misses per record, touched only by the run loop
	misses map[uuid.UUID]int
}

func NewEngine(
	config Config,
	client gateway.ChainClient,
	repo storage.TransactionIndexer,
	publisher *models.Publisher[models.FinalizedTransaction],
	logger zerolog.Logger,
	collector metrics.Collector,
) *Engine {
	return &Engine{
		EngineStatus: models.NewEngineStatus(),
		config:       config,
		client:       client,
		repo:         repo,
		publisher:    publisher,
		logger: logger.With().
			Str("component", "watcher").
			Uint64("chain-id", config.ChainID).
			Logger(),
		collector: collector,
		misses:    make(map[uuid.UUID]int),
	}
}

// Stop the engine.
func (e *Engine) Stop() {
	e.MarkDone()
	<-e.Stopped()
}

// Run the reconciliation loop until the context is cancelled or the
// engine is stopped.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Dur("interval", e.config.Interval).Msg("starting transaction watcher")

	e.MarkReady()
	defer e.MarkStopped()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.Done():
			return nil
		case <-ticker.C:
			e.reconcile(ctx)
		}
	}
}

// reconcile runs a single reconciliation tick. Poll failures are logged
// and retried on the next tick; they never touch a transaction record.
func (e *Engine) reconcile(ctx context.Context) {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		e.collector.WatcherPollFailed(e.config.ChainID)
		e.logger.Warn().Err(errs.NewNetworkUnavailableError(err)).Msg("failed to fetch chain head")
		return
	}

	pending, err := e.repo.Pending(e.config.ChainID)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to list pending transactions")
		return
	}
	e.collector.PendingTransactions(e.config.ChainID, len(pending))

	// receipt polls fan out concurrently, state transitions stay on the
	// run loop goroutine
	type pollResult struct {
		receipt *models.Receipt
		err     error
	}
	results := make([]pollResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for i, rec := range pending {
		g.Go(func() error {
			results[i].receipt, results[i].err = e.client.Receipt(gctx, rec.Hash)
			return nil
		})
	}
	_ = g.Wait()

	for i, rec := range pending {
		if rec.Status.Terminal() {
			// skip before any side effect, re-processing must be a no-op
			continue
		}

		if err := results[i].err; err != nil {
			e.collector.WatcherPollFailed(e.config.ChainID)
			e.logger.Warn().
				Err(errs.NewNetworkUnavailableError(err)).
				Str("tx-hash", rec.Hash.Hex()).
				Msg("receipt poll failed")
			continue
		}

		receipt := results[i].receipt
		if receipt == nil {
			e.handleMiss(rec, head)
			continue
		}

		delete(e.misses, rec.LocalID)
		e.finalize(rec, receipt)
	}
}

// handleMiss tracks consecutive receipt misses and flags long-pending
// records as stale for the UI layer. A missing receipt is never treated
// as a failure: the transaction can legitimately sit in the mempool for a
// long time.
func (e *Engine) handleMiss(rec *models.TransactionRecord, head uint64) {
	e.misses[rec.LocalID]++

	if rec.IsStale || e.misses[rec.LocalID] < e.config.StaleAfterMisses {
		return
	}
	if head < rec.SubmittedAtBlock+e.config.StaleAfterBlocks {
		return
	}

	if err := e.repo.MarkStale(rec.LocalID); err != nil {
		if errors.Is(err, errs.ErrRecordTerminal) {
			return
		}
		e.logger.Error().Err(err).
			Str("local-id", rec.LocalID.String()).
			Msg("failed to flag stale transaction")
		return
	}

	e.logger.Info().
		Str("local-id", rec.LocalID.String()).
		Str("tx-hash", rec.Hash.Hex()).
		Uint64("submitted-at-block", rec.SubmittedAtBlock).
		Uint64("head", head).
		Msg("transaction flagged stale")
}

// finalize advances a record to its terminal status based on the receipt
// and notifies subscribers. Subscriber failures never roll back or block
// the transition.
func (e *Engine) finalize(rec *models.TransactionRecord, receipt *models.Receipt) {
	var status models.Status
	var err error

	switch {
	case receipt.Successful() && rec.TypeInfo.Kind == models.TxKindCancel:
		status = models.StatusCancelled
		err = e.repo.MarkCancelled(rec.LocalID, receipt)
	case receipt.Successful():
		status = models.StatusConfirmed
		err = e.repo.MarkConfirmed(rec.LocalID, receipt)
	default:
		status = models.StatusFailed
		err = e.repo.MarkFailed(rec.LocalID, receipt, "execution reverted")
	}

	if err != nil {
		if errors.Is(err, errs.ErrRecordTerminal) {
			// already finalized by an earlier tick
			return
		}
		e.logger.Error().Err(err).
			Str("local-id", rec.LocalID.String()).
			Str("tx-hash", rec.Hash.Hex()).
			Msg("failed to finalize transaction")
		return
	}

	e.collector.TransactionFinalized(e.config.ChainID, string(status))
	if receipt.BlockNumber >= rec.SubmittedAtBlock && rec.SubmittedAtBlock > 0 {
		e.collector.MeasureConfirmationBlocks(e.config.ChainID, receipt.BlockNumber-rec.SubmittedAtBlock)
	}

	e.logger.Info().
		Str("local-id", rec.LocalID.String()).
		Str("tx-hash", rec.Hash.Hex()).
		Str("status", string(status)).
		Uint64("block", receipt.BlockNumber).
		Msg("transaction finalized")

	e.publisher.Publish(models.FinalizedTransaction{
		LocalID:  rec.LocalID,
		Hash:     rec.Hash,
		ChainID:  rec.ChainID,
		Status:   status,
		TypeInfo: rec.TypeInfo,
	})
}
