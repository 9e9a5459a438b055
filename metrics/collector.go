package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Collector interface {
	TransactionSubmitted(chainID uint64)
	TransactionDropped(chainID uint64)
	TransactionReplaced(chainID uint64)
	TransactionFinalized(chainID uint64, status string)
	PendingTransactions(chainID uint64, count int)
	WatcherPollFailed(chainID uint64)
	MeasureConfirmationBlocks(chainID uint64, blocks uint64)
}

var _ Collector = &DefaultCollector{}

type DefaultCollector struct {
	transactionsSubmitted *prometheus.CounterVec
	transactionsDropped   *prometheus.CounterVec
	transactionsReplaced  *prometheus.CounterVec
	transactionsFinalized *prometheus.CounterVec
	pendingTransactions   *prometheus.GaugeVec
	watcherPollErrors     *prometheus.CounterVec
	confirmationBlocks    *prometheus.HistogramVec
}

func NewCollector(logger zerolog.Logger) Collector {
	transactionsSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_submitted_total",
		Help: "Total number of transactions broadcast to the network",
	}, []string{"chain_id"})

	transactionsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_dropped_total",
		Help: "Total number of transactions rejected before or at broadcast",
	}, []string{"chain_id"})

	transactionsReplaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_replaced_total",
		Help: "Total number of cancel and speed-up replacements",
	}, []string{"chain_id"})

	transactionsFinalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_finalized_total",
		Help: "Total number of transactions that reached a terminal status",
	}, []string{"chain_id", "status"})

	pendingTransactions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pending_transactions",
		Help: "Number of transactions currently awaiting a receipt",
	}, []string{"chain_id"})

	watcherPollErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_poll_errors_total",
		Help: "Total number of failed watcher reconciliation polls",
	}, []string{"chain_id"})

	confirmationBlocks := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transaction_confirmation_blocks",
		Help:    "Blocks elapsed between submission and confirmation",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
	}, []string{"chain_id"})

	metrics := []prometheus.Collector{
		transactionsSubmitted,
		transactionsDropped,
		transactionsReplaced,
		transactionsFinalized,
		pendingTransactions,
		watcherPollErrors,
		confirmationBlocks,
	}
	if err := registerMetrics(logger, metrics...); err != nil {
		logger.Info().Msg("using noop collector as metric register failed")
		return NopCollector
	}

	return &DefaultCollector{
		transactionsSubmitted: transactionsSubmitted,
		transactionsDropped:   transactionsDropped,
		transactionsReplaced:  transactionsReplaced,
		transactionsFinalized: transactionsFinalized,
		pendingTransactions:   pendingTransactions,
		watcherPollErrors:     watcherPollErrors,
		confirmationBlocks:    confirmationBlocks,
	}
}

func registerMetrics(logger zerolog.Logger, metrics ...prometheus.Collector) error {
	for _, m := range metrics {
		if err := prometheus.Register(m); err != nil {
			logger.Err(err).Msg("failed to register metric")
			return err
		}
	}

	return nil
}

func chainLabel(chainID uint64) prometheus.Labels {
	return prometheus.Labels{"chain_id": fmt.Sprint(chainID)}
}

func (c *DefaultCollector) TransactionSubmitted(chainID uint64) {
	c.transactionsSubmitted.With(chainLabel(chainID)).Inc()
}

func (c *DefaultCollector) TransactionDropped(chainID uint64) {
	c.transactionsDropped.With(chainLabel(chainID)).Inc()
}

func (c *DefaultCollector) TransactionReplaced(chainID uint64) {
	c.transactionsReplaced.With(chainLabel(chainID)).Inc()
}

func (c *DefaultCollector) TransactionFinalized(chainID uint64, status string) {
	c.transactionsFinalized.With(prometheus.Labels{
		"chain_id": fmt.Sprint(chainID),
		"status":   status,
	}).Inc()
}

func (c *DefaultCollector) PendingTransactions(chainID uint64, count int) {
	c.pendingTransactions.With(chainLabel(chainID)).Set(float64(count))
}

func (c *DefaultCollector) WatcherPollFailed(chainID uint64) {
	c.watcherPollErrors.With(chainLabel(chainID)).Inc()
}

func (c *DefaultCollector) MeasureConfirmationBlocks(chainID uint64, blocks uint64) {
	c.confirmationBlocks.With(chainLabel(chainID)).Observe(float64(blocks))
}
