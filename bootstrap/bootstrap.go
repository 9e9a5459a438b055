package bootstrap

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/mosaicwallet/tx-engine/config"
	"github.com/mosaicwallet/tx-engine/metrics"
	"github.com/mosaicwallet/tx-engine/models"
	"github.com/mosaicwallet/tx-engine/services/gas"
	"github.com/mosaicwallet/tx-engine/services/gateway"
	"github.com/mosaicwallet/tx-engine/services/orchestrator"
	"github.com/mosaicwallet/tx-engine/services/signer"
	"github.com/mosaicwallet/tx-engine/services/watcher"
	"github.com/mosaicwallet/tx-engine/storage"
	"github.com/mosaicwallet/tx-engine/storage/pebble"
)

type Storages struct {
	Storage      *pebble.Storage
	Transactions storage.TransactionIndexer
}

type Bootstrap struct {
	logger    zerolog.Logger
	config    *config.Config
	clients   map[uint64]gateway.ChainClient
	storages  *Storages
	publisher *models.Publisher[models.FinalizedTransaction]
	collector metrics.Collector

	Orchestrator *orchestrator.Orchestrator

	watchers map[uint64]*watcher.Engine
	metrics  *metrics.Server
}

func New(cfg *config.Config) (*Bootstrap, error) {
	logger := zerolog.New(cfg.LogWriter).With().Timestamp().Logger()
	logger = logger.Level(cfg.LogLevel)
	logger.Info().Msg("starting up the transaction engine")

	store, err := pebble.New(cfg.DatabaseDir, logger)
	if err != nil {
		return nil, err
	}
	transactions := pebble.NewTransactions(store)

	collector := metrics.NewCollector(logger)

	estimatorCfg := gas.DefaultConfig()
	if cfg.ReplacementFeeFactor > 0 {
		estimatorCfg.ReplacementFeeFactor = cfg.ReplacementFeeFactor
	}
	if cfg.GasLimitBuffer > 0 {
		estimatorCfg.GasLimitBuffer = cfg.GasLimitBuffer
	}
	if cfg.QuoteValidityBlocks > 0 {
		estimatorCfg.QuoteValidityBlocks = cfg.QuoteValidityBlocks
	}

	clients := make(map[uint64]gateway.ChainClient, len(cfg.Chains))
	estimators := make(map[uint64]*gas.Estimator, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		rpc, err := gateway.NewRPCClient(chain.RPCEndpoint, chain.ChainID, logger)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to create client connection for chain %d host: %s, with error: %w",
				chain.ChainID, chain.RPCEndpoint, err,
			)
		}

		var client gateway.ChainClient = rpc
		if cfg.RateLimit > 0 {
			client, err = gateway.NewRateLimitedClient(rpc, cfg.RateLimit)
			if err != nil {
				return nil, err
			}
		}

		clients[chain.ChainID] = client
		estimators[chain.ChainID] = gas.NewEstimator(client, estimatorCfg, logger)
	}

	key, err := crypto.HexToECDSA(cfg.SignerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	txSigner := signer.NewInMemorySigner(key, cfg.SignerPassword)

	publisher := models.NewPublisher[models.FinalizedTransaction]()

	return &Bootstrap{
		logger:    logger,
		config:    cfg,
		clients:   clients,
		publisher: publisher,
		collector: collector,
		storages: &Storages{
			Storage:      store,
			Transactions: transactions,
		},
		Orchestrator: orchestrator.New(
			clients,
			estimators,
			txSigner,
			transactions,
			logger,
			collector,
		),
		watchers: make(map[uint64]*watcher.Engine, len(cfg.Chains)),
	}, nil
}

// Notifications exposes the stream of finalized transactions. Subscribers
// registered here receive every confirm, fail and cancel exactly once.
func (b *Bootstrap) Notifications() *models.Publisher[models.FinalizedTransaction] {
	return b.publisher
}

// StartWatchers launches one reconciliation engine per configured chain.
// Each engine restarts itself on connection loss.
func (b *Bootstrap) StartWatchers(ctx context.Context) error {
	b.logger.Info().Msg("bootstrap starting transaction watchers")

	for _, chain := range b.config.Chains {
		engine := watcher.NewEngine(
			watcher.Config{
				ChainID:          chain.ChainID,
				Interval:         chain.PollingTier.Interval(),
				StaleAfterBlocks: b.config.StaleAfterBlocks,
				StaleAfterMisses: b.config.StaleAfterMisses,
			},
			b.clients[chain.ChainID],
			b.storages.Transactions,
			b.publisher,
			b.logger,
			b.collector,
		)
		b.watchers[chain.ChainID] = engine

		const retries = 15
		restartable := models.NewRestartableEngine(engine, retries, b.logger)
		b.startEngine(ctx, restartable, fmt.Sprintf("watcher-%d", chain.ChainID))
	}

	return nil
}

func (b *Bootstrap) StopWatchers() {
	for chainID, engine := range b.watchers {
		b.logger.Warn().Uint64("chain-id", chainID).Msg("stopping transaction watcher")
		engine.Stop()
	}
}

func (b *Bootstrap) StartMetricsServer(_ context.Context) error {
	b.logger.Info().Msg("bootstrap starting metrics server")

	b.metrics = metrics.NewServer(b.logger, b.config.MetricsPort)
	started, err := b.metrics.Start()
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	<-started

	return nil
}

func (b *Bootstrap) StopMetricsServer() {
	if b.metrics == nil {
		return
	}
	b.logger.Warn().Msg("shutting down metrics server")
	b.metrics.Stop()
}

func (b *Bootstrap) StopDB() {
	if err := b.storages.Storage.Close(); err != nil {
		b.logger.Error().Err(err).Msg("failed to close the database")
	}
}

func (b *Bootstrap) startEngine(
	ctx context.Context,
	engine models.Engine,
	name string,
) {
	go func() {
		err := engine.Run(ctx)
		if err != nil {
			b.logger.Error().Err(err).Msgf("%s engine failed to run", name)
			panic(err)
		}
	}()

	<-engine.Ready()
	b.logger.Info().Msgf("%s engine started successfully", name)
}

// Run will run the complete bootstrap of the transaction engine with all
// the watchers. Run is a blocking call, but it does signal readiness of
// the service through the provided callback.
func Run(ctx context.Context, cfg *config.Config, ready func()) error {
	boot, err := New(cfg)
	if err != nil {
		return err
	}

	if err := boot.StartWatchers(ctx); err != nil {
		return err
	}

	if err := boot.StartMetricsServer(ctx); err != nil {
		return err
	}

	ready()

	<-ctx.Done()
	boot.logger.Warn().Msg("bootstrap received context cancellation, stopping services")

	boot.StopWatchers()
	boot.StopMetricsServer()
	boot.StopDB()

	return nil
}
