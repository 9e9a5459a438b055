package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/mosaicwallet/tx-engine/models"
)

var _ ChainClient = &RateLimitedClient{}

// RateLimitedClient caps the request rate against a single RPC endpoint so
// an aggressive receipt-polling loop cannot starve submissions or trip the
// provider's own limits. Requests past the limit wait for the next window
// instead of failing.
type RateLimitedClient struct {
	client ChainClient
	store  limiter.Store
}

func NewRateLimitedClient(client ChainClient, requestsPerSecond uint64) (*RateLimitedClient, error) {
	store, err := memorystore.New(&memorystore.Config{
		Tokens:   requestsPerSecond,
		Interval: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	return &RateLimitedClient{
		client: client,
		store:  store,
	}, nil
}

func (c *RateLimitedClient) take(ctx context.Context, key string) error {
	for {
		_, _, reset, ok, err := c.store.Take(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		wait := time.Until(time.Unix(0, int64(reset)))
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *RateLimitedClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.take(ctx, "nonce"); err != nil {
		return 0, err
	}
	return c.client.TransactionCount(ctx, account)
}

func (c *RateLimitedClient) EstimateGas(ctx context.Context, req models.TransactionRequest) (uint64, error) {
	if err := c.take(ctx, "estimate"); err != nil {
		return 0, err
	}
	return c.client.EstimateGas(ctx, req)
}

func (c *RateLimitedClient) SuggestFees(ctx context.Context) (FeeSuggestion, error) {
	if err := c.take(ctx, "fees"); err != nil {
		return FeeSuggestion{}, err
	}
	return c.client.SuggestFees(ctx)
}

func (c *RateLimitedClient) Broadcast(ctx context.Context, signed models.SignedTransaction) (common.Hash, error) {
	if err := c.take(ctx, "broadcast"); err != nil {
		return common.Hash{}, err
	}
	return c.client.Broadcast(ctx, signed)
}

func (c *RateLimitedClient) Receipt(ctx context.Context, hash common.Hash) (*models.Receipt, error) {
	if err := c.take(ctx, "receipt"); err != nil {
		return nil, err
	}
	return c.client.Receipt(ctx, hash)
}

func (c *RateLimitedClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.take(ctx, "block"); err != nil {
		return 0, err
	}
	return c.client.BlockNumber(ctx)
}
