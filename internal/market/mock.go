package market

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/solwatch/trigger-api/internal/types"
)

// MockProvider serves snapshots from an in-memory price table with a small
// random walk per read. Used by the simulation binary.
type MockProvider struct {
	mu     sync.Mutex
	prices map[string]float64
	drift  float64
}

// NewMockProvider seeds the provider with starting prices per token address.
func NewMockProvider(prices map[string]float64, drift float64) *MockProvider {
	copied := make(map[string]float64, len(prices))
	for k, v := range prices {
		copied[k] = v
	}
	return &MockProvider{prices: copied, drift: drift}
}

// GetSnapshot implements SnapshotProvider.
func (m *MockProvider) GetSnapshot(ctx context.Context, tokenAddress string) (*types.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[tokenAddress]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token %s", ErrUnavailable, tokenAddress)
	}

	// Random walk so conditions eventually trigger during a simulation run.
	price = price * (1 + (rand.Float64()*2-1)*m.drift)
	m.prices[tokenAddress] = price

	volume := price * 1_000_000
	marketCap := price * 100_000_000
	liquidity := price * 5_000_000

	return &types.MarketSnapshot{
		TokenAddress: tokenAddress,
		Price:        price,
		Volume:       &volume,
		MarketCap:    &marketCap,
		Liquidity:    &liquidity,
		AsOf:         time.Now().UTC(),
	}, nil
}

// SetPrice pins a token's price, overriding the walk.
func (m *MockProvider) SetPrice(tokenAddress string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[tokenAddress] = price
}
