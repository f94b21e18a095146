package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/types"
	"golang.org/x/time/rate"
)

const maxFetchAttempts = 3

// HTTPProvider fetches snapshots from a DEX screener style REST API. Calls
// are rate limited so a large tick cannot hammer the upstream, and transient
// failures are retried with exponential backoff before surfacing as
// ErrUnavailable.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProvider creates a provider from configuration.
func NewHTTPProvider(cfg config.MarketConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

// pairPayload mirrors the upstream response shape.
type pairPayload struct {
	PriceUSD     float64  `json:"price_usd"`
	Volume24h    *float64 `json:"volume_24h"`
	MarketCap    *float64 `json:"market_cap"`
	LiquidityUSD *float64 `json:"liquidity_usd"`
}

// GetSnapshot implements SnapshotProvider.
func (p *HTTPProvider) GetSnapshot(ctx context.Context, tokenAddress string) (*types.MarketSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 200 * time.Millisecond
	backoffCfg.MaxInterval = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		snapshot, retryable, err := p.fetch(ctx, tokenAddress)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err
		if !retryable {
			break
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(sleep):
		}
	}

	log.Warn().Err(lastErr).Str("token", tokenAddress).Msg("market snapshot fetch failed")
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// fetch performs a single request. The second return value reports whether
// the failure is worth retrying within this call.
func (p *HTTPProvider) fetch(ctx context.Context, tokenAddress string) (*types.MarketSnapshot, bool, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", p.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("upstream status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var payload pairPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if payload.PriceUSD <= 0 {
		return nil, false, fmt.Errorf("no price for token %s", tokenAddress)
	}

	return &types.MarketSnapshot{
		TokenAddress: tokenAddress,
		Price:        payload.PriceUSD,
		Volume:       payload.Volume24h,
		MarketCap:    payload.MarketCap,
		Liquidity:    payload.LiquidityUSD,
		AsOf:         time.Now().UTC(),
	}, false, nil
}
