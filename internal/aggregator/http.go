package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/types"
)

const maxRequestAttempts = 3

// HTTPClient implements Aggregator against a Jupiter-style REST API.
// Rate-limit and 5xx responses are retried in-call with exponential backoff;
// anything still failing surfaces as a classified sentinel error.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an aggregator client from configuration.
func NewHTTPClient(cfg config.AggregatorConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{},
	}
}

// Quote implements Aggregator.
func (c *HTTPClient) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatFloat(req.Amount, 'f', -1, 64))
	params.Set("swapMode", req.Mode)

	var payload struct {
		InAmount  float64 `json:"inAmount,string"`
		OutAmount float64 `json:"outAmount,string"`
		RoutePlan json.RawMessage `json:"routePlan"`
	}
	endpoint := fmt.Sprintf("%s/v6/quote?%s", c.baseURL, params.Encode())
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("quote %s->%s: %w", req.InputMint, req.OutputMint, err)
	}
	if payload.OutAmount <= 0 {
		return nil, fmt.Errorf("quote %s->%s: %w", req.InputMint, req.OutputMint, ErrNoRoute)
	}

	return &types.Quote{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   payload.InAmount,
		OutAmount:  payload.OutAmount,
		Price:      payload.InAmount / payload.OutAmount,
		RoutePlan:  string(payload.RoutePlan),
	}, nil
}

// Build implements Aggregator.
func (c *HTTPClient) Build(ctx context.Context, quote *types.Quote, signer string) (*types.UnsignedTransaction, error) {
	body := map[string]interface{}{
		"quote":         quote,
		"userPublicKey": signer,
	}

	var payload struct {
		SwapTransaction string `json:"swapTransaction"`
		Blockhash       string `json:"blockhash"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v6/swap", body, &payload); err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}

	return &types.UnsignedTransaction{
		Payload:   payload.SwapTransaction,
		Blockhash: payload.Blockhash,
		Signer:    signer,
	}, nil
}

// Simulate implements Aggregator.
func (c *HTTPClient) Simulate(ctx context.Context, tx *types.UnsignedTransaction) (*types.SimulationResult, error) {
	body := map[string]interface{}{
		"transaction": tx.Payload,
	}

	var payload struct {
		Success       bool   `json:"success"`
		UnitsConsumed uint64 `json:"unitsConsumed"`
		Logs          string `json:"logs"`
		Error         string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v6/simulate", body, &payload); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	result := &types.SimulationResult{
		Success:       payload.Success,
		UnitsConsumed: payload.UnitsConsumed,
		Logs:          payload.Logs,
		ErrorCode:     payload.Error,
	}
	if !payload.Success {
		return result, classifySimulationError(payload.Error)
	}
	return result, nil
}

// Send implements Aggregator.
func (c *HTTPClient) Send(ctx context.Context, tx *types.UnsignedTransaction) (*types.SendResult, error) {
	body := map[string]interface{}{
		"transaction": tx.Payload,
	}

	var payload struct {
		Signature string `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v6/send", body, &payload); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	if payload.Signature == "" {
		return nil, fmt.Errorf("send: %w", ErrUnavailable)
	}

	return &types.SendResult{Signature: payload.Signature}, nil
}

// classifySimulationError maps upstream simulation error strings onto the
// package sentinels.
func classifySimulationError(code string) error {
	lowered := strings.ToLower(code)
	switch {
	case strings.Contains(lowered, "blockhash"):
		return fmt.Errorf("%w: %s", ErrStaleBlockhash, code)
	case strings.Contains(lowered, "insufficient"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, code)
	case strings.Contains(lowered, "mint"):
		return fmt.Errorf("%w: %s", ErrInvalidMint, code)
	default:
		return fmt.Errorf("%w: %s", ErrSwapRejected, code)
	}
}

// do performs a JSON request with in-call backoff on rate limits and 5xx.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 250 * time.Millisecond
	backoffCfg.MaxInterval = 3 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRequestAttempts; attempt++ {
		retryable, err := c.doOnce(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		log.Debug().Err(err).Str("endpoint", endpoint).Int("attempt", attempt+1).Msg("retrying aggregator request")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return lastErr
}

func (c *HTTPClient) doOnce(ctx context.Context, method, endpoint string, body interface{}, out interface{}) (bool, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
