package aggregator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/types"
)

// Mock simulates an aggregator for the simulation binary and local runs:
// random latency per call, a configurable quote success rate, and a small
// price variance on quotes so executions land near but not exactly on the
// snapshot price.
type Mock struct {
	MinLatency  int // in milliseconds
	MaxLatency  int
	SuccessRate float64 // 0-1, probability a quote attempt succeeds

	mu        sync.Mutex
	failNext  int
	sendCount int
}

// NewMock returns a mock aggregator with generous defaults.
func NewMock() *Mock {
	return &Mock{
		MinLatency:  5,
		MaxLatency:  40,
		SuccessRate: 0.9,
	}
}

// FailNextQuotes makes the next n quote calls fail with a transient error,
// regardless of the success rate.
func (m *Mock) FailNextQuotes(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

// SendCount reports how many transactions were submitted.
func (m *Mock) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount
}

func (m *Mock) sleep() {
	latency := rand.Intn(m.MaxLatency-m.MinLatency+1) + m.MinLatency
	time.Sleep(time.Duration(latency) * time.Millisecond)
}

// Quote implements Aggregator.
func (m *Mock) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	m.sleep()

	m.mu.Lock()
	scripted := m.failNext > 0
	if scripted {
		m.failNext--
	}
	m.mu.Unlock()

	if scripted || rand.Float64() > m.SuccessRate {
		log.Warn().
			Str("input_mint", req.InputMint).
			Str("output_mint", req.OutputMint).
			Msg("mock quote failed")
		return nil, fmt.Errorf("quote: %w", ErrUnavailable)
	}

	// Apply a small variance so executed price differs from the snapshot
	outAmount := req.Amount * (1 + (rand.Float64()*0.02 - 0.01))

	return &types.Quote{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.Amount,
		OutAmount:  outAmount,
		Price:      req.Amount / outAmount,
		RoutePlan:  `[{"amm":"mock"}]`,
	}, nil
}

// Build implements Aggregator.
func (m *Mock) Build(ctx context.Context, quote *types.Quote, signer string) (*types.UnsignedTransaction, error) {
	m.sleep()
	return &types.UnsignedTransaction{
		Payload:   fmt.Sprintf("MOCKTX-%d", rand.Int63()),
		Blockhash: fmt.Sprintf("HASH-%d", rand.Int63()),
		Signer:    signer,
	}, nil
}

// Simulate implements Aggregator.
func (m *Mock) Simulate(ctx context.Context, tx *types.UnsignedTransaction) (*types.SimulationResult, error) {
	m.sleep()
	return &types.SimulationResult{
		Success:       true,
		UnitsConsumed: uint64(rand.Intn(200_000)),
	}, nil
}

// Send implements Aggregator.
func (m *Mock) Send(ctx context.Context, tx *types.UnsignedTransaction) (*types.SendResult, error) {
	m.sleep()

	m.mu.Lock()
	m.sendCount++
	m.mu.Unlock()

	sig := fmt.Sprintf("SIG-%d", rand.Int63())
	log.Info().Str("signature", sig).Str("signer", tx.Signer).Msg("mock transaction submitted")
	return &types.SendResult{Signature: sig}, nil
}
