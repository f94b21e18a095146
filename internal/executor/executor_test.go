package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solwatch/trigger-api/internal/aggregator"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/types"
)

// scriptedAggregator fails specific stages with specific errors.
type scriptedAggregator struct {
	quoteErr    error
	buildErr    error
	simulateErr error
	simResult   *types.SimulationResult
	sendErr     error

	mu        sync.Mutex
	sendCalls int
	quoteReqs []types.QuoteRequest
}

func (s *scriptedAggregator) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	s.mu.Lock()
	s.quoteReqs = append(s.quoteReqs, req)
	s.mu.Unlock()
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return &types.Quote{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.Amount,
		OutAmount:  req.Amount * 1.01,
		Price:      99.0,
	}, nil
}

func (s *scriptedAggregator) Build(ctx context.Context, quote *types.Quote, signer string) (*types.UnsignedTransaction, error) {
	if s.buildErr != nil {
		return nil, s.buildErr
	}
	return &types.UnsignedTransaction{Payload: "TX", Blockhash: "HASH", Signer: signer}, nil
}

func (s *scriptedAggregator) Simulate(ctx context.Context, tx *types.UnsignedTransaction) (*types.SimulationResult, error) {
	if s.simulateErr != nil {
		return s.simResult, s.simulateErr
	}
	if s.simResult != nil {
		return s.simResult, nil
	}
	return &types.SimulationResult{Success: true}, nil
}

func (s *scriptedAggregator) Send(ctx context.Context, tx *types.UnsignedTransaction) (*types.SendResult, error) {
	s.mu.Lock()
	s.sendCalls++
	s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &types.SendResult{Signature: "SIG-1"}, nil
}

// fakeStore records terminal writes and can refuse them to fake a lost race.
type fakeStore struct {
	commitOK     bool
	transitionOK bool

	committed    []*types.ExecutionRecord
	transitioned []types.Status
}

func (f *fakeStore) CommitExecution(orderID string, rec *types.ExecutionRecord) (bool, error) {
	if !f.commitOK {
		return false, nil
	}
	f.committed = append(f.committed, rec)
	return true, nil
}

func (f *fakeStore) TransitionStatus(orderID string, from, to types.Status) (bool, error) {
	if !f.transitionOK {
		return false, nil
	}
	f.transitioned = append(f.transitioned, to)
	return true, nil
}

func testConfig() config.AggregatorConfig {
	return config.AggregatorConfig{
		BaseMint:        "So11111111111111111111111111111111111111112",
		QuoteTimeout:    time.Second,
		BuildTimeout:    time.Second,
		SimulateTimeout: time.Second,
		SendTimeout:     time.Second,
	}
}

func buyOrder() *types.Order {
	return &types.Order{
		OrderID:       "order-1",
		Owner:         "client-1",
		WalletAddress: "Wallet1111111111111111111111111111111111111",
		TokenAddress:  "TokenMint1111111111111111111111111111111111",
		TokenSymbol:   "BONK",
		Action:        types.ActionBuy,
		Amount:        10,
		Status:        types.StatusPending,
	}
}

func evalResult() *types.EvaluationResult {
	return &types.EvaluationResult{
		OrderID:     "order-1",
		Satisfied:   true,
		Price:       100,
		EvaluatedAt: time.Now().UTC(),
	}
}

func TestExecuteHappyPath(t *testing.T) {
	agg := &scriptedAggregator{}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("expected executed outcome, got %s (err %v)", result.Outcome, result.Err)
	}
	if result.TxHash != "SIG-1" {
		t.Fatalf("expected transaction signature, got %q", result.TxHash)
	}
	if len(store.committed) != 1 {
		t.Fatalf("expected exactly one commit, got %d", len(store.committed))
	}
	if store.committed[0].Price != 99.0 {
		t.Fatalf("expected quote price recorded, got %g", store.committed[0].Price)
	}

	// Buys spend the base mint for the token
	req := agg.quoteReqs[0]
	if req.InputMint != testConfig().BaseMint || req.OutputMint != buyOrder().TokenAddress {
		t.Fatalf("unexpected quote pair %+v", req)
	}
}

func TestExecuteSellSwapsPair(t *testing.T) {
	agg := &scriptedAggregator{}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	order := buyOrder()
	order.Action = types.ActionSell
	if result := pipeline.Execute(context.Background(), order, evalResult()); result.Outcome != OutcomeExecuted {
		t.Fatalf("expected executed outcome, got %s", result.Outcome)
	}

	req := agg.quoteReqs[0]
	if req.InputMint != order.TokenAddress || req.OutputMint != testConfig().BaseMint {
		t.Fatalf("expected sell to spend the token, got %+v", req)
	}
}

func TestExecuteTransientQuoteFailureLeavesPending(t *testing.T) {
	agg := &scriptedAggregator{quoteErr: aggregator.ErrUnavailable}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeRetry {
		t.Fatalf("expected retry outcome, got %s", result.Outcome)
	}
	if len(store.committed) != 0 || len(store.transitioned) != 0 {
		t.Fatal("expected no store writes on a transient failure")
	}
	if agg.sendCalls != 0 {
		t.Fatal("expected no transaction submitted")
	}
}

func TestExecuteFatalQuoteFailureMovesToError(t *testing.T) {
	agg := &scriptedAggregator{quoteErr: aggregator.ErrInvalidMint}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %s", result.Outcome)
	}
	if len(store.transitioned) != 1 || store.transitioned[0] != types.StatusError {
		t.Fatalf("expected a pending->error transition, got %v", store.transitioned)
	}
	if !errors.Is(result.Err, aggregator.ErrInvalidMint) {
		t.Fatalf("expected cause preserved, got %v", result.Err)
	}
}

func TestExecuteSimulationRejectionIsFatal(t *testing.T) {
	agg := &scriptedAggregator{
		simResult: &types.SimulationResult{Success: false, ErrorCode: "custom program error"},
	}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %s", result.Outcome)
	}
	if agg.sendCalls != 0 {
		t.Fatal("expected no transaction submitted after failed simulation")
	}
}

func TestExecuteStaleBlockhashSimulationRetries(t *testing.T) {
	agg := &scriptedAggregator{simulateErr: aggregator.ErrStaleBlockhash}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeRetry {
		t.Fatalf("expected retry outcome, got %s", result.Outcome)
	}
	if len(store.transitioned) != 0 {
		t.Fatal("expected order left pending on a stale blockhash")
	}
}

func TestExecuteSendFailureNeverResubmits(t *testing.T) {
	agg := &scriptedAggregator{sendErr: context.DeadlineExceeded}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeRetry {
		t.Fatalf("expected retry outcome, got %s", result.Outcome)
	}
	if agg.sendCalls != 1 {
		t.Fatalf("expected exactly one send attempt, got %d", agg.sendCalls)
	}
	if len(store.committed) != 0 {
		t.Fatal("expected no commit after a failed send")
	}
}

func TestExecuteLostCommitIsConflict(t *testing.T) {
	agg := &scriptedAggregator{}
	store := &fakeStore{commitOK: false, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	result := pipeline.Execute(context.Background(), buyOrder(), evalResult())
	if result.Outcome != OutcomeConflict {
		t.Fatalf("expected conflict outcome, got %s", result.Outcome)
	}
	if result.Err != nil {
		t.Fatalf("a lost commit is not an error, got %v", result.Err)
	}
}

func TestExecuteNotifySkipsSwap(t *testing.T) {
	agg := &scriptedAggregator{}
	store := &fakeStore{commitOK: true, transitionOK: true}
	pipeline := New(agg, store, testConfig())

	order := buyOrder()
	order.Action = types.ActionNotify
	order.Amount = 0

	result := pipeline.Execute(context.Background(), order, evalResult())
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("expected executed outcome, got %s", result.Outcome)
	}
	if len(agg.quoteReqs) != 0 || agg.sendCalls != 0 {
		t.Fatal("expected notify order to bypass the aggregator entirely")
	}
	if len(store.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(store.committed))
	}
	if store.committed[0].TxHash != "" {
		t.Fatalf("expected no transaction hash for notify, got %q", store.committed[0].TxHash)
	}
	if store.committed[0].Price != 100 {
		t.Fatalf("expected evaluation price recorded, got %g", store.committed[0].Price)
	}
}
