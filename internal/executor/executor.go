// Package executor turns a satisfied order into an on-chain swap with
// at-most-once semantics: quote, build, simulate, send, then a conditional
// commit that only lands while the order is still pending.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/aggregator"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/types"
)

// Store is the slice of the order store the pipeline needs: the conditional
// terminal writes.
type Store interface {
	CommitExecution(orderID string, rec *types.ExecutionRecord) (bool, error)
	TransitionStatus(orderID string, from, to types.Status) (bool, error)
}

// Pipeline realizes satisfied orders through the swap aggregator.
type Pipeline struct {
	agg   aggregator.Aggregator
	store Store
	cfg   config.AggregatorConfig
}

// New creates an execution pipeline.
func New(agg aggregator.Aggregator, store Store, cfg config.AggregatorConfig) *Pipeline {
	return &Pipeline{
		agg:   agg,
		store: store,
		cfg:   cfg,
	}
}

// Execute attempts to realize a satisfied order. It never touches order
// status on transient failures (the order stays pending for the next tick),
// moves the order to error on fatal failures, and treats a lost conditional
// commit as a silent no-op.
func (p *Pipeline) Execute(ctx context.Context, order *types.Order, eval *types.EvaluationResult) Result {
	logger := log.With().
		Str("service", "executor").
		Str("order_id", order.OrderID).
		Str("token", order.TokenAddress).
		Str("action", string(order.Action)).
		Logger()

	// Notify-only orders have nothing to swap; commit straight away.
	if order.Action == types.ActionNotify {
		details, _ := json.Marshal(map[string]interface{}{
			"kind":  "notify",
			"price": eval.Price,
		})
		return p.commit(order, &types.ExecutionRecord{
			Price:      eval.Price,
			Details:    string(details),
			ExecutedAt: time.Now().UTC(),
		}, logger)
	}

	quote, result := p.quote(ctx, order, logger)
	if quote == nil {
		return result
	}

	tx, result := p.build(ctx, order, quote, logger)
	if tx == nil {
		return result
	}

	if result, ok := p.simulate(ctx, order, tx, logger); !ok {
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()
	sent, err := p.agg.Send(sendCtx, tx)
	if err != nil {
		// A timeout here may mean the transaction was submitted but not
		// confirmed. Never resubmit blindly; leave the order pending so the
		// next tick re-checks before any further attempt.
		logger.Error().Err(err).Msg("send failed, leaving order pending")
		return Result{Outcome: OutcomeRetry, Err: err}
	}

	executionPrice := quote.Price
	if executionPrice <= 0 {
		executionPrice = eval.Price
	}
	details, _ := json.Marshal(map[string]interface{}{
		"quote": quote,
		"tx": map[string]string{
			"blockhash": tx.Blockhash,
			"signature": sent.Signature,
		},
	})

	return p.commit(order, &types.ExecutionRecord{
		TxHash:     sent.Signature,
		Price:      executionPrice,
		Details:    string(details),
		ExecutedAt: time.Now().UTC(),
	}, logger)
}

// quoteRequest maps the order onto a swap pair: buys spend the base mint for
// the token, sells spend the token.
func (p *Pipeline) quoteRequest(order *types.Order) types.QuoteRequest {
	req := types.QuoteRequest{
		Amount: order.Amount,
		Mode:   "ExactIn",
	}
	if order.Action == types.ActionBuy {
		req.InputMint = p.cfg.BaseMint
		req.OutputMint = order.TokenAddress
	} else {
		req.InputMint = order.TokenAddress
		req.OutputMint = p.cfg.BaseMint
	}
	return req
}

func (p *Pipeline) quote(ctx context.Context, order *types.Order, logger zerolog.Logger) (*types.Quote, Result) {
	quoteCtx, cancel := context.WithTimeout(ctx, p.cfg.QuoteTimeout)
	defer cancel()

	quote, err := p.agg.Quote(quoteCtx, p.quoteRequest(order))
	if err != nil {
		if fatal(err) {
			logger.Error().Err(err).Msg("quote failed fatally")
			return nil, p.fail(order, err, logger)
		}
		logger.Warn().Err(err).Msg("quote failed, will retry next tick")
		return nil, Result{Outcome: OutcomeRetry, Err: err}
	}
	return quote, Result{}
}

func (p *Pipeline) build(ctx context.Context, order *types.Order, quote *types.Quote, logger zerolog.Logger) (*types.UnsignedTransaction, Result) {
	signer := order.WalletAddress
	if signer == "" {
		signer = order.Owner
	}

	buildCtx, cancel := context.WithTimeout(ctx, p.cfg.BuildTimeout)
	defer cancel()

	tx, err := p.agg.Build(buildCtx, quote, signer)
	if err != nil {
		if fatal(err) {
			logger.Error().Err(err).Msg("build failed fatally")
			return nil, p.fail(order, err, logger)
		}
		logger.Warn().Err(err).Msg("build failed, will retry next tick")
		return nil, Result{Outcome: OutcomeRetry, Err: err}
	}
	return tx, Result{}
}

func (p *Pipeline) simulate(ctx context.Context, order *types.Order, tx *types.UnsignedTransaction, logger zerolog.Logger) (Result, bool) {
	simCtx, cancel := context.WithTimeout(ctx, p.cfg.SimulateTimeout)
	defer cancel()

	sim, err := p.agg.Simulate(simCtx, tx)
	if err != nil {
		if transient(err) {
			logger.Warn().Err(err).Msg("simulation failed transiently, will retry next tick")
			return Result{Outcome: OutcomeRetry, Err: err}, false
		}
		logger.Error().Err(err).Msg("simulation rejected transaction")
		return p.fail(order, err, logger), false
	}
	if sim != nil && !sim.Success {
		logger.Error().Str("error_code", sim.ErrorCode).Msg("simulation reported failure")
		return p.fail(order, aggregator.ErrSwapRejected, logger), false
	}
	return Result{}, true
}

// fail moves the order to its error terminal state. If the conditional write
// loses (the order was cancelled meanwhile), the failure is a no-op conflict.
func (p *Pipeline) fail(order *types.Order, cause error, logger zerolog.Logger) Result {
	ok, err := p.store.TransitionStatus(order.OrderID, types.StatusPending, types.StatusError)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record error state")
		return Result{Outcome: OutcomeRetry, Err: err}
	}
	if !ok {
		return Result{Outcome: OutcomeConflict, Err: cause}
	}
	return Result{Outcome: OutcomeFatal, Err: cause}
}

// commit performs the conditional pending -> executed transition. Losing the
// race means another path already decided the order's fate; the pipeline
// discards its result without resubmitting.
func (p *Pipeline) commit(order *types.Order, rec *types.ExecutionRecord, logger zerolog.Logger) Result {
	ok, err := p.store.CommitExecution(order.OrderID, rec)
	if err != nil {
		logger.Error().Err(err).Msg("execution commit failed")
		return Result{Outcome: OutcomeRetry, Err: err}
	}
	if !ok {
		logger.Info().Msg("execution commit lost race, discarding result")
		return Result{Outcome: OutcomeConflict}
	}

	logger.Info().
		Str("tx_hash", rec.TxHash).
		Float64("execution_price", rec.Price).
		Msg("order executed")
	return Result{Outcome: OutcomeExecuted, TxHash: rec.TxHash, Price: rec.Price}
}
