// Package aggregator talks to the swap aggregator that prices and executes
// on-chain swaps. The pipeline consumes the Aggregator interface; failures
// carry sentinel errors so the executor can classify them as transient or
// fatal.
package aggregator

import (
	"context"
	"errors"

	"github.com/solwatch/trigger-api/internal/types"
)

// Sentinel errors for failure classification.
var (
	// Transient: retry on a later tick.
	ErrUnavailable    = errors.New("aggregator unavailable")
	ErrRateLimited    = errors.New("aggregator rate limited")
	ErrNoRoute        = errors.New("no route for swap")
	ErrStaleBlockhash = errors.New("stale blockhash")

	// Fatal: the swap can never succeed as constructed.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidMint       = errors.New("invalid mint")
	ErrSwapRejected      = errors.New("swap rejected by simulation")
)

// Aggregator is the swap-quoting collaborator: quote a pair, build an
// unsigned transaction, dry-run it, then submit.
type Aggregator interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
	Build(ctx context.Context, quote *types.Quote, signer string) (*types.UnsignedTransaction, error)
	Simulate(ctx context.Context, tx *types.UnsignedTransaction) (*types.SimulationResult, error)
	Send(ctx context.Context, tx *types.UnsignedTransaction) (*types.SendResult, error)
}
