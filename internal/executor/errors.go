package executor

import (
	"context"
	"errors"

	"github.com/solwatch/trigger-api/internal/aggregator"
)

// Outcome is the pipeline's verdict for one execution attempt.
type Outcome string

const (
	// OutcomeExecuted: the swap was sent and the terminal commit landed.
	OutcomeExecuted Outcome = "executed"
	// OutcomeRetry: a transient failure; the order stays pending and the
	// next tick tries again.
	OutcomeRetry Outcome = "retry"
	// OutcomeFatal: the order can never execute as constructed and was
	// moved to error.
	OutcomeFatal Outcome = "fatal"
	// OutcomeConflict: a conditional write lost a race (cancel or a
	// concurrent execution); the result was discarded, not an error.
	OutcomeConflict Outcome = "conflict"
)

// Result reports one pipeline run.
type Result struct {
	Outcome Outcome
	TxHash  string
	Price   float64
	Err     error
}

// transient reports whether an external failure is worth retrying on a later
// tick. Timeouts count as transient; they only become dangerous after a send,
// which the pipeline handles separately.
func transient(err error) bool {
	switch {
	case errors.Is(err, aggregator.ErrUnavailable),
		errors.Is(err, aggregator.ErrRateLimited),
		errors.Is(err, aggregator.ErrNoRoute),
		errors.Is(err, aggregator.ErrStaleBlockhash),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

// fatal reports whether a failure can never resolve by retrying.
func fatal(err error) bool {
	return errors.Is(err, aggregator.ErrInsufficientFunds) ||
		errors.Is(err, aggregator.ErrInvalidMint) ||
		errors.Is(err, aggregator.ErrSwapRejected)
}
