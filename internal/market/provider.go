// Package market supplies point-in-time market snapshots for tokens. The
// engine depends only on the SnapshotProvider interface; the HTTP client here
// is one implementation.
package market

import (
	"context"
	"errors"

	"github.com/solwatch/trigger-api/internal/types"
)

// ErrUnavailable is returned when market data for a token cannot be obtained
// right now. The scheduler treats it as transient and retries next tick.
var ErrUnavailable = errors.New("market data unavailable")

// SnapshotProvider returns the current market snapshot for a token.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, tokenAddress string) (*types.MarketSnapshot, error)
}
