// Package monitor runs the background scheduler: every tick it fetches
// pending orders, expires the stale ones, evaluates the rest against fresh
// market snapshots and hands satisfied orders to the execution pipeline.
// Orders are claimed through the store before evaluation so overlapping ticks
// and multiple instances never work the same order twice.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/evaluator"
	"github.com/solwatch/trigger-api/internal/executor"
	"github.com/solwatch/trigger-api/internal/market"
	"github.com/solwatch/trigger-api/internal/notify"
	"github.com/solwatch/trigger-api/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// Store is the order-store slice the scheduler drives.
type Store interface {
	FetchPending(now time.Time) ([]types.Order, error)
	ClaimOrder(orderID, claimer string, until time.Time) (bool, error)
	ReleaseOrder(orderID, claimer string) error
	RecordCheck(orderID string, at time.Time) error
	TransitionStatus(orderID string, from, to types.Status) (bool, error)
}

// Pipeline executes a satisfied order.
type Pipeline interface {
	Execute(ctx context.Context, order *types.Order, eval *types.EvaluationResult) executor.Result
}

// Monitor is the background scheduler. It is safe to Start and Stop from any
// goroutine; both are idempotent.
type Monitor struct {
	cfg      config.MonitorConfig
	store    Store
	provider market.SnapshotProvider
	pipeline Pipeline
	sink     notify.Sink

	// instanceID identifies this scheduler in claim leases so a crashed
	// instance's claims lapse instead of wedging orders.
	instanceID string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	lastTickUnix    atomic.Int64
	checkedLastTick atomic.Int64
}

// New creates a monitor. The sink may be nil, which disables event emission.
func New(cfg config.MonitorConfig, store Store, provider market.SnapshotProvider, pipeline Pipeline, sink notify.Sink) *Monitor {
	return &Monitor{
		cfg:        cfg,
		store:      store,
		provider:   provider,
		pipeline:   pipeline,
		sink:       sink,
		instanceID: uuid.New().String(),
	}
}

// Start launches the tick loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(ctx)
	log.Info().
		Str("component", "monitor").
		Str("instance_id", m.instanceID).
		Dur("tick_interval", m.cfg.TickInterval).
		Int("worker_limit", m.cfg.WorkerLimit).
		Msg("monitor started")
}

// Stop halts the tick loop and waits for any in-flight tick to finish.
// Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	log.Info().Str("component", "monitor").Msg("monitor stopped")
}

// Running reports whether the tick loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns the scheduler's view of itself for the control surface.
func (m *Monitor) Status() types.MonitorStatusResponse {
	status := types.MonitorStatusResponse{
		Running:         m.Running(),
		TickInterval:    m.cfg.TickInterval.String(),
		CheckedLastTick: m.checkedLastTick.Load(),
	}
	if unix := m.lastTickUnix.Load(); unix > 0 {
		at := time.Unix(unix, 0).UTC()
		status.LastTickAt = &at
	}
	return status
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	// First tick fires immediately so a fresh start doesn't wait a full
	// interval before checking anything.
	m.tick(ctx)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one scheduler pass.
func (m *Monitor) tick(ctx context.Context) {
	logger := log.With().Str("component", "monitor").Logger()
	now := time.Now().UTC()

	pending, err := m.store.FetchPending(now)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch pending orders")
		m.emit(notify.Event{
			Type:    notify.EventSystemAlert,
			Message: fmt.Sprintf("pending fetch failed: %v", err),
		})
		return
	}

	// Expiry runs before evaluation: an order past its expiry must never
	// execute, even if its conditions happen to hold right now.
	live := pending[:0]
	for i := range pending {
		order := pending[i]
		if order.Expired(now) {
			m.expire(&order)
			continue
		}
		live = append(live, order)
	}

	snapshots := m.fetchSnapshots(ctx, live)

	workers := pool.New().WithMaxGoroutines(m.cfg.WorkerLimit)
	var checked atomic.Int64
	for i := range live {
		order := live[i]
		snapshot, ok := snapshots[order.TokenAddress]
		if !ok {
			// Snapshot fetch failed this tick; the order stays pending and
			// the next tick retries. The attempt still counts as a check.
			if err := m.store.RecordCheck(order.OrderID, now); err != nil {
				logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to record check")
			}
			continue
		}
		workers.Go(func() {
			m.checkOrder(ctx, &order, snapshot)
			checked.Add(1)
		})
	}
	workers.Wait()

	m.lastTickUnix.Store(now.Unix())
	m.checkedLastTick.Store(checked.Load())
	logger.Debug().
		Int("pending", len(pending)).
		Int64("checked", checked.Load()).
		Msg("tick complete")
}

// fetchSnapshots resolves one snapshot per distinct token so every order on
// the same token sees identical market data within a tick.
func (m *Monitor) fetchSnapshots(ctx context.Context, orders []types.Order) map[string]*types.MarketSnapshot {
	snapshots := make(map[string]*types.MarketSnapshot)
	for i := range orders {
		token := orders[i].TokenAddress
		if _, seen := snapshots[token]; seen {
			continue
		}
		snapshot, err := m.provider.GetSnapshot(ctx, token)
		if err != nil {
			log.Warn().Err(err).
				Str("component", "monitor").
				Str("token", token).
				Msg("snapshot fetch failed, skipping token this tick")
			continue
		}
		snapshots[token] = snapshot
	}
	return snapshots
}

// checkOrder claims, evaluates and (when satisfied) executes one order.
func (m *Monitor) checkOrder(ctx context.Context, order *types.Order, snapshot *types.MarketSnapshot) {
	logger := log.With().
		Str("component", "monitor").
		Str("order_id", order.OrderID).
		Logger()

	claimed, err := m.store.ClaimOrder(order.OrderID, m.instanceID, time.Now().UTC().Add(m.cfg.ClaimLease))
	if err != nil {
		logger.Error().Err(err).Msg("claim failed")
		return
	}
	if !claimed {
		// Another instance holds the order, or it already left pending.
		return
	}

	if err := m.store.RecordCheck(order.OrderID, snapshot.AsOf); err != nil {
		logger.Error().Err(err).Msg("failed to record check")
	}

	eval := evaluator.Evaluate(order, snapshot)
	if !eval.Satisfied {
		if err := m.store.ReleaseOrder(order.OrderID, m.instanceID); err != nil {
			logger.Error().Err(err).Msg("failed to release claim")
		}
		return
	}

	logger.Info().Float64("price", eval.Price).Msg("conditions satisfied")
	m.emit(notify.Event{
		Type:    notify.EventConditionMet,
		OrderID: order.OrderID,
		Owner:   order.Owner,
		Message: fmt.Sprintf("conditions met for %s %s at price %.8f", order.Action, order.TokenSymbol, eval.Price),
	})

	result := m.pipeline.Execute(ctx, order, &eval)
	switch result.Outcome {
	case executor.OutcomeExecuted:
		m.emit(notify.Event{
			Type:    notify.EventOrderExecuted,
			OrderID: order.OrderID,
			Owner:   order.Owner,
			Message: fmt.Sprintf("order executed at %.8f, tx %s", result.Price, result.TxHash),
		})
	case executor.OutcomeFatal:
		m.emit(notify.Event{
			Type:    notify.EventOrderError,
			OrderID: order.OrderID,
			Owner:   order.Owner,
			Message: fmt.Sprintf("order failed permanently: %v", result.Err),
		})
	case executor.OutcomeRetry:
		logger.Warn().Err(result.Err).Msg("execution deferred to next tick")
		if err := m.store.ReleaseOrder(order.OrderID, m.instanceID); err != nil {
			logger.Error().Err(err).Msg("failed to release claim")
		}
	case executor.OutcomeConflict:
		// Another writer decided the order's fate; nothing to report.
	}
}

// expire moves an order past its expiry to the expired terminal state. The
// conditional transition loses quietly to a concurrent cancel or execution.
func (m *Monitor) expire(order *types.Order) {
	ok, err := m.store.TransitionStatus(order.OrderID, types.StatusPending, types.StatusExpired)
	if err != nil {
		log.Error().Err(err).
			Str("component", "monitor").
			Str("order_id", order.OrderID).
			Msg("failed to expire order")
		return
	}
	if !ok {
		return
	}

	log.Info().
		Str("component", "monitor").
		Str("order_id", order.OrderID).
		Msg("order expired")
	m.emit(notify.Event{
		Type:    notify.EventOrderExpired,
		OrderID: order.OrderID,
		Owner:   order.Owner,
		Message: fmt.Sprintf("order for %s expired before conditions were met", order.TokenSymbol),
	})
}

func (m *Monitor) emit(event notify.Event) {
	if m.sink == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.sink.Emit(event)
}
