// Package notify carries engine events out of the monitor: condition hits,
// executions, expiries and failures. Emission is fire-and-forget; a sink that
// cannot accept an event logs and drops it rather than blocking a tick.
package notify

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Event types emitted by the engine.
const (
	EventConditionMet  = "condition_met"
	EventOrderExecuted = "order_executed"
	EventOrderExpired  = "order_expired"
	EventOrderError    = "order_error"
	EventSystemAlert   = "system_alert"
)

// Event is one engine notification.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives engine events. Implementations must not block; delivery is
// best-effort and failures never propagate back into the engine.
type Sink interface {
	Emit(event Event)
}

// LogSink writes events to the structured log.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(event Event) {
	log.Info().
		Str("component", "notify").
		Str("event_id", event.EventID).
		Str("event_type", event.Type).
		Str("order_id", event.OrderID).
		Str("owner", event.Owner).
		Msg(event.Message)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}
