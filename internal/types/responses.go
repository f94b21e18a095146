package types

import "time"

// MonitorStatusResponse is the read-only snapshot served by the monitor
// control surface.
type MonitorStatusResponse struct {
	Running         bool           `json:"running"`
	TickInterval    string         `json:"tick_interval"`
	LastTickAt      *time.Time     `json:"last_tick_at,omitempty"`
	CheckedLastTick int64          `json:"checked_last_tick"`
	TotalPending    int64          `json:"total_pending"`
	PendingOrders   []Order        `json:"pending_orders"`
	RecentEvents    []MonitorEvent `json:"recent_events"`
}

// MonitorEvent is one emitted engine event as exposed over the API.
type MonitorEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}
