package monitor

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/notify"
	"github.com/solwatch/trigger-api/internal/orders"
	"github.com/solwatch/trigger-api/internal/types"
	"github.com/solwatch/trigger-api/pkg/response"
)

const recentEventLimit = 20

// GinHandlers contains HTTP handlers for the monitor control surface.
type GinHandlers struct {
	monitor *Monitor
	orders  *orders.Database
	events  *notify.Database
}

// NewGinHandlers creates handlers for the monitor endpoints.
func NewGinHandlers(monitor *Monitor, ordersDB *orders.Database, eventsDB *notify.Database) *GinHandlers {
	return &GinHandlers{
		monitor: monitor,
		orders:  ordersDB,
		events:  eventsDB,
	}
}

// StartHandler handles POST requests to start the background monitor.
// Starting an already-running monitor succeeds without side effects.
func (h *GinHandlers) StartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.monitor.Start()
		response.Success(c, gin.H{"running": true})
	}
}

// StopHandler handles POST requests to stop the background monitor. In-flight
// checks finish before the call returns.
func (h *GinHandlers) StopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.monitor.Stop()
		response.Success(c, gin.H{"running": false})
	}
}

// StatusHandler handles GET requests for monitor state: the tick loop's
// vitals plus the pending order book and recent engine events.
func (h *GinHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := h.monitor.Status()

		pending, err := h.orders.FetchPending(time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Str("component", "monitor").Msg("failed to load pending orders for status")
			response.InternalError(c, "Failed to load monitor status")
			return
		}
		status.PendingOrders = pending

		if total, err := h.orders.CountPending(); err == nil {
			status.TotalPending = total
		} else {
			log.Error().Err(err).Str("component", "monitor").Msg("failed to count pending orders")
		}

		status.RecentEvents = []types.MonitorEvent{}
		if h.events != nil {
			recent, err := h.events.RecentEvents(recentEventLimit)
			if err != nil {
				log.Error().Err(err).Str("component", "monitor").Msg("failed to load recent events for status")
			}
			for _, e := range recent {
				status.RecentEvents = append(status.RecentEvents, types.MonitorEvent{
					EventID:   e.EventID,
					Type:      e.Type,
					OrderID:   e.OrderID,
					Owner:     e.Owner,
					Message:   e.Message,
					CreatedAt: e.CreatedAt,
				})
			}
		}

		response.Success(c, status)
	}
}
