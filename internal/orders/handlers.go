package orders

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/solwatch/trigger-api/internal/auth"
	"github.com/solwatch/trigger-api/internal/types"
	"github.com/solwatch/trigger-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ownerFromContext resolves the caller identity set by the JWT middleware.
func ownerFromContext(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	owner := auth.GetClientID(claims)
	if owner == "" {
		response.Unauthorized(c, "Invalid client ID in token")
		return "", false
	}
	return owner, true
}

// CreateOrderHandler handles POST requests to create conditional orders.
// Requires a valid JWT token; the token's client ID becomes the order owner.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(owner, &req)
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			response.ValidationFailed(c, vErr.Fields)
			return
		}
		response.Handle(c, order, err)
	}
}

// CreateLimitOrderHandler handles POST requests to create limit orders
// (single price condition).
func (h *GinHandlers) CreateLimitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		var req CreateLimitOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateLimitOrder(owner, &req)
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			response.ValidationFailed(c, vErr.Fields)
			return
		}
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles POST requests to cancel a pending order. A
// non-pending order returns a clear "not cancellable" message.
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		err := h.service.CancelOrder(orderID, owner)
		switch {
		case err == nil:
			response.Success(c, types.CancelResponse{OrderID: orderID, Cancelled: true})
		case errors.Is(err, ErrOrderNotFound):
			response.NotFound(c, "Order not found")
		case errors.Is(err, ErrNotCancellable):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err.Error())
		}
	}
}

// ListOrdersHandler handles GET requests for the caller's orders, newest
// first. Supports an optional ?status= filter.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		ordersList, err := h.service.ListOrders(owner, c.Query("status"))
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			response.ValidationFailed(c, vErr.Fields)
			return
		}
		response.Handle(c, ordersList, err)
	}
}

// GetOrderHandler handles GET requests for a single order.
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := ownerFromContext(c)
		if !ok {
			return
		}

		orderID := c.Param("order_id")
		order, err := h.service.GetOrder(orderID, owner)
		if err != nil || order == nil {
			response.NotFound(c, "Order not found")
			return
		}
		response.Success(c, order)
	}
}
