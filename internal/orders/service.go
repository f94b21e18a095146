package orders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/types"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order is not cancellable")
)

// ValidationError carries field-level messages for a rejected order. Nothing
// is persisted when creation fails validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Service handles conditional order management.
type Service struct {
	db *Database
}

// NewService creates a new order service with the given database connection.
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// DB exposes the underlying store for the scheduler and execution pipeline.
func (s *Service) DB() *Database {
	return s.db
}

// CreateOrderRequest is the inbound shape for order creation. Condition times
// may be local to the given timezone; they are normalized to UTC exactly once
// here, before storage.
type CreateOrderRequest struct {
	WalletAddress string             `json:"wallet_address"`
	TokenAddress  string             `json:"token_address"`
	TokenSymbol   string             `json:"token_symbol"`
	Action        string             `json:"action"`
	Amount        float64            `json:"amount"`
	Logic         string             `json:"logic"`
	Timezone      string             `json:"timezone"`
	ExpiresAt     string             `json:"expires_at"`
	Conditions    []ConditionRequest `json:"conditions"`
}

// ConditionRequest is one condition as submitted by the caller. Which fields
// apply depends on Type.
type ConditionRequest struct {
	Type string `json:"type"`

	// price
	Trigger    string   `json:"trigger_type,omitempty"`
	Price      float64  `json:"price,omitempty"`
	UpperPrice *float64 `json:"upper_price,omitempty"`

	// time
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	BaseTime      string `json:"base_time,omitempty"`
	OffsetMinutes int64  `json:"offset_minutes,omitempty"`
	Recurring     bool   `json:"recurring,omitempty"`
	Frequency     string `json:"frequency,omitempty"`

	// market
	Metric          string   `json:"metric,omitempty"`
	Comparison      string   `json:"comparison,omitempty"`
	Value           float64  `json:"value,omitempty"`
	VolumeTrigger   string   `json:"volume_trigger,omitempty"`
	VolumeThreshold *float64 `json:"volume_threshold,omitempty"`
}

// CreateOrder validates the request and persists a new pending order.
func (s *Service) CreateOrder(owner string, req *CreateOrderRequest) (*types.Order, error) {
	fields := make(map[string]string)

	if owner == "" && req.WalletAddress == "" {
		fields["owner"] = "owner or wallet_address is required"
	}
	if req.TokenAddress == "" {
		fields["token_address"] = "token_address is required"
	}

	action := types.Action(req.Action)
	switch action {
	case types.ActionBuy, types.ActionSell, types.ActionNotify:
	default:
		fields["action"] = fmt.Sprintf("action must be one of buy, sell, notify (got %q)", req.Action)
	}
	if action != types.ActionNotify && req.Amount <= 0 {
		fields["amount"] = "amount must be greater than zero"
	}

	logic := types.Logic(strings.ToUpper(req.Logic))
	if logic == "" {
		logic = types.LogicAnd
	}
	if logic != types.LogicAnd && logic != types.LogicOr {
		fields["logic"] = fmt.Sprintf("logic must be AND or OR (got %q)", req.Logic)
	}

	loc := time.UTC
	if req.Timezone != "" {
		parsed, err := time.LoadLocation(req.Timezone)
		if err != nil {
			fields["timezone"] = fmt.Sprintf("unknown timezone %q", req.Timezone)
		} else {
			loc = parsed
		}
	}

	if len(req.Conditions) == 0 {
		fields["conditions"] = "at least one condition is required"
	}
	conditions := make(types.ConditionList, 0, len(req.Conditions))
	for i, cr := range req.Conditions {
		cond, err := buildCondition(&cr, loc)
		if err != nil {
			fields[fmt.Sprintf("conditions[%d]", i)] = err.Error()
			continue
		}
		conditions = append(conditions, *cond)
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := parseUserTime(req.ExpiresAt, loc)
		if err != nil {
			fields["expires_at"] = err.Error()
		} else {
			expiresAt = &t
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	now := time.Now().UTC()
	order := &types.Order{
		OrderID:       uuid.New().String(),
		Owner:         owner,
		WalletAddress: req.WalletAddress,
		TokenAddress:  req.TokenAddress,
		TokenSymbol:   req.TokenSymbol,
		Action:        action,
		Amount:        req.Amount,
		Conditions:    conditions,
		Logic:         logic,
		Status:        types.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     expiresAt,
	}

	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("owner", order.Owner).
		Str("token", order.TokenAddress).
		Str("action", string(order.Action)).
		Int("conditions", len(order.Conditions)).
		Str("logic", string(order.Logic)).
		Msg("order created")

	return order, nil
}

// CancelOrder cancels a pending order if the caller owns it. Any other state
// fails with ErrNotCancellable rather than silently succeeding.
func (s *Service) CancelOrder(orderID, owner string) error {
	ok, err := s.db.CancelOrder(orderID, owner)
	if err != nil {
		return err
	}
	if ok {
		log.Info().Str("order_id", orderID).Str("owner", owner).Msg("order cancelled")
		return nil
	}

	order, err := s.db.GetOrderByOrderIDAndOwner(orderID, owner)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	return fmt.Errorf("%w: status is %s", ErrNotCancellable, order.Status)
}

// ListOrders returns the owner's orders, newest first, optionally filtered by
// status.
func (s *Service) ListOrders(owner, statusFilter string) ([]types.Order, error) {
	status := types.Status(statusFilter)
	if statusFilter != "" {
		switch status {
		case types.StatusPending, types.StatusExecuted, types.StatusCancelled, types.StatusExpired, types.StatusError:
		default:
			return nil, &ValidationError{Fields: map[string]string{
				"status": fmt.Sprintf("unknown status %q", statusFilter),
			}}
		}
	}
	return s.db.ListOrdersByOwner(owner, status)
}

// GetOrder returns a single order scoped to its owner.
func (s *Service) GetOrder(orderID, owner string) (*types.Order, error) {
	return s.db.GetOrderByOrderIDAndOwner(orderID, owner)
}

func buildCondition(cr *ConditionRequest, loc *time.Location) (*types.Condition, error) {
	switch types.ConditionType(cr.Type) {
	case types.ConditionPrice:
		return buildPriceCondition(cr)
	case types.ConditionTime:
		return buildTimeCondition(cr, loc)
	case types.ConditionMarket:
		return buildMarketCondition(cr)
	default:
		return nil, fmt.Errorf("type must be one of price, time, market (got %q)", cr.Type)
	}
}

func buildPriceCondition(cr *ConditionRequest) (*types.Condition, error) {
	trigger := types.TriggerType(cr.Trigger)
	switch trigger {
	case types.TriggerBelow, types.TriggerAbove, types.TriggerBetween:
	default:
		return nil, fmt.Errorf("trigger_type must be one of below, above, between (got %q)", cr.Trigger)
	}
	if cr.Price <= 0 {
		return nil, errors.New("price must be greater than zero")
	}
	if trigger == types.TriggerBetween {
		if cr.UpperPrice == nil {
			return nil, errors.New("between trigger requires upper_price")
		}
		if *cr.UpperPrice < cr.Price {
			return nil, errors.New("upper_price must be at least price")
		}
	}

	return &types.Condition{
		Type: types.ConditionPrice,
		Price: &types.PriceCondition{
			Trigger:    trigger,
			Price:      cr.Price,
			UpperPrice: cr.UpperPrice,
		},
	}, nil
}

func buildTimeCondition(cr *ConditionRequest, loc *time.Location) (*types.Condition, error) {
	tc := &types.TimeCondition{
		OffsetMinutes: cr.OffsetMinutes,
		Recurring:     cr.Recurring,
	}

	for _, f := range []struct {
		value string
		dest  **time.Time
		name  string
	}{
		{cr.StartTime, &tc.StartTime, "start_time"},
		{cr.EndTime, &tc.EndTime, "end_time"},
		{cr.BaseTime, &tc.BaseTime, "base_time"},
	} {
		if f.value == "" {
			continue
		}
		t, err := parseUserTime(f.value, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dest = &t
	}

	if tc.StartTime == nil && tc.EndTime == nil && tc.BaseTime == nil {
		return nil, errors.New("time condition requires start_time, end_time or base_time")
	}
	if tc.StartTime != nil && tc.EndTime != nil && tc.EndTime.Before(*tc.StartTime) {
		return nil, errors.New("end_time must be after start_time")
	}

	if cr.Recurring {
		freq := types.Frequency(cr.Frequency)
		switch freq {
		case types.FrequencyDaily, types.FrequencyWeekly, types.FrequencyMonthly:
			tc.Frequency = freq
		default:
			return nil, fmt.Errorf("frequency must be one of daily, weekly, monthly (got %q)", cr.Frequency)
		}
	}

	return &types.Condition{Type: types.ConditionTime, Time: tc}, nil
}

func buildMarketCondition(cr *ConditionRequest) (*types.Condition, error) {
	metric := types.Metric(cr.Metric)
	switch metric {
	case types.MetricVolume, types.MetricMarketCap, types.MetricLiquidity:
	default:
		return nil, fmt.Errorf("metric must be one of volume, market_cap, liquidity (got %q)", cr.Metric)
	}

	comparison := types.Comparison(cr.Comparison)
	switch comparison {
	case types.ComparisonAbove, types.ComparisonBelow, types.ComparisonEquals:
	default:
		return nil, fmt.Errorf("comparison must be one of above, below, equals (got %q)", cr.Comparison)
	}

	if cr.Value < 0 {
		return nil, errors.New("value must not be negative")
	}

	return &types.Condition{
		Type: types.ConditionMarket,
		Market: &types.MarketCondition{
			Metric:          metric,
			Comparison:      comparison,
			Value:           cr.Value,
			VolumeTrigger:   cr.VolumeTrigger,
			VolumeThreshold: cr.VolumeThreshold,
		},
	}, nil
}

// parseUserTime accepts RFC3339 instants (already zone-qualified) or naive
// local timestamps interpreted in the caller's timezone. The returned instant
// is always UTC; no timezone-relative time survives past this point.
func parseUserTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
