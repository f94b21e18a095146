package orders

import (
	"github.com/solwatch/trigger-api/internal/types"
)

// CreateLimitOrderRequest is the reduced-generality order shape: one price
// threshold, no combinators.
type CreateLimitOrderRequest struct {
	WalletAddress string   `json:"wallet_address"`
	TokenAddress  string   `json:"token_address"`
	TokenSymbol   string   `json:"token_symbol"`
	Action        string   `json:"action"`
	Amount        float64  `json:"amount"`
	Trigger       string   `json:"trigger_type"`
	Price         float64  `json:"price"`
	UpperPrice    *float64 `json:"upper_price,omitempty"`
	ExpiresAt     string   `json:"expires_at,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
}

// CreateLimitOrder creates a limit order as a single-price-condition instance
// of the general model. It runs the same validation, persistence, scheduling
// and cancellation machinery as multi-condition orders; logic degenerates to
// a one-element AND.
func (s *Service) CreateLimitOrder(owner string, req *CreateLimitOrderRequest) (*types.Order, error) {
	general := &CreateOrderRequest{
		WalletAddress: req.WalletAddress,
		TokenAddress:  req.TokenAddress,
		TokenSymbol:   req.TokenSymbol,
		Action:        req.Action,
		Amount:        req.Amount,
		Logic:         string(types.LogicAnd),
		Timezone:      req.Timezone,
		ExpiresAt:     req.ExpiresAt,
		Conditions: []ConditionRequest{
			{
				Type:       string(types.ConditionPrice),
				Trigger:    req.Trigger,
				Price:      req.Price,
				UpperPrice: req.UpperPrice,
			},
		},
	}
	return s.CreateOrder(owner, general)
}
