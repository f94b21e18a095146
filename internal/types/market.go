package types

import "time"

// MarketSnapshot is a point-in-time read of market state for one token.
// Optional fields are nil when the upstream source does not report them; a
// condition that needs a missing field evaluates to not satisfied.
type MarketSnapshot struct {
	TokenAddress string     `json:"token_address"`
	Price        float64    `json:"price"`
	Volume       *float64   `json:"volume,omitempty"`
	MarketCap    *float64   `json:"market_cap,omitempty"`
	Liquidity    *float64   `json:"liquidity,omitempty"`
	AsOf         time.Time  `json:"as_of"`
}

// ConditionResult is the verdict for a single condition within one
// evaluation pass.
type ConditionResult struct {
	Type         ConditionType `json:"type"`
	Met          bool          `json:"met"`
	CurrentValue float64       `json:"current_value"`
	TargetValue  float64       `json:"target_value"`
	Detail       string        `json:"detail,omitempty"`
}

// EvaluationResult is produced on every evaluation attempt, satisfied or not,
// so the scheduler can persist bookkeeping and surface diagnostics.
type EvaluationResult struct {
	OrderID     string            `json:"order_id"`
	Satisfied   bool              `json:"satisfied"`
	Conditions  []ConditionResult `json:"conditions"`
	Price       float64           `json:"price"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}
