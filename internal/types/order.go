package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Action is what the engine does once an order's conditions are met.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionNotify Action = "notify"
)

// Status is the order lifecycle state. Pending is the only non-terminal state;
// every transition out of pending is final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusError     Status = "error"
)

// Logic combines the per-condition verdicts of an order.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Order is a conditional trade request. It stays pending until the monitor
// observes all (AND) or any (OR) of its conditions satisfied, at which point
// the execution pipeline realizes it as an on-chain swap.
type Order struct {
	gorm.Model    `json:"-"`
	OrderID       string `gorm:"uniqueIndex" json:"order_id"`
	Owner         string `json:"owner"`
	WalletAddress string `json:"wallet_address,omitempty"`

	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	Action       Action  `json:"action"`
	Amount       float64 `json:"amount"`

	Conditions ConditionList `gorm:"type:text" json:"conditions"`
	Logic      Logic         `json:"logic"`

	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	// Monitoring bookkeeping, written once per evaluation attempt.
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CheckCount    int64      `json:"check_count"`

	// Execution result, committed exactly once.
	TxHash           string  `json:"tx_hash,omitempty"`
	ExecutionPrice   float64 `json:"execution_price,omitempty"`
	ExecutionDetails string  `json:"execution_details,omitempty"`

	// Claim lease. A scheduler instance takes the lock before evaluating an
	// order so overlapping ticks (or a second scheduler process) never run
	// the same order concurrently.
	LockedBy    string     `json:"-"`
	LockedUntil *time.Time `json:"-"`
}

// Expired reports whether the order's expiry has passed at the given instant.
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// ConditionList stores the order's conditions as a JSON column.
type ConditionList []Condition

// Value implements driver.Valuer for gorm serialization.
func (c ConditionList) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for gorm deserialization.
func (c *ConditionList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported conditions column type %T", value)
	}
}

// ExecutionRecord carries the artifacts of a confirmed execution into the
// order's terminal commit.
type ExecutionRecord struct {
	TxHash     string
	Price      float64
	Details    string
	ExecutedAt time.Time
}
