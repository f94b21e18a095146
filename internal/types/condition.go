package types

import "time"

// ConditionType tags the payload variant carried by a Condition.
type ConditionType string

const (
	ConditionPrice  ConditionType = "price"
	ConditionTime   ConditionType = "time"
	ConditionMarket ConditionType = "market"
)

// TriggerType is the direction of a price condition.
type TriggerType string

const (
	TriggerBelow   TriggerType = "below"
	TriggerAbove   TriggerType = "above"
	TriggerBetween TriggerType = "between"
)

// Metric is the market statistic a market condition compares against.
type Metric string

const (
	MetricVolume    Metric = "volume"
	MetricMarketCap Metric = "market_cap"
	MetricLiquidity Metric = "liquidity"
)

// Comparison is the operator of a market condition.
type Comparison string

const (
	ComparisonAbove  Comparison = "above"
	ComparisonBelow  Comparison = "below"
	ComparisonEquals Comparison = "equals"
)

// Frequency is the recurrence of a recurring time condition.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Condition is one testable predicate attached to an order. Exactly one of
// the payload pointers is set, matching Type; the evaluator dispatches on the
// tag rather than on field presence.
type Condition struct {
	Type   ConditionType    `json:"type"`
	Price  *PriceCondition  `json:"price,omitempty"`
	Time   *TimeCondition   `json:"time,omitempty"`
	Market *MarketCondition `json:"market,omitempty"`
}

// PriceCondition triggers on the current price crossing a threshold, or
// sitting inside [Price, UpperPrice] for the between trigger.
type PriceCondition struct {
	Trigger    TriggerType `json:"trigger_type"`
	Price      float64     `json:"price"`
	UpperPrice *float64    `json:"upper_price,omitempty"`
}

// TimeCondition triggers inside a UTC window. The window is either direct
// (StartTime/EndTime) or relative (BaseTime plus OffsetMinutes, which derives
// the start). Recurring conditions re-derive the current window from
// Frequency at every evaluation; only UTC instants are ever stored here,
// local-time conversion happens once at order creation.
type TimeCondition struct {
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	BaseTime      *time.Time `json:"base_time,omitempty"`
	OffsetMinutes int64      `json:"offset_minutes,omitempty"`
	Recurring     bool       `json:"recurring,omitempty"`
	Frequency     Frequency  `json:"frequency,omitempty"`
}

// Window resolves the condition's absolute bounds. Relative mode derives the
// start from BaseTime + OffsetMinutes when no direct start is present.
func (tc *TimeCondition) Window() (start, end *time.Time) {
	start, end = tc.StartTime, tc.EndTime
	if start == nil && tc.BaseTime != nil {
		derived := tc.BaseTime.Add(time.Duration(tc.OffsetMinutes) * time.Minute)
		start = &derived
	}
	return start, end
}

// MarketCondition compares a snapshot metric against a threshold value. The
// optional VolumeThreshold tightens volume checks with a hard floor.
type MarketCondition struct {
	Metric          Metric     `json:"metric"`
	Comparison      Comparison `json:"comparison"`
	Value           float64    `json:"value"`
	VolumeTrigger   string     `json:"volume_trigger,omitempty"`
	VolumeThreshold *float64   `json:"volume_threshold,omitempty"`
}
