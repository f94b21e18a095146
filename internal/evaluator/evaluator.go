// Package evaluator implements the pure condition-logic evaluator. Given an
// order and a market snapshot it produces a per-condition verdict and a
// combined boolean; it never touches the store, never raises, and derives
// everything (including recurring windows) from its inputs, so re-running it
// on unchanged inputs yields an identical result.
package evaluator

import (
	"fmt"
	"math"
	"time"

	"github.com/solwatch/trigger-api/internal/types"
)

// equalsTolerance bounds the relative error accepted by an equals comparison
// on market metrics.
const equalsTolerance = 1e-9

// Evaluate runs every condition of the order against the snapshot and
// combines the verdicts with the order's logic. The snapshot's AsOf instant
// is the evaluation clock; a condition whose required snapshot field is
// missing is not satisfied and carries an explanatory detail.
func Evaluate(order *types.Order, snapshot *types.MarketSnapshot) types.EvaluationResult {
	now := snapshot.AsOf.UTC()

	results := make([]types.ConditionResult, 0, len(order.Conditions))
	for _, cond := range order.Conditions {
		results = append(results, evaluateCondition(cond, snapshot, now))
	}

	satisfied := combine(order.Logic, results)

	return types.EvaluationResult{
		OrderID:     order.OrderID,
		Satisfied:   satisfied,
		Conditions:  results,
		Price:       snapshot.Price,
		EvaluatedAt: now,
	}
}

func combine(logic types.Logic, results []types.ConditionResult) bool {
	if len(results) == 0 {
		return false
	}
	if logic == types.LogicOr {
		for _, r := range results {
			if r.Met {
				return true
			}
		}
		return false
	}
	// AND is the default combinator.
	for _, r := range results {
		if !r.Met {
			return false
		}
	}
	return true
}

func evaluateCondition(cond types.Condition, snapshot *types.MarketSnapshot, now time.Time) types.ConditionResult {
	switch cond.Type {
	case types.ConditionPrice:
		if cond.Price == nil {
			return missingPayload(cond.Type)
		}
		return evaluatePrice(cond.Price, snapshot.Price)
	case types.ConditionTime:
		if cond.Time == nil {
			return missingPayload(cond.Type)
		}
		return evaluateTime(cond.Time, now)
	case types.ConditionMarket:
		if cond.Market == nil {
			return missingPayload(cond.Type)
		}
		return evaluateMarket(cond.Market, snapshot)
	default:
		return types.ConditionResult{
			Type:   cond.Type,
			Met:    false,
			Detail: fmt.Sprintf("unknown condition type %q", cond.Type),
		}
	}
}

func missingPayload(t types.ConditionType) types.ConditionResult {
	return types.ConditionResult{
		Type:   t,
		Met:    false,
		Detail: fmt.Sprintf("condition payload missing for type %q", t),
	}
}

func evaluatePrice(pc *types.PriceCondition, current float64) types.ConditionResult {
	result := types.ConditionResult{
		Type:         types.ConditionPrice,
		CurrentValue: current,
		TargetValue:  pc.Price,
	}

	switch pc.Trigger {
	case types.TriggerBelow:
		result.Met = current <= pc.Price
		result.Detail = fmt.Sprintf("price %g %s target %g", current, belowAbove(result.Met, "at or below", "above"), pc.Price)
	case types.TriggerAbove:
		result.Met = current >= pc.Price
		result.Detail = fmt.Sprintf("price %g %s target %g", current, belowAbove(result.Met, "at or above", "below"), pc.Price)
	case types.TriggerBetween:
		if pc.UpperPrice == nil {
			result.Detail = "between trigger missing upper_price"
			return result
		}
		result.Met = current >= pc.Price && current <= *pc.UpperPrice
		result.Detail = fmt.Sprintf("price %g within [%g, %g]: %t", current, pc.Price, *pc.UpperPrice, result.Met)
	default:
		result.Detail = fmt.Sprintf("unknown trigger type %q", pc.Trigger)
	}

	return result
}

func belowAbove(met bool, yes, no string) string {
	if met {
		return yes
	}
	return no
}

func evaluateTime(tc *types.TimeCondition, now time.Time) types.ConditionResult {
	result := types.ConditionResult{
		Type:         types.ConditionTime,
		CurrentValue: float64(now.Unix()),
	}

	start, end := tc.Window()
	if start == nil && end == nil {
		result.Detail = "time condition has no bounds"
		return result
	}

	if tc.Recurring && start != nil {
		start, end = currentWindow(tc.Frequency, *start, end, now)
	}

	if start != nil {
		result.TargetValue = float64(start.Unix())
		if now.Before(*start) {
			result.Detail = fmt.Sprintf("window opens at %s", start.Format(time.RFC3339))
			return result
		}
	}
	if end != nil && now.After(*end) {
		result.Detail = fmt.Sprintf("window closed at %s", end.Format(time.RFC3339))
		return result
	}

	result.Met = true
	result.Detail = "within time window"
	return result
}

// currentWindow projects a recurring condition's stored window onto the
// period containing now. The stored instants define the clock time (and for
// weekly/monthly the weekday or day of month); the current period is derived
// fresh on every call rather than cached on the order.
func currentWindow(freq types.Frequency, start time.Time, end *time.Time, now time.Time) (*time.Time, *time.Time) {
	var duration time.Duration
	if end != nil {
		duration = end.Sub(start)
	}

	var projected time.Time
	switch freq {
	case types.FrequencyWeekly:
		projected = time.Date(now.Year(), now.Month(), now.Day(),
			start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
		dayDiff := int(start.Weekday()) - int(projected.Weekday())
		projected = projected.AddDate(0, 0, dayDiff)
	case types.FrequencyMonthly:
		projected = time.Date(now.Year(), now.Month(), start.Day(),
			start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
	default: // daily
		projected = time.Date(now.Year(), now.Month(), now.Day(),
			start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
	}

	if end == nil {
		return &projected, nil
	}
	projectedEnd := projected.Add(duration)
	return &projected, &projectedEnd
}

func evaluateMarket(mc *types.MarketCondition, snapshot *types.MarketSnapshot) types.ConditionResult {
	result := types.ConditionResult{
		Type:        types.ConditionMarket,
		TargetValue: mc.Value,
	}

	var current *float64
	switch mc.Metric {
	case types.MetricVolume:
		current = snapshot.Volume
	case types.MetricMarketCap:
		current = snapshot.MarketCap
	case types.MetricLiquidity:
		current = snapshot.Liquidity
	default:
		result.Detail = fmt.Sprintf("unknown metric %q", mc.Metric)
		return result
	}

	if current == nil {
		result.Detail = fmt.Sprintf("snapshot has no %s data", mc.Metric)
		return result
	}
	result.CurrentValue = *current

	switch mc.Comparison {
	case types.ComparisonAbove:
		result.Met = *current > mc.Value
	case types.ComparisonBelow:
		result.Met = *current < mc.Value
	case types.ComparisonEquals:
		result.Met = math.Abs(*current-mc.Value) <= equalsTolerance*math.Max(math.Abs(*current), math.Abs(mc.Value))
	default:
		result.Detail = fmt.Sprintf("unknown comparison %q", mc.Comparison)
		return result
	}

	// A volume threshold is an extra floor on top of the comparison.
	if result.Met && mc.Metric == types.MetricVolume && mc.VolumeThreshold != nil {
		if *current < *mc.VolumeThreshold {
			result.Met = false
			result.Detail = fmt.Sprintf("volume %g under threshold %g", *current, *mc.VolumeThreshold)
			return result
		}
	}

	result.Detail = fmt.Sprintf("%s %g %s target %g: %t", mc.Metric, *current, mc.Comparison, mc.Value, result.Met)
	return result
}
