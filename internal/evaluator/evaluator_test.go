package evaluator

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/solwatch/trigger-api/internal/types"
)

func ptr[T any](v T) *T {
	return &v
}

func snapshotAt(price float64, asOf time.Time) *types.MarketSnapshot {
	volume := price * 1_000_000
	return &types.MarketSnapshot{
		TokenAddress: "TokenMint1111111111111111111111111111111111",
		Price:        price,
		Volume:       &volume,
		AsOf:         asOf,
	}
}

func priceCondition(trigger types.TriggerType, price float64) types.Condition {
	return types.Condition{
		Type:  types.ConditionPrice,
		Price: &types.PriceCondition{Trigger: trigger, Price: price},
	}
}

func windowCondition(start, end time.Time) types.Condition {
	return types.Condition{
		Type: types.ConditionTime,
		Time: &types.TimeCondition{StartTime: &start, EndTime: &end},
	}
}

func TestEvaluatePriceTriggers(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cond    types.Condition
		current float64
		want    bool
	}{
		{"below met", priceCondition(types.TriggerBelow, 100), 95, true},
		{"below met at boundary", priceCondition(types.TriggerBelow, 100), 100, true},
		{"below not met", priceCondition(types.TriggerBelow, 100), 105, false},
		{"above met", priceCondition(types.TriggerAbove, 100), 105, true},
		{"above not met", priceCondition(types.TriggerAbove, 100), 95, false},
		{
			"between met",
			types.Condition{Type: types.ConditionPrice, Price: &types.PriceCondition{
				Trigger: types.TriggerBetween, Price: 90, UpperPrice: ptr(110.0),
			}},
			100, true,
		},
		{
			"between outside range",
			types.Condition{Type: types.ConditionPrice, Price: &types.PriceCondition{
				Trigger: types.TriggerBetween, Price: 90, UpperPrice: ptr(110.0),
			}},
			120, false,
		},
		{
			"between without upper bound never fires",
			types.Condition{Type: types.ConditionPrice, Price: &types.PriceCondition{
				Trigger: types.TriggerBetween, Price: 90,
			}},
			100, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &types.Order{
				OrderID:    "order-1",
				Conditions: types.ConditionList{tt.cond},
				Logic:      types.LogicAnd,
			}
			result := Evaluate(order, snapshotAt(tt.current, asOf))
			if result.Satisfied != tt.want {
				t.Fatalf("expected satisfied=%t, got %t (detail: %s)",
					tt.want, result.Satisfied, result.Conditions[0].Detail)
			}
		})
	}
}

func TestEvaluateCombinators(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	openWindow := windowCondition(asOf.Add(-time.Hour), asOf.Add(time.Hour))
	closedWindow := windowCondition(asOf.Add(-2*time.Hour), asOf.Add(-time.Hour))

	tests := []struct {
		name       string
		logic      types.Logic
		conditions types.ConditionList
		price      float64
		want       bool
	}{
		{
			"and requires every condition",
			types.LogicAnd,
			types.ConditionList{priceCondition(types.TriggerBelow, 100), openWindow},
			95, true,
		},
		{
			"and fails on one miss",
			types.LogicAnd,
			types.ConditionList{priceCondition(types.TriggerBelow, 100), closedWindow},
			95, false,
		},
		{
			"or fires on one hit",
			types.LogicOr,
			types.ConditionList{priceCondition(types.TriggerBelow, 100), closedWindow},
			95, true,
		},
		{
			"or fails when every condition misses",
			types.LogicOr,
			types.ConditionList{priceCondition(types.TriggerBelow, 100), closedWindow},
			150, false,
		},
		{
			"empty condition list never fires",
			types.LogicAnd,
			types.ConditionList{},
			95, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &types.Order{
				OrderID:    "order-1",
				Conditions: tt.conditions,
				Logic:      tt.logic,
			}
			result := Evaluate(order, snapshotAt(tt.price, asOf))
			if result.Satisfied != tt.want {
				t.Fatalf("expected satisfied=%t, got %t", tt.want, result.Satisfied)
			}
		})
	}
}

func TestEvaluateUsesSnapshotClock(t *testing.T) {
	// The window is open at the snapshot's AsOf instant even if wall time has
	// long moved on: the snapshot is the clock.
	start := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	order := &types.Order{
		OrderID:    "order-1",
		Conditions: types.ConditionList{windowCondition(start, end)},
		Logic:      types.LogicAnd,
	}

	inside := Evaluate(order, snapshotAt(100, start.Add(30*time.Minute)))
	if !inside.Satisfied {
		t.Fatalf("expected window open at snapshot time, got detail %q", inside.Conditions[0].Detail)
	}

	after := Evaluate(order, snapshotAt(100, end.Add(time.Minute)))
	if after.Satisfied {
		t.Fatal("expected window closed after end")
	}
}

func TestEvaluateRelativeWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	order := &types.Order{
		OrderID: "order-1",
		Conditions: types.ConditionList{{
			Type: types.ConditionTime,
			Time: &types.TimeCondition{BaseTime: &base, OffsetMinutes: 60},
		}},
		Logic: types.LogicAnd,
	}

	before := Evaluate(order, snapshotAt(100, base.Add(30*time.Minute)))
	if before.Satisfied {
		t.Fatal("expected window still closed before base_time + offset")
	}

	after := Evaluate(order, snapshotAt(100, base.Add(90*time.Minute)))
	if !after.Satisfied {
		t.Fatalf("expected window open after base_time + offset, detail %q", after.Conditions[0].Detail)
	}
}

func TestEvaluateRecurringDailyWindow(t *testing.T) {
	// Stored window: 09:00-10:00 UTC on some day long past. The recurring
	// projection should re-open it every day at the same clock time.
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	order := &types.Order{
		OrderID: "order-1",
		Conditions: types.ConditionList{{
			Type: types.ConditionTime,
			Time: &types.TimeCondition{
				StartTime: &start,
				EndTime:   &end,
				Recurring: true,
				Frequency: types.FrequencyDaily,
			},
		}},
		Logic: types.LogicAnd,
	}

	months := time.Date(2024, 6, 20, 9, 30, 0, 0, time.UTC)
	inWindow := Evaluate(order, snapshotAt(100, months))
	if !inWindow.Satisfied {
		t.Fatalf("expected daily window open at 09:30, detail %q", inWindow.Conditions[0].Detail)
	}

	evening := Evaluate(order, snapshotAt(100, time.Date(2024, 6, 20, 18, 0, 0, 0, time.UTC)))
	if evening.Satisfied {
		t.Fatal("expected daily window closed at 18:00")
	}
}

func TestEvaluateMarketConditions(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("volume above", func(t *testing.T) {
		order := &types.Order{
			OrderID: "order-1",
			Conditions: types.ConditionList{{
				Type: types.ConditionMarket,
				Market: &types.MarketCondition{
					Metric:     types.MetricVolume,
					Comparison: types.ComparisonAbove,
					Value:      50_000_000,
				},
			}},
			Logic: types.LogicAnd,
		}
		result := Evaluate(order, snapshotAt(100, asOf))
		if !result.Satisfied {
			t.Fatalf("expected volume condition met, detail %q", result.Conditions[0].Detail)
		}
	})

	t.Run("volume threshold floor", func(t *testing.T) {
		order := &types.Order{
			OrderID: "order-1",
			Conditions: types.ConditionList{{
				Type: types.ConditionMarket,
				Market: &types.MarketCondition{
					Metric:          types.MetricVolume,
					Comparison:      types.ComparisonAbove,
					Value:           50_000_000,
					VolumeThreshold: ptr(500_000_000.0),
				},
			}},
			Logic: types.LogicAnd,
		}
		result := Evaluate(order, snapshotAt(100, asOf))
		if result.Satisfied {
			t.Fatal("expected threshold floor to block the condition")
		}
	})

	t.Run("missing metric is not satisfied", func(t *testing.T) {
		order := &types.Order{
			OrderID: "order-1",
			Conditions: types.ConditionList{{
				Type: types.ConditionMarket,
				Market: &types.MarketCondition{
					Metric:     types.MetricLiquidity,
					Comparison: types.ComparisonAbove,
					Value:      1000,
				},
			}},
			Logic: types.LogicAnd,
		}
		snapshot := snapshotAt(100, asOf)
		snapshot.Liquidity = nil

		result := Evaluate(order, snapshot)
		if result.Satisfied {
			t.Fatal("expected missing liquidity data to fail the condition")
		}
		if !strings.Contains(result.Conditions[0].Detail, "no liquidity data") {
			t.Fatalf("expected explanatory detail, got %q", result.Conditions[0].Detail)
		}
	})
}

func TestEvaluateIsDeterministic(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &types.Order{
		OrderID: "order-1",
		Conditions: types.ConditionList{
			priceCondition(types.TriggerBelow, 100),
			windowCondition(asOf.Add(-time.Hour), asOf.Add(time.Hour)),
		},
		Logic: types.LogicAnd,
	}
	snapshot := snapshotAt(95, asOf)

	first := Evaluate(order, snapshot)
	second := Evaluate(order, snapshot)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical inputs:\n%+v\n%+v", first, second)
	}
}
