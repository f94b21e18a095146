package types

import (
	"testing"
	"time"
)

func TestOrderExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	noExpiry := &Order{}
	if noExpiry.Expired(now) {
		t.Fatal("an order without expiry never expires")
	}

	past := now.Add(-time.Minute)
	if !(&Order{ExpiresAt: &past}).Expired(now) {
		t.Fatal("expected past expiry to report expired")
	}

	future := now.Add(time.Minute)
	if (&Order{ExpiresAt: &future}).Expired(now) {
		t.Fatal("expected future expiry to report live")
	}
}

func TestConditionListRoundTrip(t *testing.T) {
	upper := 110.0
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	list := ConditionList{
		{
			Type:  ConditionPrice,
			Price: &PriceCondition{Trigger: TriggerBetween, Price: 90, UpperPrice: &upper},
		},
		{
			Type: ConditionTime,
			Time: &TimeCondition{StartTime: &start, Recurring: true, Frequency: FrequencyDaily},
		},
	}

	value, err := list.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded ConditionList
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 conditions back, got %d", len(decoded))
	}
	if decoded[0].Price == nil || decoded[0].Price.UpperPrice == nil || *decoded[0].Price.UpperPrice != 110 {
		t.Fatalf("price payload lost in round trip: %+v", decoded[0])
	}
	if decoded[1].Time == nil || decoded[1].Time.Frequency != FrequencyDaily {
		t.Fatalf("time payload lost in round trip: %+v", decoded[1])
	}

	var empty ConditionList
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("unexpected error scanning nil: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil list from nil column, got %+v", empty)
	}
}

func TestTimeConditionWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	relative := &TimeCondition{BaseTime: &base, OffsetMinutes: 90}
	start, end := relative.Window()
	if start == nil || !start.Equal(base.Add(90*time.Minute)) {
		t.Fatalf("expected derived start 90m after base, got %v", start)
	}
	if end != nil {
		t.Fatalf("expected open-ended window, got %v", end)
	}

	// A direct start wins over the relative derivation
	direct := base.Add(time.Hour)
	mixed := &TimeCondition{StartTime: &direct, BaseTime: &base, OffsetMinutes: 90}
	start, _ = mixed.Window()
	if !start.Equal(direct) {
		t.Fatalf("expected direct start to win, got %v", start)
	}
}
