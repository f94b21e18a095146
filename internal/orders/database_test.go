package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/solwatch/trigger-api/internal/types"
)

func seedPending(t *testing.T, db *Database, token string) *types.Order {
	t.Helper()
	order := &types.Order{
		OrderID:      uuid.New().String(),
		Owner:        "client-1",
		TokenAddress: token,
		TokenSymbol:  "BONK",
		Action:       types.ActionBuy,
		Amount:       10,
		Logic:        types.LogicAnd,
		Status:       types.StatusPending,
		Conditions: types.ConditionList{{
			Type:  types.ConditionPrice,
			Price: &types.PriceCondition{Trigger: types.TriggerBelow, Price: 100},
		}},
	}
	if err := db.CreateOrder(order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

func TestClaimOrderExclusive(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")
	lease := time.Now().UTC().Add(time.Minute)

	ok, err := db.ClaimOrder(order.OrderID, "instance-a", lease)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}

	// A second claimer loses while the lease holds
	ok, err = db.ClaimOrder(order.OrderID, "instance-b", lease)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected competing claim to fail")
	}

	// The holder can renew its own claim
	ok, err = db.ClaimOrder(order.OrderID, "instance-a", lease.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected holder to renew its claim")
	}
}

func TestClaimOrderLapsedLease(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")

	// instance-a claimed but its lease is already in the past (crashed mid-check)
	ok, err := db.ClaimOrder(order.OrderID, "instance-a", time.Now().UTC().Add(-time.Minute))
	if err != nil || !ok {
		t.Fatalf("expected stale claim to be set: ok=%t err=%v", ok, err)
	}

	ok, err = db.ClaimOrder(order.OrderID, "instance-b", time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected claim over a lapsed lease to succeed")
	}
}

func TestClaimOrderReleasedClaim(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")
	lease := time.Now().UTC().Add(time.Minute)

	if ok, _ := db.ClaimOrder(order.OrderID, "instance-a", lease); !ok {
		t.Fatal("expected first claim to succeed")
	}
	if err := db.ReleaseOrder(order.OrderID, "instance-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := db.ClaimOrder(order.OrderID, "instance-b", lease)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected claim after release to succeed")
	}
}

func TestCommitExecutionIsConditional(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")

	rec := &types.ExecutionRecord{
		TxHash:     "SIG-1",
		Price:      99.5,
		Details:    `{"kind":"swap"}`,
		ExecutedAt: time.Now().UTC(),
	}

	ok, err := db.CommitExecution(order.OrderID, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first commit to land")
	}

	stored, _ := db.GetOrder(order.OrderID)
	if stored.Status != types.StatusExecuted {
		t.Fatalf("expected executed status, got %s", stored.Status)
	}
	if stored.TxHash != "SIG-1" || stored.ExecutionPrice != 99.5 {
		t.Fatalf("expected execution artifacts stamped, got %+v", stored)
	}
	if stored.ExecutedAt == nil {
		t.Fatal("expected executed_at to be set")
	}

	// A second commit must lose: the order already left pending
	ok, err = db.CommitExecution(order.OrderID, &types.ExecutionRecord{TxHash: "SIG-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate commit to lose")
	}

	stored, _ = db.GetOrder(order.OrderID)
	if stored.TxHash != "SIG-1" {
		t.Fatalf("expected first transaction to survive, got %s", stored.TxHash)
	}
}

func TestCancelAndExecuteRace(t *testing.T) {
	db := NewDatabase(testDB(t))

	// Cancel first: the commit must lose
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")
	if ok, _ := db.CancelOrder(order.OrderID, "client-1"); !ok {
		t.Fatal("expected cancel to land")
	}
	ok, err := db.CommitExecution(order.OrderID, &types.ExecutionRecord{TxHash: "SIG-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected commit after cancel to lose")
	}
	stored, _ := db.GetOrder(order.OrderID)
	if stored.Status != types.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", stored.Status)
	}

	// Commit first: the cancel must lose
	order = seedPending(t, db, "TokenMint1111111111111111111111111111111111")
	if ok, _ := db.CommitExecution(order.OrderID, &types.ExecutionRecord{TxHash: "SIG-2"}); !ok {
		t.Fatal("expected commit to land")
	}
	ok, err = db.CancelOrder(order.OrderID, "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected cancel after commit to lose")
	}
	stored, _ = db.GetOrder(order.OrderID)
	if stored.Status != types.StatusExecuted {
		t.Fatalf("expected executed status, got %s", stored.Status)
	}
}

func TestTransitionStatusExpiry(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")

	ok, err := db.TransitionStatus(order.OrderID, types.StatusPending, types.StatusExpired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected expiry transition to land")
	}

	// Terminal states never transition again
	ok, err = db.TransitionStatus(order.OrderID, types.StatusPending, types.StatusError)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected transition from a terminal state to lose")
	}
}

func TestRecordCheckIncrements(t *testing.T) {
	db := NewDatabase(testDB(t))
	order := seedPending(t, db, "TokenMint1111111111111111111111111111111111")

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := db.RecordCheck(order.OrderID, at); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stored, _ := db.GetOrder(order.OrderID)
	if stored.CheckCount != 3 {
		t.Fatalf("expected check_count 3, got %d", stored.CheckCount)
	}
	if stored.LastCheckedAt == nil {
		t.Fatal("expected last_checked_at to be set")
	}
}

func TestFetchPendingSkipsTerminalOrders(t *testing.T) {
	db := NewDatabase(testDB(t))

	pending := seedPending(t, db, "TokenMint1111111111111111111111111111111111")
	executed := seedPending(t, db, "TokenMint2222222222222222222222222222222222")
	if ok, _ := db.CommitExecution(executed.OrderID, &types.ExecutionRecord{TxHash: "SIG-1"}); !ok {
		t.Fatal("expected commit to land")
	}

	fetched, err := db.FetchPending(time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetched) != 1 || fetched[0].OrderID != pending.OrderID {
		t.Fatalf("expected only the pending order, got %+v", fetched)
	}

	count, err := db.CountPending()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected pending count 1, got %d", count)
	}
}
