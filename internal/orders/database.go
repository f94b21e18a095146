package orders

import (
	"errors"
	"time"

	"github.com/solwatch/trigger-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderByOrderIDAndOwner(orderID, owner string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ? AND owner = ?", orderID, owner).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListOrdersByOwner returns the owner's orders newest first, optionally
// filtered by status.
func (d *Database) ListOrdersByOwner(owner string, status types.Status) ([]types.Order, error) {
	query := d.db.Where("owner = ?", owner)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var result []types.Order
	if err := query.Order("created_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// FetchPending returns every pending order. Orders past their expiry are
// included so the scheduler can transition them to expired; nothing else
// mutates here, the fetch is read-only.
func (d *Database) FetchPending(now time.Time) ([]types.Order, error) {
	var result []types.Order
	if err := d.db.Where("status = ?", types.StatusPending).
		Order("created_at ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// CountPending returns the number of pending orders.
func (d *Database) CountPending() (int64, error) {
	var count int64
	err := d.db.Model(&types.Order{}).Where("status = ?", types.StatusPending).Count(&count).Error
	return count, err
}

// ClaimOrder takes the per-order lock before evaluation. The conditional
// UPDATE is the concurrency primitive: it succeeds only while the order is
// still pending and unclaimed (or the previous claim's lease has lapsed), so
// at most one scheduler instance ever works an order at a time, even across
// processes. Returns false when the claim was lost.
func (d *Database) ClaimOrder(orderID, claimer string, until time.Time) (bool, error) {
	now := time.Now().UTC()
	res := d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, types.StatusPending).
		Where("locked_by = '' OR locked_by IS NULL OR locked_by = ? OR locked_until < ?", claimer, now).
		Updates(map[string]interface{}{
			"locked_by":    claimer,
			"locked_until": until,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseOrder drops the claim lease if this claimer still holds it.
func (d *Database) ReleaseOrder(orderID, claimer string) error {
	return d.db.Model(&types.Order{}).
		Where("order_id = ? AND locked_by = ?", orderID, claimer).
		Updates(map[string]interface{}{
			"locked_by":    "",
			"locked_until": nil,
		}).Error
}

// RecordCheck bumps the monitoring bookkeeping fields. check_count is
// incremented once per evaluation attempt regardless of outcome and never
// decreases.
func (d *Database) RecordCheck(orderID string, at time.Time) error {
	return d.db.Model(&types.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"check_count":     gorm.Expr("check_count + 1"),
			"last_checked_at": at,
		}).Error
}

// CommitExecution atomically transitions pending -> executed, stamping the
// transaction artifacts. The write is conditional on the stored status still
// being pending; a concurrently cancelled or already executed order makes the
// commit a no-op and the caller must discard its result.
func (d *Database) CommitExecution(orderID string, rec *types.ExecutionRecord) (bool, error) {
	res := d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, types.StatusPending).
		Updates(map[string]interface{}{
			"status":            types.StatusExecuted,
			"executed_at":       rec.ExecutedAt,
			"tx_hash":           rec.TxHash,
			"execution_price":   rec.Price,
			"execution_details": rec.Details,
			"locked_by":         "",
			"locked_until":      nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus performs a conditional terminal transition (expired,
// error). Returns false when the order already left the expected status.
func (d *Database) TransitionStatus(orderID string, from, to types.Status) (bool, error) {
	res := d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status":       to,
			"locked_by":    "",
			"locked_until": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelOrder cancels a pending order owned by the caller. The same
// conditional-write rule as CommitExecution arbitrates a cancel racing an
// in-flight execution: whichever write lands first wins, the record never
// shows both outcomes.
func (d *Database) CancelOrder(orderID, owner string) (bool, error) {
	res := d.db.Model(&types.Order{}).
		Where("order_id = ? AND owner = ? AND status = ?", orderID, owner, types.StatusPending).
		Updates(map[string]interface{}{
			"status":       types.StatusCancelled,
			"locked_by":    "",
			"locked_until": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
