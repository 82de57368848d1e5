package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	orderDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/order"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/order"
)

// OrderRepository implements order.RepositoryAPI using GORM
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) order.RepositoryAPI {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *orderDatamodel.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id int64) (*orderDatamodel.Order, error) {
	var o orderDatamodel.Order
	err := r.db.Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByOrderNumber(orderNumber string) (*orderDatamodel.Order, error) {
	var o orderDatamodel.Order
	err := r.db.Where("order_number = ?", orderNumber).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) List(status string, offset, limit int) ([]*orderDatamodel.Order, error) {
	query := r.db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []*orderDatamodel.Order
	err := query.Find(&orders).Error
	return orders, err
}

// LiveAmountsNear collects the final amounts of live orders whose base
// amount lies within radius satang of the requested base. The allocator
// scans these for the first free suffix slot.
func (r *OrderRepository) LiveAmountsNear(base money.Amount, radius int64, now time.Time) ([]money.Amount, error) {
	var satang []int64
	err := r.db.Model(&orderDatamodel.Order{}).
		Where("status = ?", orderDatamodel.StatusPending).
		Where("expires_at > ?", now).
		Where("base_amount_satang BETWEEN ? AND ?", base.Satang()-radius, base.Satang()+radius).
		Pluck("amount_satang", &satang).Error
	if err != nil {
		return nil, err
	}

	amounts := make([]money.Amount, 0, len(satang))
	for _, s := range satang {
		amounts = append(amounts, money.FromSatang(s))
	}
	return amounts, nil
}

// FindLiveByAmount returns pending, non-expired orders holding exactly this
// amount, oldest first. The allocator keeps this to at most one row; more
// than one is an integrity fault the service refuses to resolve.
func (r *OrderRepository) FindLiveByAmount(amount money.Amount, now time.Time) ([]*orderDatamodel.Order, error) {
	var orders []*orderDatamodel.Order
	err := r.db.
		Where("amount_satang = ?", amount.Satang()).
		Where("status = ?", orderDatamodel.StatusPending).
		Where("expires_at > ?", now).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) MarkPaid(id int64, paidAt time.Time) error {
	return r.transition(id, map[string]interface{}{
		"status":     orderDatamodel.StatusPaid,
		"paid_at":    paidAt,
		"updated_at": paidAt,
	})
}

func (r *OrderRepository) Cancel(id int64, now time.Time) error {
	return r.transition(id, map[string]interface{}{
		"status":     orderDatamodel.StatusCancelled,
		"updated_at": now,
	})
}

// transition applies a status change conditional on the order still being
// pending, so two concurrent claims can never both succeed.
func (r *OrderRepository) transition(id int64, updates map[string]interface{}) error {
	res := r.db.Model(&orderDatamodel.Order{}).
		Where("id = ? AND status = ?", id, orderDatamodel.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.Model(&orderDatamodel.Order{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return internal.ErrOrderNotFound
		}
		return internal.ErrOrderNotPending
	}
	return nil
}

func (r *OrderRepository) ExpireOverdue(now time.Time) (int64, error) {
	res := r.db.Model(&orderDatamodel.Order{}).
		Where("status = ? AND expires_at <= ?", orderDatamodel.StatusPending, now).
		Updates(map[string]interface{}{
			"status":     orderDatamodel.StatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
