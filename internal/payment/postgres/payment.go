package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/payment"
)

// PaymentRepository implements payment.RepositoryAPI using GORM
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) payment.RepositoryAPI {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(event *paymentDatamodel.Event) error {
	return r.db.Create(event).Error
}

func (r *PaymentRepository) GetByID(id int64) (*paymentDatamodel.Event, error) {
	var event paymentDatamodel.Event
	err := r.db.Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *PaymentRepository) GetByStatus(status string, offset, limit int) ([]*paymentDatamodel.Event, error) {
	var events []*paymentDatamodel.Event
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

func (r *PaymentRepository) GetRecent(offset, limit int) ([]*paymentDatamodel.Event, error) {
	var events []*paymentDatamodel.Event
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

func (r *PaymentRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&paymentDatamodel.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// MarkMatched stores the winning site and moves the event to verified in
// one statement.
func (r *PaymentRepository) MarkMatched(id int64, websiteID int64, orderNumber string) error {
	return r.db.Model(&paymentDatamodel.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               paymentDatamodel.StatusVerified,
			"matched_website_id":   websiteID,
			"matched_order_number": orderNumber,
			"updated_at":           time.Now(),
		}).Error
}

func (r *PaymentRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&paymentDatamodel.Event{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// SumAmountSince totals incoming amounts created at or after the cutoff.
func (r *PaymentRepository) SumAmountSince(since time.Time) (money.Amount, error) {
	var total int64
	err := r.db.Model(&paymentDatamodel.Event{}).
		Select("COALESCE(SUM(amount_satang), 0)").
		Where("created_at >= ? AND direction = ?", since, paymentDatamodel.DirectionIncoming).
		Scan(&total).Error
	return money.Amount(total), err
}
