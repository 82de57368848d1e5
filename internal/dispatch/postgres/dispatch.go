package postgres

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	dispatchDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/dispatch"
	"github.com/tanawath/sms-payment-gateway/internal/dispatch"
)

// DispatchRepository implements dispatch.RepositoryAPI using GORM
type DispatchRepository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) dispatch.RepositoryAPI {
	return &DispatchRepository{db: db}
}

// UpsertUnmatched records an exhausted dispatch. A retried payment that
// exhausts again refreshes its attempt trail and reopens the entry.
func (r *DispatchRepository) UpsertUnmatched(paymentID int64, attempts json.RawMessage) (*dispatchDatamodel.UnmatchedPayment, error) {
	entry := &dispatchDatamodel.UnmatchedPayment{
		PaymentID:      paymentID,
		AttemptedSites: attempts,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"attempted_sites": attempts,
			"reviewed":        false,
			"updated_at":      time.Now(),
		}),
	}).Create(entry).Error
	if err != nil {
		return nil, err
	}

	// The conflict path does not backfill the struct; reload so callers
	// always see the stored row.
	var stored dispatchDatamodel.UnmatchedPayment
	if err := r.db.Where("payment_id = ?", paymentID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *DispatchRepository) GetUnmatched(id int64) (*dispatchDatamodel.UnmatchedPayment, error) {
	var entry dispatchDatamodel.UnmatchedPayment
	err := r.db.Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUnmatchedNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *DispatchRepository) ListUnmatched(reviewed *bool, offset, limit int) ([]*dispatchDatamodel.UnmatchedPayment, error) {
	query := r.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if reviewed != nil {
		query = query.Where("reviewed = ?", *reviewed)
	}

	var entries []*dispatchDatamodel.UnmatchedPayment
	err := query.Find(&entries).Error
	return entries, err
}

func (r *DispatchRepository) MarkReviewed(id int64, notes *string) error {
	updates := map[string]interface{}{
		"reviewed":   true,
		"updated_at": time.Now(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	result := r.db.Model(&dispatchDatamodel.UnmatchedPayment{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrUnmatchedNotFound
	}
	return nil
}

// RecordOutcome bumps the aggregate counters for one terminal dispatch
// outcome. The counters live in a singleton row with a fixed id so that
// concurrent dispatches increment the same row instead of racing to create
// competing ones.
func (r *DispatchRepository) RecordOutcome(outcome string) error {
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&dispatchDatamodel.Statistics{ID: 1}).Error; err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"last_dispatch_time": now,
		"updated_at":         now,
	}
	switch outcome {
	case dispatch.OutcomeMatched:
		updates["total_dispatched"] = gorm.Expr("total_dispatched + 1")
		updates["total_matched"] = gorm.Expr("total_matched + 1")
	case dispatch.OutcomeUnmatched:
		updates["total_dispatched"] = gorm.Expr("total_dispatched + 1")
		updates["total_unmatched"] = gorm.Expr("total_unmatched + 1")
	case dispatch.OutcomeGatewayNotReady:
		updates["total_failed"] = gorm.Expr("total_failed + 1")
	}

	return r.db.Model(&dispatchDatamodel.Statistics{}).
		Where("id = ?", 1).
		Updates(updates).Error
}

func (r *DispatchRepository) GetStatistics() (*dispatchDatamodel.Statistics, error) {
	var stats dispatchDatamodel.Statistics
	err := r.db.First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dispatchDatamodel.Statistics{}, nil
		}
		return nil, err
	}
	return &stats, nil
}
