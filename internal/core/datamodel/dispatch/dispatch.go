package dispatch

import (
	"encoding/json"
	"time"
)

// UnmatchedPayment records a payment event that exhausted the full dispatch
// chain without any site claiming it. Terminal until an operator retries or
// marks it reviewed.
type UnmatchedPayment struct {
	ID        int64 `gorm:"primaryKey"`
	PaymentID int64 `gorm:"column:payment_id;not null;uniqueIndex"`
	// AttemptedSites holds the ordered list of attempted sites with their
	// outcomes, as JSON.
	AttemptedSites json.RawMessage `gorm:"column:attempted_sites;type:jsonb"`
	Reviewed       bool            `gorm:"column:reviewed;default:false"`
	Notes          *string         `gorm:"column:notes"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (UnmatchedPayment) TableName() string {
	return "unmatched_payments"
}

// Statistics is the single aggregate counter row. Counters only grow;
// per-site match counts live on the websites table.
type Statistics struct {
	ID               int64      `gorm:"primaryKey"`
	TotalDispatched  int64      `gorm:"column:total_dispatched;default:0"`
	TotalMatched     int64      `gorm:"column:total_matched;default:0"`
	TotalUnmatched   int64      `gorm:"column:total_unmatched;default:0"`
	TotalFailed      int64      `gorm:"column:total_failed;default:0"`
	LastDispatchTime *time.Time `gorm:"column:last_dispatch_time"`

	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Statistics) TableName() string {
	return "dispatch_statistics"
}
