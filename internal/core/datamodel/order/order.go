package order

import (
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Order is a pending purchase owned by a destination site. Amount is fixed
// at creation (base + suffix) and never reassigned; the suffix becomes
// reusable the moment the status leaves pending.
type Order struct {
	ID           int64        `gorm:"primaryKey"`
	OrderNumber  string       `gorm:"column:order_number;not null;uniqueIndex"`
	BaseAmount   money.Amount `gorm:"column:base_amount_satang;not null"`
	Amount       money.Amount `gorm:"column:amount_satang;not null;index"`
	SuffixSatang int64        `gorm:"column:suffix_satang;not null;default:0"`
	Status       string       `gorm:"column:status;default:pending;index"`
	ExpiresAt    time.Time    `gorm:"column:expires_at;not null"`
	CustomerName *string      `gorm:"column:customer_name"`
	Description  *string      `gorm:"column:description"`
	PaidAt       *time.Time   `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Order) TableName() string {
	return "pending_orders"
}

// Live reports whether the order still holds its amount slot.
func (o *Order) Live(now time.Time) bool {
	return o.Status == StatusPending && o.ExpiresAt.After(now)
}
