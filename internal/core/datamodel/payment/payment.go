package payment

import (
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Event is one classified bank notification. Events are kept forever for
// audit; status moves through pending → verified/approved/rejected.
type Event struct {
	ID                  int64        `gorm:"primaryKey"`
	SmsID               int64        `gorm:"column:sms_id;not null;index"`
	BankName            string       `gorm:"column:bank_name;not null"`
	AccountNumberMasked string       `gorm:"column:account_number_masked"`
	Amount              money.Amount `gorm:"column:amount_satang;not null"`
	Currency            string       `gorm:"column:currency;not null;default:THB"`
	Direction           string       `gorm:"column:direction;not null"`
	TransactionTime     time.Time    `gorm:"column:transaction_time"`
	Reference           *string      `gorm:"column:reference"`
	SenderName          *string      `gorm:"column:sender_name"`
	RawBody             string       `gorm:"column:raw_body;not null"`
	ConfidenceScore     float64      `gorm:"column:confidence_score;not null"`
	Status              string       `gorm:"column:status;default:pending"`

	// Set by dispatch when a site claims the payment.
	MatchedWebsiteID   *int64  `gorm:"column:matched_website_id"`
	MatchedOrderNumber *string `gorm:"column:matched_order_number"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Event) TableName() string {
	return "payment_events"
}
