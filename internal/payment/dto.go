package payment

import (
	"time"

	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// EventResponse is the operator-facing view of one payment event.
type EventResponse struct {
	ID                  int64        `json:"id"`
	SmsID               int64        `json:"sms_id"`
	BankName            string       `json:"bank_name"`
	AccountNumberMasked string       `json:"account_number_masked,omitempty"`
	Amount              money.Amount `json:"amount"`
	Currency            string       `json:"currency"`
	Direction           string       `json:"direction"`
	TransactionTime     time.Time    `json:"transaction_time"`
	Reference           *string      `json:"reference,omitempty"`
	SenderName          *string      `json:"sender_name,omitempty"`
	ConfidenceScore     float64      `json:"confidence_score"`
	Status              string       `json:"status"`
	MatchedWebsiteID    *int64       `json:"matched_website_id,omitempty"`
	MatchedOrderNumber  *string      `json:"matched_order_number,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

func toResponse(e *paymentDatamodel.Event) *EventResponse {
	return &EventResponse{
		ID:                  e.ID,
		SmsID:               e.SmsID,
		BankName:            e.BankName,
		AccountNumberMasked: e.AccountNumberMasked,
		Amount:              e.Amount,
		Currency:            e.Currency,
		Direction:           e.Direction,
		TransactionTime:     e.TransactionTime,
		Reference:           e.Reference,
		SenderName:          e.SenderName,
		ConfidenceScore:     e.ConfidenceScore,
		Status:              e.Status,
		MatchedWebsiteID:    e.MatchedWebsiteID,
		MatchedOrderNumber:  e.MatchedOrderNumber,
		CreatedAt:           e.CreatedAt,
	}
}
