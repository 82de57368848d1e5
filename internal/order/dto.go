package order

import (
	"errors"
	"strings"
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// CreateOrderDTO is the payload a shop backend posts to open an order. The
// final charge amount is allocated server-side; callers only choose the base.
type CreateOrderDTO struct {
	OrderNumber      string       `json:"order_number" validate:"required"`
	BaseAmount       money.Amount `json:"base_amount" validate:"required"`
	CustomerName     *string      `json:"customer_name,omitempty"`
	Description      *string      `json:"description,omitempty"`
	ExpiresInMinutes *int         `json:"expires_in_minutes,omitempty"`
}

func (dto CreateOrderDTO) Validate() error {
	if strings.TrimSpace(dto.OrderNumber) == "" {
		return errors.New("order_number is required")
	}
	if len(dto.OrderNumber) > 64 {
		return errors.New("order_number exceeds 64 characters")
	}
	if dto.BaseAmount <= 0 {
		return errors.New("base_amount must be greater than zero")
	}
	if dto.ExpiresInMinutes != nil && *dto.ExpiresInMinutes <= 0 {
		return errors.New("expires_in_minutes must be positive")
	}
	return nil
}

// OrderResponse is the management-API view of an order.
type OrderResponse struct {
	ID           int64        `json:"id"`
	OrderNumber  string       `json:"order_number"`
	BaseAmount   money.Amount `json:"base_amount"`
	Amount       money.Amount `json:"amount"`
	SuffixSatang int64        `json:"suffix_satang"`
	Status       string       `json:"status"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CustomerName *string      `json:"customer_name,omitempty"`
	Description  *string      `json:"description,omitempty"`
	PaidAt       *time.Time   `json:"paid_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Webhook wire types. Field names follow the gateway's envelope; this side
// only decodes what matching needs.
const (
	eventPaymentReceived = "payment.received"
	eventConnectionTest  = "connection.test"
)

type webhookEnvelope struct {
	RequestID string         `json:"requestId"`
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	Payment   webhookPayment `json:"payment"`
}

type webhookPayment struct {
	Amount   money.Amount `json:"amount"`
	Currency string       `json:"currency"`
	BankName string       `json:"bankName"`
}

// MatchedOrderView is the order block returned when a payment is claimed.
type MatchedOrderView struct {
	OrderNumber  string       `json:"orderNumber"`
	Amount       money.Amount `json:"amount"`
	CustomerName *string      `json:"customerName,omitempty"`
	Description  *string      `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ReceiverResponse is the body this site answers webhook deliveries with.
type ReceiverResponse struct {
	Success bool              `json:"success"`
	Matched bool              `json:"matched"`
	Order   *MatchedOrderView `json:"order,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}
