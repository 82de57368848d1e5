package dispatch

import (
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// Webhook event types. connection.test reuses the payment envelope with a
// synthetic zero amount; sites must never treat it as a match.
const (
	EventPaymentReceived = "payment.received"
	EventConnectionTest  = "connection.test"
)

// DeviceInfo identifies the forwarding device inside every webhook body.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	AppVersion string `json:"appVersion"`
}

// PaymentPayload is the payment block of the webhook body. Field names are
// the wire contract with destination sites; changing one breaks every
// receiver.
type PaymentPayload struct {
	Amount          money.Amount `json:"amount"`
	Currency        string       `json:"currency"`
	BankName        string       `json:"bankName"`
	AccountNumber   string       `json:"accountNumber"`
	Reference       *string      `json:"reference,omitempty"`
	SenderName      *string      `json:"senderName,omitempty"`
	TransactionTime time.Time    `json:"transactionTime"`
	RawSmsBody      string       `json:"rawSmsBody"`
	ConfidenceScore float64      `json:"confidenceScore"`
}

// WebhookPayload is the JSON body signed and delivered to each site.
type WebhookPayload struct {
	RequestID    string                 `json:"requestId"`
	Event        string                 `json:"event"`
	Timestamp    int64                  `json:"timestamp"`
	Payment      PaymentPayload         `json:"payment"`
	Device       DeviceInfo             `json:"device"`
	BankAccounts bankaccount.PoolStatus `json:"bankAccounts"`
}

// MatchedOrder is the order block a site returns when it claims a payment.
type MatchedOrder struct {
	OrderNumber  string       `json:"orderNumber"`
	Amount       money.Amount `json:"amount"`
	CustomerName *string      `json:"customerName,omitempty"`
	Description  *string      `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// WebhookResponse is the body a destination site answers with.
type WebhookResponse struct {
	Success bool          `json:"success"`
	Matched bool          `json:"matched"`
	Order   *MatchedOrder `json:"order,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
}
