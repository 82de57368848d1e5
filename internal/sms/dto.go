package sms

import (
	"errors"
	"strings"
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/classifier"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// IngestDTO is the payload the forwarding device posts for every SMS.
// ReceivedAt is optional; the server clock is used when it is absent.
type IngestDTO struct {
	Sender     string     `json:"sender" validate:"required"`
	Body       string     `json:"body" validate:"required"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

func (dto IngestDTO) Validate() error {
	if strings.TrimSpace(dto.Sender) == "" {
		return errors.New("sender is required")
	}
	if strings.TrimSpace(dto.Body) == "" {
		return errors.New("body is required")
	}
	if len(dto.Body) > 2000 {
		return errors.New("body exceeds 2000 bytes")
	}
	return nil
}

// ClassificationView is the classification summary returned to the device
// and shown in message listings.
type ClassificationView struct {
	Type       classifier.Type `json:"type"`
	Confidence float64         `json:"confidence"`
	BankName   string          `json:"bank_name,omitempty"`
	Amount     *money.Amount   `json:"amount,omitempty"`
	Reason     string          `json:"reason"`
}

// IngestResponse reports what happened to one ingested SMS.
type IngestResponse struct {
	SmsID          int64              `json:"sms_id"`
	Classification ClassificationView `json:"classification"`
	PaymentID      *int64             `json:"payment_id,omitempty"`
	WillDispatch   bool               `json:"will_dispatch"`
}

// MessageResponse is the operator-facing view of a stored SMS.
type MessageResponse struct {
	ID             int64     `json:"id"`
	Sender         string    `json:"sender"`
	Body           string    `json:"body"`
	ReceivedAt     time.Time `json:"received_at"`
	Processed      bool      `json:"processed"`
	ClassifiedType string    `json:"classified_type,omitempty"`
	Confidence     float64   `json:"confidence"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
