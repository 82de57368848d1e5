package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentReceived   = "payment.received"
	EventTypePaymentMatched    = "payment.matched"
	EventTypePaymentUnmatched  = "payment.unmatched"
	EventTypeDispatchProgress  = "dispatch.progress"
	EventTypeSyncStatusChanged = "sync.status_changed"
	EventTypeGatewayNotReady   = "gateway.not_ready"
)

type PaymentReceivedEvent struct {
	BaseEvent
	PaymentID  int64   `json:"payment_id"`
	BankName   string  `json:"bank_name"`
	Amount     string  `json:"amount"`
	Confidence float64 `json:"confidence"`
}

func NewPaymentReceivedEvent(paymentID int64, bankName, amount string, confidence float64) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentReceived,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id": paymentID,
				"bank_name":  bankName,
				"amount":     amount,
				"confidence": confidence,
			},
		},
		PaymentID:  paymentID,
		BankName:   bankName,
		Amount:     amount,
		Confidence: confidence,
	}
}

type PaymentMatchedEvent struct {
	BaseEvent
	PaymentID   int64  `json:"payment_id"`
	WebsiteID   int64  `json:"website_id"`
	WebsiteName string `json:"website_name"`
	OrderNumber string `json:"order_number"`
	Amount      string `json:"amount"`
}

func NewPaymentMatchedEvent(paymentID, websiteID int64, websiteName, orderNumber, amount string) *PaymentMatchedEvent {
	return &PaymentMatchedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentMatched,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":   paymentID,
				"website_id":   websiteID,
				"website_name": websiteName,
				"order_number": orderNumber,
				"amount":       amount,
			},
		},
		PaymentID:   paymentID,
		WebsiteID:   websiteID,
		WebsiteName: websiteName,
		OrderNumber: orderNumber,
		Amount:      amount,
	}
}

type PaymentUnmatchedEvent struct {
	BaseEvent
	PaymentID      int64  `json:"payment_id"`
	Amount         string `json:"amount"`
	AttemptedSites int    `json:"attempted_sites"`
}

func NewPaymentUnmatchedEvent(paymentID int64, amount string, attemptedSites int) *PaymentUnmatchedEvent {
	return &PaymentUnmatchedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentUnmatched,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":      paymentID,
				"amount":          amount,
				"attempted_sites": attemptedSites,
			},
		},
		PaymentID:      paymentID,
		Amount:         amount,
		AttemptedSites: attemptedSites,
	}
}

// DispatchProgressEvent fires before and after each site attempt. Stage is
// "attempting" or "attempted"; Outcome is empty for the before-stage.
type DispatchProgressEvent struct {
	BaseEvent
	PaymentID   int64  `json:"payment_id"`
	WebsiteID   int64  `json:"website_id"`
	WebsiteName string `json:"website_name"`
	Position    int    `json:"position"`
	Stage       string `json:"stage"`
	Outcome     string `json:"outcome,omitempty"`
}

func NewDispatchProgressEvent(paymentID, websiteID int64, websiteName string, position int, stage, outcome string) *DispatchProgressEvent {
	return &DispatchProgressEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDispatchProgress,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":   paymentID,
				"website_id":   websiteID,
				"website_name": websiteName,
				"position":     position,
				"stage":        stage,
				"outcome":      outcome,
			},
		},
		PaymentID:   paymentID,
		WebsiteID:   websiteID,
		WebsiteName: websiteName,
		Position:    position,
		Stage:       stage,
		Outcome:     outcome,
	}
}

type SyncStatusChangedEvent struct {
	BaseEvent
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

func NewSyncStatusChangedEvent(previous, current string) *SyncStatusChangedEvent {
	return &SyncStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSyncStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"previous": previous,
				"current":  current,
			},
		},
		Previous: previous,
		Current:  current,
	}
}

type GatewayNotReadyEvent struct {
	BaseEvent
	PaymentID int64  `json:"payment_id"`
	Message   string `json:"message"`
}

func NewGatewayNotReadyEvent(paymentID int64, message string) *GatewayNotReadyEvent {
	return &GatewayNotReadyEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeGatewayNotReady,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id": paymentID,
				"message":    message,
			},
		},
		PaymentID: paymentID,
		Message:   message,
	}
}
