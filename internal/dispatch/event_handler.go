package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/core/events"
)

// EventHandler connects the ingest pipeline to the engine: every
// payment.received event triggers one dispatch pass. The bus delivers
// asynchronously, so separate payments dispatch concurrently while each
// pass stays sequential.
type EventHandler struct {
	engine *Engine
	logger *slog.Logger
}

func NewEventHandler(engine *Engine, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		engine: engine,
		logger: logger,
	}
}

func (h *EventHandler) HandlePaymentReceived(ctx context.Context, event events.Event) error {
	receivedEvent, ok := event.(*events.PaymentReceivedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment received handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentReceivedEvent, got %T", event)
	}

	h.logger.Info("handling payment received event",
		"payment_id", receivedEvent.PaymentID,
		"bank", receivedEvent.BankName,
		"amount", receivedEvent.Amount,
		"event_id", receivedEvent.EventID())

	result, err := h.engine.Dispatch(ctx, receivedEvent.PaymentID)
	if err != nil {
		// An unready pool is an operator problem, not a handler
		// failure; the not-ready event already went out.
		if appErr, ok := internal.IsAppError(err); ok && appErr.Code == internal.ErrCodeGatewayNotReady {
			return nil
		}
		h.logger.Error("dispatch failed",
			"payment_id", receivedEvent.PaymentID,
			"error", err,
			"event_id", receivedEvent.EventID())
		return fmt.Errorf("dispatch failed for payment %d: %w", receivedEvent.PaymentID, err)
	}

	h.logger.Info("dispatch finished",
		"payment_id", receivedEvent.PaymentID,
		"outcome", result.Outcome,
		"attempted_sites", len(result.Attempts),
		"event_id", receivedEvent.EventID())

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentReceived, h.HandlePaymentReceived)

	h.logger.Info("dispatch event handlers registered",
		"handlers", []string{events.EventTypePaymentReceived})
}
