package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/signature"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

const maxWebhookBody = 1 << 20

// Receiver is the site-side webhook endpoint the gateway delivers payments
// to. It verifies the signed envelope, looks up the order by exact amount
// and answers the match result. Nothing here ever calls back into the
// gateway; the response body is the whole contract.
type Receiver struct {
	*transport.BaseHandler
	service *Service
	apiKey  string
	secret  string
}

func NewReceiver(baseHandler *transport.BaseHandler, service *Service, apiKey, secret string) *Receiver {
	return &Receiver{
		BaseHandler: baseHandler,
		service:     service,
		apiKey:      apiKey,
		secret:      secret,
	}
}

func (h *Receiver) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !signature.VerifyAPIKey(h.apiKey, r.Header.Get(signature.HeaderAPIKey)) {
		h.Logger.Warn("webhook rejected: api key mismatch",
			"remote_addr", r.RemoteAddr,
			"request_id", r.Header.Get(signature.HeaderRequestID))
		h.WriteAppError(w, internal.ErrSignatureInvalid)
		return
	}

	if err := signature.Verify(
		h.secret,
		r.Header.Get(signature.HeaderTimestamp),
		r.Header.Get(signature.HeaderSignature),
		body,
		time.Now(),
	); err != nil {
		h.Logger.Warn("webhook rejected: signature verification failed",
			"remote_addr", r.RemoteAddr,
			"request_id", r.Header.Get(signature.HeaderRequestID),
			"error", err)
		h.WriteAppError(w, err)
		return
	}

	if !h.service.Accepting() {
		h.WriteAppError(w, internal.ErrSiteNotReady)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.WriteError(w, http.StatusBadRequest, "malformed webhook body")
		return
	}

	switch envelope.Event {
	case eventConnectionTest:
		h.WriteJSON(w, http.StatusOK, ReceiverResponse{
			Success: true,
			Matched: false,
			Message: "connection ok",
		})

	case eventPaymentReceived:
		h.handlePayment(w, envelope)

	default:
		h.WriteError(w, http.StatusBadRequest, "unsupported event type")
	}
}

func (h *Receiver) handlePayment(w http.ResponseWriter, envelope webhookEnvelope) {
	if envelope.Payment.Amount <= 0 {
		h.WriteError(w, http.StatusBadRequest, "payment amount must be greater than zero")
		return
	}

	ord, err := h.service.MatchPayment(envelope.Payment.Amount)
	if err != nil {
		if errors.Is(err, internal.ErrDuplicateMatch) {
			// Refuse the claim but keep the gateway's chain moving; the
			// conflict is already logged for the operator.
			h.WriteJSON(w, http.StatusOK, ReceiverResponse{
				Success: false,
				Matched: false,
				Error:   string(internal.ErrCodeDuplicateMatch),
				Message: "more than one pending order holds this amount",
			})
			return
		}
		h.WriteError(w, http.StatusInternalServerError, "order lookup failed")
		return
	}

	if ord == nil {
		h.WriteJSON(w, http.StatusOK, ReceiverResponse{
			Success: true,
			Matched: false,
		})
		return
	}

	h.WriteJSON(w, http.StatusOK, ReceiverResponse{
		Success: true,
		Matched: true,
		Order: &MatchedOrderView{
			OrderNumber:  ord.OrderNumber,
			Amount:       ord.Amount,
			CustomerName: ord.CustomerName,
			Description:  ord.Description,
			CreatedAt:    ord.CreatedAt,
		},
	})
}
