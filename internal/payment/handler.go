package payment

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

type ServiceAPI interface {
	GetEvent(id int64) (*EventResponse, error)
	ListEvents(status string, offset, limit int) ([]EventResponse, error)
	Approve(id int64) (*EventResponse, error)
	Reject(id int64) (*EventResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := query.Get("status")
	offset, _ := strconv.Atoi(query.Get("offset"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	events, err := h.Service.ListEvents(status, offset, limit)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": events,
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	event, err := h.Service.GetEvent(id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	event, err := h.Service.Approve(id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.Logger.Info("payment approved",
		"payment_id", id,
		"operator", internal.OperatorFromContext(r.Context()))
	h.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	event, err := h.Service.Reject(id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.Logger.Info("payment rejected",
		"payment_id", id,
		"operator", internal.OperatorFromContext(r.Context()))
	h.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment id")
		return 0, false
	}
	return id, true
}
