package dispatch

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Engine *Engine
}

func NewHandler(baseHandler *transport.BaseHandler, engine *Engine) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Engine:      engine,
	}
}

func (h *Handler) ListUnmatched(w http.ResponseWriter, r *http.Request) {
	includeReviewed := r.URL.Query().Get("include_reviewed") == "true"
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Engine.ListUnmatched(includeReviewed, offset, limit)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"unmatched": entries,
	})
}

func (h *Handler) RetryUnmatched(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid unmatched payment id")
		return
	}

	result, dispatchErr := h.Engine.Retry(r.Context(), id)
	if dispatchErr != nil {
		h.WriteAppError(w, dispatchErr)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) ReviewUnmatched(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid unmatched payment id")
		return
	}

	var dto ReviewDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Engine.ReviewUnmatched(id, dto); err != nil {
		if _, ok := internal.IsAppError(err); ok {
			h.WriteAppError(w, err)
			return
		}
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Logger.Info("unmatched payment reviewed",
		"unmatched_id", id,
		"operator", internal.OperatorFromContext(r.Context()))
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Statistics()
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}

// TestWebsiteConnection fires a zero-amount synthetic payload at one site.
func (h *Handler) TestWebsiteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid website id")
		return
	}

	result, testErr := h.Engine.TestConnection(r.Context(), id)
	if testErr != nil {
		h.WriteAppError(w, testErr)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
