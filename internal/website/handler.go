package website

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

type ServiceAPI interface {
	CreateWebsite(dto CreateWebsiteDTO) (*WebsiteResponse, error)
	UpdateWebsite(id int64, dto UpdateWebsiteDTO) (*WebsiteResponse, error)
	DeleteWebsite(id int64) error
	GetWebsite(id int64) (*WebsiteResponse, error)
	ListWebsites() ([]WebsiteResponse, error)
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

func (h *Handler) ListWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Service.ListWebsites()
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"websites": sites,
	})
}

func (h *Handler) GetWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.websiteID(w, r)
	if !ok {
		return
	}

	site, err := h.Service.GetWebsite(id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, site)
}

func (h *Handler) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	var dto CreateWebsiteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	site, err := h.Service.CreateWebsite(dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, site)
}

func (h *Handler) UpdateWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.websiteID(w, r)
	if !ok {
		return
	}

	var dto UpdateWebsiteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	site, err := h.Service.UpdateWebsite(id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, site)
}

func (h *Handler) DeleteWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.websiteID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteWebsite(id); err != nil {
		h.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) websiteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid website id")
		return 0, false
	}
	return id, true
}
