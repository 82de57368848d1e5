package rest

import (
	"net/http"

	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

// DeviceView identifies the forwarding device this gateway serves.
type DeviceView struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	AppVersion string `json:"app_version"`
}

// GatewayStatus is the operator-facing status panel: device identity,
// registrar sync state and the receiving account pool.
type GatewayStatus struct {
	Device       DeviceView              `json:"device"`
	SyncStatus   string                  `json:"sync_status"`
	BankAccounts *bankaccount.PoolStatus `json:"bank_accounts,omitempty"`
}

// SyncStatusFunc reports the current registrar sync state. Wired to the
// heartbeat service on the gateway, or a constant when heartbeat is disabled.
type SyncStatusFunc func() string

// PoolStatusAPI is the slice of the bank account service the status panel reads.
type PoolStatusAPI interface {
	Status() (*bankaccount.PoolStatus, error)
}

type GatewayStatusHandler struct {
	*transport.BaseHandler
	device     DeviceView
	syncStatus SyncStatusFunc
	pool       PoolStatusAPI
}

func NewGatewayStatusHandler(base *transport.BaseHandler, device DeviceView, syncStatus SyncStatusFunc, pool PoolStatusAPI) *GatewayStatusHandler {
	return &GatewayStatusHandler{
		BaseHandler: base,
		device:      device,
		syncStatus:  syncStatus,
		pool:        pool,
	}
}

func (h *GatewayStatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := GatewayStatus{
		Device:     h.device,
		SyncStatus: h.syncStatus(),
	}

	if h.pool != nil {
		poolStatus, err := h.pool.Status()
		if err != nil {
			h.Logger.Error("gateway status: bank account pool lookup failed", "error", err)
			h.WriteAppError(w, err)
			return
		}
		status.BankAccounts = poolStatus
	}

	h.WriteJSON(w, http.StatusOK, status)
}
