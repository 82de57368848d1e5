package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

const (
	registerPath  = "/api/v1/devices/register"
	heartbeatPath = "/api/v1/devices/heartbeat"
)

// RegisterRequest establishes the device identity with the registrar.
type RegisterRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	AppVersion string `json:"app_version"`
}

type RegisterResponse struct {
	DeviceToken string `json:"device_token"`
}

// HeartbeatRequest is the periodic liveness report.
type HeartbeatRequest struct {
	DeviceID        string       `json:"device_id"`
	Status          string       `json:"status"`
	PendingPayments int64        `json:"pending_payments"`
	TodayTotal      money.Amount `json:"today_total"`
	Timestamp       int64        `json:"timestamp"`
}

// RegistrarClient talks to the registrar that tracks forwarding devices.
type RegistrarClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewRegistrarClient(baseURL string, timeout time.Duration, logger *slog.Logger) *RegistrarClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RegistrarClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Register exchanges the device identity for the token that authenticates
// heartbeats.
func (c *RegistrarClient) Register(ctx context.Context, req RegisterRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("registrar answered %d to registration", resp.StatusCode)
	}

	var out RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode registration response: %w", err)
	}
	if out.DeviceToken == "" {
		return "", errors.New("registrar response missing device_token")
	}
	return out.DeviceToken, nil
}

// SendHeartbeat posts one liveness report. Any non-2xx answer counts as a
// failed beat.
func (c *RegistrarClient) SendHeartbeat(ctx context.Context, token string, req HeartbeatRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+heartbeatPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registrar answered %d to heartbeat", resp.StatusCode)
	}
	return nil
}
