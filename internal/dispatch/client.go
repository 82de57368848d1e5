package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	websiteDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/website"
	"github.com/tanawath/sms-payment-gateway/internal/signature"
)

// Attempt outcomes. These strings appear in progress events and in the
// attempted_sites audit column of unmatched payments.
const (
	outcomeMatched      = "matched"
	outcomeNoMatch      = "no_match"
	outcomeAuthRejected = "auth_rejected"
	outcomeSiteNotReady = "site_not_ready"
	outcomeTimeout      = "timeout"
	outcomeUnreachable  = "unreachable"
	outcomeHTTPError    = "http_error"
)

// DeliveryResult is the classified outcome of one webhook delivery.
type DeliveryResult struct {
	Outcome    string
	HTTPStatus int
	Response   *WebhookResponse
	Err        error
	Elapsed    time.Duration
}

// WebhookClient delivers signed payloads to destination sites. One client
// is shared by all dispatches; the per-site timeout comes from the site
// configuration, not from the client.
type WebhookClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhookClient(logger *slog.Logger) *WebhookClient {
	return &WebhookClient{
		// Timeout stays zero here; every request carries its own
		// site-scoped deadline via context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Deliver sends one payload to one site and classifies the outcome. The
// request id and timestamp are stamped fresh per attempt so retries never
// reuse a signature.
func (c *WebhookClient) Deliver(ctx context.Context, site *websiteDatamodel.Website, payload WebhookPayload) *DeliveryResult {
	now := time.Now()
	payload.RequestID = uuid.NewString()
	payload.Timestamp = now.UnixMilli()

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryResult{Outcome: outcomeUnreachable, Err: err}
	}

	reqCtx, cancel := internal.WithTimeout(ctx, site.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, site.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return &DeliveryResult{Outcome: outcomeUnreachable, Err: err}
	}

	signer := signature.Signer{APIKey: site.APIKey, Secret: site.SecretKey}
	signer.SignRequest(req, body, now)
	// Header and body must carry the same request id.
	req.Header.Set(signature.HeaderRequestID, payload.RequestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		outcome := outcomeUnreachable
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			outcome = outcomeTimeout
		}
		c.logger.Warn("webhook delivery failed",
			"website_id", site.ID,
			"url", site.WebhookURL,
			"outcome", outcome,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err)
		return &DeliveryResult{Outcome: outcome, Err: err, Elapsed: elapsed}
	}
	defer resp.Body.Close()

	result := &DeliveryResult{HTTPStatus: resp.StatusCode, Elapsed: elapsed}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var webhookResp WebhookResponse
		if err := json.NewDecoder(resp.Body).Decode(&webhookResp); err != nil {
			c.logger.Warn("webhook response body unreadable, treating as no match",
				"website_id", site.ID,
				"status", resp.StatusCode,
				"error", err)
			result.Outcome = outcomeNoMatch
			result.Err = err
			return result
		}
		result.Response = &webhookResp
		if webhookResp.Matched {
			result.Outcome = outcomeMatched
		} else {
			result.Outcome = outcomeNoMatch
		}
	case resp.StatusCode == http.StatusUnauthorized:
		result.Outcome = outcomeAuthRejected
	case resp.StatusCode == http.StatusServiceUnavailable:
		result.Outcome = outcomeSiteNotReady
	default:
		result.Outcome = outcomeHTTPError
	}

	c.logger.Debug("webhook delivered",
		"website_id", site.ID,
		"status", resp.StatusCode,
		"outcome", result.Outcome,
		"elapsed_ms", elapsed.Milliseconds())

	return result
}
