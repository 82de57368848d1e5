package website

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// CreateWebsiteDTO is the payload for registering a destination site.
type CreateWebsiteDTO struct {
	Name           string `json:"name" validate:"required"`
	WebhookURL     string `json:"webhook_url" validate:"required,url"`
	APIKey         string `json:"api_key" validate:"required"`
	SecretKey      string `json:"secret_key" validate:"required"`
	Priority       int    `json:"priority"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (dto CreateWebsiteDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.New("name is required")
	}
	if err := validateWebhookURL(dto.WebhookURL); err != nil {
		return err
	}
	if dto.APIKey == "" {
		return errors.New("api_key is required")
	}
	if len(dto.SecretKey) < 16 {
		return errors.New("secret_key must be at least 16 characters")
	}
	if dto.Priority < 0 {
		return errors.New("priority cannot be negative")
	}
	if dto.TimeoutSeconds < 0 || dto.TimeoutSeconds > 120 {
		return errors.New("timeout_seconds must be between 0 and 120")
	}
	return nil
}

// UpdateWebsiteDTO carries a partial update; nil fields are left unchanged.
type UpdateWebsiteDTO struct {
	Name           *string `json:"name,omitempty"`
	WebhookURL     *string `json:"webhook_url,omitempty"`
	APIKey         *string `json:"api_key,omitempty"`
	SecretKey      *string `json:"secret_key,omitempty"`
	Priority       *int    `json:"priority,omitempty"`
	TimeoutSeconds *int    `json:"timeout_seconds,omitempty"`
	IsEnabled      *bool   `json:"is_enabled,omitempty"`
}

func (dto UpdateWebsiteDTO) Validate() error {
	if dto.Name != nil && strings.TrimSpace(*dto.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if dto.WebhookURL != nil {
		if err := validateWebhookURL(*dto.WebhookURL); err != nil {
			return err
		}
	}
	if dto.SecretKey != nil && len(*dto.SecretKey) < 16 {
		return errors.New("secret_key must be at least 16 characters")
	}
	if dto.Priority != nil && *dto.Priority < 0 {
		return errors.New("priority cannot be negative")
	}
	if dto.TimeoutSeconds != nil && (*dto.TimeoutSeconds < 1 || *dto.TimeoutSeconds > 120) {
		return errors.New("timeout_seconds must be between 1 and 120")
	}
	return nil
}

func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return errors.New("webhook_url must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("webhook_url must use http or https")
	}
	return nil
}

// WebsiteResponse is the operator-facing view. The secret key never leaves
// the server; the API key is shown truncated for identification.
type WebsiteResponse struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	WebhookURL      string     `json:"webhook_url"`
	APIKeyHint      string     `json:"api_key_hint"`
	Priority        int        `json:"priority"`
	TimeoutSeconds  int        `json:"timeout_seconds"`
	IsEnabled       bool       `json:"is_enabled"`
	Status          string     `json:"status"`
	FailureCount    int        `json:"failure_count"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	MatchedCount    int64      `json:"matched_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

func apiKeyHint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
