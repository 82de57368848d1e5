package dispatch

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ConnectionTestResponse reports a one-off reachability check.
type ConnectionTestResponse struct {
	WebsiteID  int64  `json:"website_id"`
	Reachable  bool   `json:"reachable"`
	Outcome    string `json:"outcome"`
	HTTPStatus int    `json:"http_status,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}

// UnmatchedResponse is the operator view of one exhausted dispatch.
type UnmatchedResponse struct {
	ID        int64           `json:"id"`
	PaymentID int64           `json:"payment_id"`
	Attempts  []AttemptRecord `json:"attempts"`
	Reviewed  bool            `json:"reviewed"`
	Notes     *string         `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReviewDTO marks an unmatched payment as handled by an operator.
type ReviewDTO struct {
	Notes string `json:"notes"`
}

func (dto ReviewDTO) Validate() error {
	if len(strings.TrimSpace(dto.Notes)) > 1000 {
		return errors.New("notes exceed 1000 characters")
	}
	return nil
}

// StatisticsResponse is the aggregate dispatch counter view.
type StatisticsResponse struct {
	TotalDispatched  int64      `json:"total_dispatched"`
	TotalMatched     int64      `json:"total_matched"`
	TotalUnmatched   int64      `json:"total_unmatched"`
	TotalFailed      int64      `json:"total_failed"`
	MatchRate        float64    `json:"match_rate"`
	LastDispatchTime *time.Time `json:"last_dispatch_time,omitempty"`
}

func decodeAttempts(raw json.RawMessage) []AttemptRecord {
	if len(raw) == 0 {
		return []AttemptRecord{}
	}
	var attempts []AttemptRecord
	if err := json.Unmarshal(raw, &attempts); err != nil {
		return []AttemptRecord{}
	}
	return attempts
}
