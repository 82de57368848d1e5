package website

import (
	"time"
)

// Connection status values. Mutated only by the dispatch engine after each
// delivery attempt.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusTimeout      = "timeout"
	StatusError        = "error"
)

// Website is one destination site in the dispatch chain. Lower Priority is
// tried first; ties break by CreatedAt ascending.
type Website struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"column:name;not null"`
	WebhookURL     string `gorm:"column:webhook_url;not null"`
	APIKey         string `gorm:"column:api_key;not null"`
	SecretKey      string `gorm:"column:secret_key;not null"`
	Priority       int    `gorm:"column:priority;not null;default:100"`
	TimeoutSeconds int    `gorm:"column:timeout_seconds;not null;default:10"`
	IsEnabled      bool   `gorm:"column:is_enabled;default:true"`

	Status          string     `gorm:"column:status;default:disconnected"`
	FailureCount    int        `gorm:"column:failure_count;default:0"`
	LastConnectedAt *time.Time `gorm:"column:last_connected_at"`
	MatchedCount    int64      `gorm:"column:matched_count;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Website) TableName() string {
	return "websites"
}

// Timeout returns the per-site delivery timeout as a duration.
func (w *Website) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}
