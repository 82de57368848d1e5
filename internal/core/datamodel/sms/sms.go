package sms

import (
	"time"
)

// Message is a raw SMS captured by the device. Immutable once received;
// Processed flips exactly once when the pipeline consumes it.
type Message struct {
	ID         int64     `gorm:"primaryKey"`
	Sender     string    `gorm:"column:sender;not null"`
	Body       string    `gorm:"column:body;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
	Processed  bool      `gorm:"column:processed;default:false"`
	// Classification outcome kept for audit of dropped messages.
	ClassifiedType string  `gorm:"column:classified_type"`
	Confidence     float64 `gorm:"column:confidence"`
	Reason         string  `gorm:"column:reason"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Message) TableName() string {
	return "sms_messages"
}
