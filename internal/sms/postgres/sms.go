package postgres

import (
	"errors"

	"gorm.io/gorm"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	smsDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/sms"
	"github.com/tanawath/sms-payment-gateway/internal/sms"
)

// SmsRepository implements sms.RepositoryAPI using GORM
type SmsRepository struct {
	db *gorm.DB
}

func NewSmsRepository(db *gorm.DB) sms.RepositoryAPI {
	return &SmsRepository{db: db}
}

func (r *SmsRepository) Create(msg *smsDatamodel.Message) error {
	return r.db.Create(msg).Error
}

// MarkProcessed records the classification verdict exactly once.
func (r *SmsRepository) MarkProcessed(id int64, classifiedType string, confidence float64, reason string) error {
	return r.db.Model(&smsDatamodel.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":       true,
			"classified_type": classifiedType,
			"confidence":      confidence,
			"reason":          reason,
		}).Error
}

func (r *SmsRepository) GetByID(id int64) (*smsDatamodel.Message, error) {
	var msg smsDatamodel.Message
	err := r.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSmsNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *SmsRepository) GetRecent(offset, limit int) ([]*smsDatamodel.Message, error) {
	var messages []*smsDatamodel.Message
	err := r.db.Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}
