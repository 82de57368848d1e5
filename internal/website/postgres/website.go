package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	websiteDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/website"
	"github.com/tanawath/sms-payment-gateway/internal/website"
)

// WebsiteRepository implements website.RepositoryAPI using GORM
type WebsiteRepository struct {
	db *gorm.DB
}

func NewWebsiteRepository(db *gorm.DB) website.RepositoryAPI {
	return &WebsiteRepository{db: db}
}

func (r *WebsiteRepository) GetAll() ([]*websiteDatamodel.Website, error) {
	var sites []*websiteDatamodel.Website
	err := r.db.Order("priority ASC, created_at ASC").Find(&sites).Error
	return sites, err
}

func (r *WebsiteRepository) GetByID(id int64) (*websiteDatamodel.Website, error) {
	var site websiteDatamodel.Website
	err := r.db.Where("id = ?", id).First(&site).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrWebsiteNotFound
		}
		return nil, err
	}
	return &site, nil
}

// GetEnabledSorted returns the dispatch chain: enabled sites by priority
// ascending, ties broken by creation time ascending.
func (r *WebsiteRepository) GetEnabledSorted() ([]*websiteDatamodel.Website, error) {
	var sites []*websiteDatamodel.Website
	err := r.db.Where("is_enabled = ?", true).
		Order("priority ASC, created_at ASC").
		Find(&sites).Error
	return sites, err
}

func (r *WebsiteRepository) Create(site *websiteDatamodel.Website) error {
	return r.db.Create(site).Error
}

func (r *WebsiteRepository) Update(site *websiteDatamodel.Website) error {
	site.UpdatedAt = time.Now()
	return r.db.Save(site).Error
}

func (r *WebsiteRepository) Delete(id int64) error {
	result := r.db.Delete(&websiteDatamodel.Website{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrWebsiteNotFound
	}
	return nil
}

// RecordSuccess marks a healthy round trip.
func (r *WebsiteRepository) RecordSuccess(id int64) error {
	now := time.Now()
	return r.db.Model(&websiteDatamodel.Website{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            websiteDatamodel.StatusConnected,
			"failure_count":     0,
			"last_connected_at": now,
			"updated_at":        now,
		}).Error
}

// RecordFailure bumps failure_count atomically and stores the failure mode.
func (r *WebsiteRepository) RecordFailure(id int64, status string) error {
	return r.db.Model(&websiteDatamodel.Website{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"failure_count": gorm.Expr("failure_count + 1"),
			"updated_at":    time.Now(),
		}).Error
}

// IncrementMatched credits one matched payment to the site.
func (r *WebsiteRepository) IncrementMatched(id int64) error {
	return r.db.Model(&websiteDatamodel.Website{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"matched_count": gorm.Expr("matched_count + 1"),
			"updated_at":    time.Now(),
		}).Error
}
