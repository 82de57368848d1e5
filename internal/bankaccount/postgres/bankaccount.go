package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	bankaccountDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/bankaccount"
)

// BankAccountRepository implements bankaccount.RepositoryAPI using GORM
type BankAccountRepository struct {
	db *gorm.DB
}

func NewBankAccountRepository(db *gorm.DB) bankaccount.RepositoryAPI {
	return &BankAccountRepository{db: db}
}

func (r *BankAccountRepository) GetAll() ([]*bankaccountDatamodel.Account, error) {
	var accounts []*bankaccountDatamodel.Account
	err := r.db.Order("is_primary DESC, id ASC").Find(&accounts).Error
	return accounts, err
}

func (r *BankAccountRepository) GetByID(id int64) (*bankaccountDatamodel.Account, error) {
	var account bankaccountDatamodel.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBankAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetEnabled returns enabled accounts with the primary first, then by id
// for a stable order.
func (r *BankAccountRepository) GetEnabled() ([]*bankaccountDatamodel.Account, error) {
	var accounts []*bankaccountDatamodel.Account
	err := r.db.Where("is_enabled = ?", true).
		Order("is_primary DESC, id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *BankAccountRepository) Create(account *bankaccountDatamodel.Account) error {
	return r.db.Create(account).Error
}

func (r *BankAccountRepository) Update(account *bankaccountDatamodel.Account) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

// Delete removes an account and, when it held the primary flag, promotes
// the next enabled account inside the same transaction.
func (r *BankAccountRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var account bankaccountDatamodel.Account
		if err := tx.Where("id = ?", id).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrBankAccountNotFound
			}
			return err
		}

		if err := tx.Delete(&bankaccountDatamodel.Account{}, id).Error; err != nil {
			return err
		}

		if account.IsPrimary {
			var next bankaccountDatamodel.Account
			err := tx.Where("is_enabled = ?", true).Order("id ASC").First(&next).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			return tx.Model(&bankaccountDatamodel.Account{}).
				Where("id = ?", next.ID).
				Updates(map[string]interface{}{
					"is_primary": true,
					"updated_at": time.Now(),
				}).Error
		}
		return nil
	})
}

// SetPrimary makes the given account the single primary. Clearing and
// setting run in one transaction so no two accounts ever hold the flag.
func (r *BankAccountRepository) SetPrimary(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var account bankaccountDatamodel.Account
		if err := tx.Where("id = ?", id).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrBankAccountNotFound
			}
			return err
		}

		if err := tx.Model(&bankaccountDatamodel.Account{}).
			Where("is_primary = ?", true).
			Updates(map[string]interface{}{
				"is_primary": false,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&bankaccountDatamodel.Account{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_primary": true,
				"updated_at": time.Now(),
			}).Error
	})
}

func (r *BankAccountRepository) CountEnabled() (int64, error) {
	var count int64
	err := r.db.Model(&bankaccountDatamodel.Account{}).
		Where("is_enabled = ?", true).
		Count(&count).Error
	return count, err
}
