package bankaccount

import (
	"time"
)

// Account is one receiving bank account of the device owner. At most one
// enabled account may be primary; deleting the primary promotes another
// enabled account when one exists.
type Account struct {
	ID            int64   `gorm:"primaryKey"`
	BankType      string  `gorm:"column:bank_type;not null"`
	AccountNumber string  `gorm:"column:account_number;not null"`
	AccountName   string  `gorm:"column:account_name;not null"`
	IsEnabled     bool    `gorm:"column:is_enabled;default:true"`
	IsPrimary     bool    `gorm:"column:is_primary;default:false"`
	QRCodePath    *string `gorm:"column:qr_code_path"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Account) TableName() string {
	return "bank_accounts"
}
