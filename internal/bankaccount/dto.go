package bankaccount

import (
	"errors"
	"regexp"
	"time"
)

// bankTypeNames maps the stored bank type code to the display name carried
// in webhook payloads.
var bankTypeNames = map[string]string{
	"kbank":     "Kasikorn Bank",
	"scb":       "Siam Commercial Bank",
	"bbl":       "Bangkok Bank",
	"ktb":       "Krungthai Bank",
	"bay":       "Krungsri",
	"ttb":       "TMBThanachart Bank",
	"gsb":       "Government Savings Bank",
	"baac":      "BAAC",
	"uob":       "UOB Thailand",
	"cimb":      "CIMB Thai",
	"kkp":       "Kiatnakin Phatra Bank",
	"lhb":       "LH Bank",
	"promptpay": "PromptPay",
}

// DisplayName resolves a bank type code; unknown codes fall back to the
// code itself so new banks degrade gracefully.
func DisplayName(bankType string) string {
	if name, ok := bankTypeNames[bankType]; ok {
		return name
	}
	return bankType
}

var accountNumberPattern = regexp.MustCompile(`^[0-9][0-9\-]{4,18}[0-9]$`)

// CreateAccountDTO is the request payload for registering a receiving
// bank account.
type CreateAccountDTO struct {
	BankType      string  `json:"bank_type" validate:"required"`
	AccountNumber string  `json:"account_number" validate:"required"`
	AccountName   string  `json:"account_name" validate:"required"`
	IsPrimary     bool    `json:"is_primary"`
	QRCodePath    *string `json:"qr_code_path,omitempty"`
}

func (dto CreateAccountDTO) Validate() error {
	if dto.BankType == "" {
		return errors.New("bank_type is required")
	}
	if _, ok := bankTypeNames[dto.BankType]; !ok {
		return errors.New("unknown bank_type")
	}
	if !accountNumberPattern.MatchString(dto.AccountNumber) {
		return errors.New("account_number must be 6-20 digits, dashes allowed")
	}
	if dto.AccountName == "" {
		return errors.New("account_name is required")
	}
	return nil
}

// UpdateAccountDTO carries a partial update; nil fields are left unchanged.
type UpdateAccountDTO struct {
	AccountName *string `json:"account_name,omitempty"`
	IsEnabled   *bool   `json:"is_enabled,omitempty"`
	QRCodePath  *string `json:"qr_code_path,omitempty"`
}

func (dto UpdateAccountDTO) Validate() error {
	if dto.AccountName != nil && *dto.AccountName == "" {
		return errors.New("account_name cannot be empty")
	}
	return nil
}

// AccountResponse is the operator-facing view of one account.
type AccountResponse struct {
	ID            int64     `json:"id"`
	BankType      string    `json:"bank_type"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	IsEnabled     bool      `json:"is_enabled"`
	IsPrimary     bool      `json:"is_primary"`
	QRCodePath    *string   `json:"qr_code_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublicAccountInfo is the subset of account data shared with destination
// sites inside webhook payloads.
type PublicAccountInfo struct {
	BankType      string `json:"bankType"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

// PoolStatus is the aggregate readiness view consumed by the dispatch
// engine and embedded in every outbound webhook.
type PoolStatus struct {
	IsReady         bool                `json:"isReady"`
	EnabledCount    int                 `json:"enabledCount"`
	Accounts        []PublicAccountInfo `json:"accounts"`
	NotReadyMessage string              `json:"notReadyMessage,omitempty"`
}
