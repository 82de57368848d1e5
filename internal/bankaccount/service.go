package bankaccount

import (
	"log/slog"
	"sync"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	bankaccountDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/bankaccount"
)

type RepositoryAPI interface {
	GetAll() ([]*bankaccountDatamodel.Account, error)
	GetByID(id int64) (*bankaccountDatamodel.Account, error)
	GetEnabled() ([]*bankaccountDatamodel.Account, error)
	Create(account *bankaccountDatamodel.Account) error
	Update(account *bankaccountDatamodel.Account) error
	Delete(id int64) error
	SetPrimary(id int64) error
	CountEnabled() (int64, error)
}

// Service manages the receiving account pool. The enabled-accounts view is
// cached because the dispatch engine consults it on every payment; every
// write path invalidates the cache.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger

	mu     sync.RWMutex
	status *PoolStatus
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) CreateAccount(dto CreateAccountDTO) (*AccountResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	enabled, err := s.repo.CountEnabled()
	if err != nil {
		s.logger.Error("failed to count enabled accounts", "error", err)
		return nil, err
	}

	account := &bankaccountDatamodel.Account{
		BankType:      dto.BankType,
		AccountNumber: dto.AccountNumber,
		AccountName:   dto.AccountName,
		IsEnabled:     true,
		QRCodePath:    dto.QRCodePath,
	}

	if err := s.repo.Create(account); err != nil {
		s.logger.Error("failed to create bank account", "error", err)
		return nil, err
	}

	// The first enabled account always becomes primary; otherwise honor
	// the request. SetPrimary clears competing flags transactionally.
	if dto.IsPrimary || enabled == 0 {
		if err := s.repo.SetPrimary(account.ID); err != nil {
			s.logger.Error("failed to set primary account", "id", account.ID, "error", err)
			return nil, err
		}
		account.IsPrimary = true
	}

	s.invalidate()
	s.logger.Info("bank account created",
		"id", account.ID,
		"bank_type", account.BankType,
		"is_primary", account.IsPrimary)

	return toResponse(account), nil
}

func (s *Service) UpdateAccount(id int64, dto UpdateAccountDTO) (*AccountResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	account, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.AccountName != nil {
		account.AccountName = *dto.AccountName
	}
	if dto.QRCodePath != nil {
		account.QRCodePath = dto.QRCodePath
	}
	if dto.IsEnabled != nil {
		account.IsEnabled = *dto.IsEnabled
		if !account.IsEnabled {
			// a disabled account cannot stay primary
			account.IsPrimary = false
		}
	}

	if err := s.repo.Update(account); err != nil {
		s.logger.Error("failed to update bank account", "id", id, "error", err)
		return nil, err
	}

	s.invalidate()
	return toResponse(account), nil
}

// DeleteAccount removes an account. When the primary goes away the
// repository promotes the next enabled account in the same transaction.
func (s *Service) DeleteAccount(id int64) error {
	if err := s.repo.Delete(id); err != nil {
		s.logger.Error("failed to delete bank account", "id", id, "error", err)
		return err
	}

	s.invalidate()
	s.logger.Info("bank account deleted", "id", id)
	return nil
}

func (s *Service) SetPrimary(id int64) (*AccountResponse, error) {
	account, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !account.IsEnabled {
		return nil, internal.NewValidationError("cannot set a disabled account as primary", internal.ErrCodeValidationFailed)
	}

	if err := s.repo.SetPrimary(id); err != nil {
		s.logger.Error("failed to set primary account", "id", id, "error", err)
		return nil, err
	}
	account.IsPrimary = true

	s.invalidate()
	s.logger.Info("primary bank account changed", "id", id)
	return toResponse(account), nil
}

func (s *Service) ListAccounts() ([]AccountResponse, error) {
	accounts, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to list bank accounts", "error", err)
		return nil, err
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, *toResponse(account))
	}
	return responses, nil
}

// Status returns the aggregate pool view, serving from cache when warm.
func (s *Service) Status() (*PoolStatus, error) {
	s.mu.RLock()
	cached := s.status
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	enabled, err := s.repo.GetEnabled()
	if err != nil {
		s.logger.Error("failed to load enabled accounts", "error", err)
		return nil, err
	}

	status := &PoolStatus{
		IsReady:      len(enabled) > 0,
		EnabledCount: len(enabled),
		Accounts:     make([]PublicAccountInfo, 0, len(enabled)),
	}
	for _, account := range enabled {
		status.Accounts = append(status.Accounts, PublicAccountInfo{
			BankType:      account.BankType,
			BankName:      DisplayName(account.BankType),
			AccountNumber: account.AccountNumber,
			AccountName:   account.AccountName,
		})
	}
	if !status.IsReady {
		status.NotReadyMessage = internal.ErrGatewayNotReady.Message
	}

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	return status, nil
}

// IsReady reports whether at least one enabled receiving account exists.
func (s *Service) IsReady() bool {
	status, err := s.Status()
	if err != nil {
		return false
	}
	return status.IsReady
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.status = nil
	s.mu.Unlock()
}

func toResponse(a *bankaccountDatamodel.Account) *AccountResponse {
	return &AccountResponse{
		ID:            a.ID,
		BankType:      a.BankType,
		BankName:      DisplayName(a.BankType),
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		IsEnabled:     a.IsEnabled,
		IsPrimary:     a.IsPrimary,
		QRCodePath:    a.QRCodePath,
		CreatedAt:     a.CreatedAt,
	}
}
