package website

import (
	"log/slog"
	"sync"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	websiteDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/website"
)

type RepositoryAPI interface {
	GetAll() ([]*websiteDatamodel.Website, error)
	GetByID(id int64) (*websiteDatamodel.Website, error)
	GetEnabledSorted() ([]*websiteDatamodel.Website, error)
	Create(site *websiteDatamodel.Website) error
	Update(site *websiteDatamodel.Website) error
	Delete(id int64) error
	RecordSuccess(id int64) error
	RecordFailure(id int64, status string) error
	IncrementMatched(id int64) error
}

// Service manages destination site configuration. The enabled-sorted chain
// is cached because dispatch reads it per payment; writes invalidate.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger

	mu    sync.RWMutex
	chain []*websiteDatamodel.Website
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) CreateWebsite(dto CreateWebsiteDTO) (*WebsiteResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	site := &websiteDatamodel.Website{
		Name:           dto.Name,
		WebhookURL:     dto.WebhookURL,
		APIKey:         dto.APIKey,
		SecretKey:      dto.SecretKey,
		Priority:       dto.Priority,
		TimeoutSeconds: dto.TimeoutSeconds,
		IsEnabled:      true,
		Status:         websiteDatamodel.StatusDisconnected,
	}
	if site.Priority == 0 {
		site.Priority = 100
	}
	if site.TimeoutSeconds == 0 {
		site.TimeoutSeconds = 10
	}

	if err := s.repo.Create(site); err != nil {
		s.logger.Error("failed to create website", "name", dto.Name, "error", err)
		return nil, err
	}

	s.invalidate()
	s.logger.Info("website created", "id", site.ID, "name", site.Name, "priority", site.Priority)
	return toResponse(site), nil
}

func (s *Service) UpdateWebsite(id int64, dto UpdateWebsiteDTO) (*WebsiteResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	site, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		site.Name = *dto.Name
	}
	if dto.WebhookURL != nil {
		site.WebhookURL = *dto.WebhookURL
	}
	if dto.APIKey != nil {
		site.APIKey = *dto.APIKey
	}
	if dto.SecretKey != nil {
		site.SecretKey = *dto.SecretKey
	}
	if dto.Priority != nil {
		site.Priority = *dto.Priority
	}
	if dto.TimeoutSeconds != nil {
		site.TimeoutSeconds = *dto.TimeoutSeconds
	}
	if dto.IsEnabled != nil {
		site.IsEnabled = *dto.IsEnabled
	}

	if err := s.repo.Update(site); err != nil {
		s.logger.Error("failed to update website", "id", id, "error", err)
		return nil, err
	}

	s.invalidate()
	return toResponse(site), nil
}

func (s *Service) DeleteWebsite(id int64) error {
	if err := s.repo.Delete(id); err != nil {
		s.logger.Error("failed to delete website", "id", id, "error", err)
		return err
	}

	s.invalidate()
	s.logger.Info("website deleted", "id", id)
	return nil
}

func (s *Service) GetWebsite(id int64) (*WebsiteResponse, error) {
	site, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return toResponse(site), nil
}

// Site returns the full record including credentials. Only the dispatch
// engine should use this; API responses go through GetWebsite.
func (s *Service) Site(id int64) (*websiteDatamodel.Website, error) {
	return s.repo.GetByID(id)
}

func (s *Service) ListWebsites() ([]WebsiteResponse, error) {
	sites, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to list websites", "error", err)
		return nil, err
	}

	responses := make([]WebsiteResponse, 0, len(sites))
	for _, site := range sites {
		responses = append(responses, *toResponse(site))
	}
	return responses, nil
}

// DispatchChain returns the enabled sites in dispatch order: priority
// ascending, ties broken by creation time. Served from cache when warm.
func (s *Service) DispatchChain() ([]*websiteDatamodel.Website, error) {
	s.mu.RLock()
	cached := s.chain
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	chain, err := s.repo.GetEnabledSorted()
	if err != nil {
		s.logger.Error("failed to load dispatch chain", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.chain = chain
	s.mu.Unlock()

	return chain, nil
}

// RecordSuccess marks a healthy round trip: status connected, failure
// count reset.
func (s *Service) RecordSuccess(id int64) {
	if err := s.repo.RecordSuccess(id); err != nil {
		s.logger.Error("failed to record website success", "id", id, "error", err)
		return
	}
	s.invalidate()
}

// RecordFailure bumps the failure count and stores the failure mode.
func (s *Service) RecordFailure(id int64, status string) {
	if err := s.repo.RecordFailure(id, status); err != nil {
		s.logger.Error("failed to record website failure", "id", id, "error", err)
		return
	}
	s.invalidate()
}

// RecordMatch credits a matched payment to the site.
func (s *Service) RecordMatch(id int64) {
	if err := s.repo.IncrementMatched(id); err != nil {
		s.logger.Error("failed to record website match", "id", id, "error", err)
		return
	}
	s.invalidate()
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.chain = nil
	s.mu.Unlock()
}

func toResponse(w *websiteDatamodel.Website) *WebsiteResponse {
	return &WebsiteResponse{
		ID:              w.ID,
		Name:            w.Name,
		WebhookURL:      w.WebhookURL,
		APIKeyHint:      apiKeyHint(w.APIKey),
		Priority:        w.Priority,
		TimeoutSeconds:  w.TimeoutSeconds,
		IsEnabled:       w.IsEnabled,
		Status:          w.Status,
		FailureCount:    w.FailureCount,
		LastConnectedAt: w.LastConnectedAt,
		MatchedCount:    w.MatchedCount,
		CreatedAt:       w.CreatedAt,
	}
}
