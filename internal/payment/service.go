package payment

import (
	"log/slog"
	"time"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/classifier"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

type RepositoryAPI interface {
	Create(event *paymentDatamodel.Event) error
	GetByID(id int64) (*paymentDatamodel.Event, error)
	GetByStatus(status string, offset, limit int) ([]*paymentDatamodel.Event, error)
	GetRecent(offset, limit int) ([]*paymentDatamodel.Event, error)
	UpdateStatus(id int64, status string) error
	MarkMatched(id int64, websiteID int64, orderNumber string) error
	CountByStatus(status string) (int64, error)
	SumAmountSince(since time.Time) (money.Amount, error)
}

// Service owns the payment event ledger. Events are created from
// classifications, mutated by dispatch and operator review, and never
// deleted.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// CreateFromClassification persists a new pending payment event from a
// processable classification result. The raw SMS body rides along because
// the webhook payload repeats it verbatim for destination-side audit.
func (s *Service) CreateFromClassification(smsID int64, rawBody string, res classifier.Result) (*paymentDatamodel.Event, error) {
	event := &paymentDatamodel.Event{
		SmsID:               smsID,
		BankName:            res.BankName,
		AccountNumberMasked: res.AccountMasked,
		Amount:              res.Amount,
		Currency:            money.CurrencyTHB,
		Direction:           paymentDatamodel.DirectionIncoming,
		TransactionTime:     res.TxTime,
		RawBody:             rawBody,
		ConfidenceScore:     res.Confidence,
		Status:              paymentDatamodel.StatusPending,
	}
	if res.Reference != "" {
		ref := res.Reference
		event.Reference = &ref
	}
	if res.SenderName != "" {
		name := res.SenderName
		event.SenderName = &name
	}

	if err := s.repo.Create(event); err != nil {
		s.logger.Error("failed to create payment event", "sms_id", smsID, "error", err)
		return nil, err
	}

	s.logger.Info("payment event created",
		"payment_id", event.ID,
		"sms_id", smsID,
		"bank", event.BankName,
		"amount", event.Amount.String())

	return event, nil
}

func (s *Service) GetEvent(id int64) (*EventResponse, error) {
	event, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return toResponse(event), nil
}

// GetByID exposes the raw event row for the dispatch engine, which works
// on satang amounts rather than the display shape.
func (s *Service) GetByID(id int64) (*paymentDatamodel.Event, error) {
	return s.repo.GetByID(id)
}

func (s *Service) ListEvents(status string, offset, limit int) ([]EventResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		events []*paymentDatamodel.Event
		err    error
	)
	if status != "" {
		events, err = s.repo.GetByStatus(status, offset, limit)
	} else {
		events, err = s.repo.GetRecent(offset, limit)
	}
	if err != nil {
		s.logger.Error("failed to list payment events", "error", err)
		return nil, err
	}

	responses := make([]EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, *toResponse(event))
	}
	return responses, nil
}

// Approve moves a verified or pending event to approved.
func (s *Service) Approve(id int64) (*EventResponse, error) {
	return s.transition(id, paymentDatamodel.StatusApproved,
		paymentDatamodel.StatusPending, paymentDatamodel.StatusVerified)
}

// Reject marks an event rejected; it stays in the ledger for audit.
func (s *Service) Reject(id int64) (*EventResponse, error) {
	return s.transition(id, paymentDatamodel.StatusRejected,
		paymentDatamodel.StatusPending, paymentDatamodel.StatusVerified)
}

func (s *Service) transition(id int64, to string, allowedFrom ...string) (*EventResponse, error) {
	event, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, from := range allowedFrom {
		if event.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, internal.NewConflictError("payment event cannot move to "+to+" from "+event.Status, internal.ErrCodePaymentAlreadyResolved)
	}

	if err := s.repo.UpdateStatus(id, to); err != nil {
		s.logger.Error("failed to update payment status", "payment_id", id, "status", to, "error", err)
		return nil, err
	}

	event.Status = to
	s.logger.Info("payment event status changed", "payment_id", id, "status", to)
	return toResponse(event), nil
}

// MarkMatched records the winning site after a successful dispatch and
// moves the event to verified.
func (s *Service) MarkMatched(id int64, websiteID int64, orderNumber string) error {
	if err := s.repo.MarkMatched(id, websiteID, orderNumber); err != nil {
		s.logger.Error("failed to mark payment matched",
			"payment_id", id,
			"website_id", websiteID,
			"error", err)
		return err
	}
	return nil
}

// PendingCount reports how many events await dispatch or review; the
// heartbeat sends this figure to the registrar.
func (s *Service) PendingCount() (int64, error) {
	return s.repo.CountByStatus(paymentDatamodel.StatusPending)
}

// TodayTotal sums the amounts received since local midnight.
func (s *Service) TodayTotal() (money.Amount, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.SumAmountSince(midnight)
}
