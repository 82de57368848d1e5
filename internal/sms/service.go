package sms

import (
	"context"
	"log/slog"
	"time"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/classifier"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	smsDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/sms"
	"github.com/tanawath/sms-payment-gateway/internal/core/events"
)

type RepositoryAPI interface {
	Create(msg *smsDatamodel.Message) error
	MarkProcessed(id int64, classifiedType string, confidence float64, reason string) error
	GetByID(id int64) (*smsDatamodel.Message, error)
	GetRecent(offset, limit int) ([]*smsDatamodel.Message, error)
}

// PaymentCreator turns a processable classification into a payment event.
type PaymentCreator interface {
	CreateFromClassification(smsID int64, rawBody string, res classifier.Result) (*paymentDatamodel.Event, error)
}

// Service is the ingest pipeline: persist the raw SMS, classify it, record
// the verdict, and open a payment event for incoming payments above the
// confidence threshold. Every message is stored, even the ones dropped.
type Service struct {
	repo       RepositoryAPI
	classifier *classifier.Classifier
	payments   PaymentCreator
	eventBus   *events.EventBus
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, cls *classifier.Classifier, payments PaymentCreator, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		classifier: cls,
		payments:   payments,
		eventBus:   eventBus,
		logger:     logger,
	}
}

func (s *Service) Ingest(ctx context.Context, dto IngestDTO) (*IngestResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	receivedAt := time.Now()
	if dto.ReceivedAt != nil {
		receivedAt = *dto.ReceivedAt
	}

	msg := &smsDatamodel.Message{
		Sender:     dto.Sender,
		Body:       dto.Body,
		ReceivedAt: receivedAt,
	}
	if err := s.repo.Create(msg); err != nil {
		s.logger.Error("failed to store sms", "sender", dto.Sender, "error", err)
		return nil, err
	}

	res := s.classifier.Classify(dto.Sender, dto.Body, receivedAt)

	// The verdict is recorded before any downstream work so a crashed
	// dispatch never loses the audit trail.
	if err := s.repo.MarkProcessed(msg.ID, string(res.Type), res.Confidence, res.Reason); err != nil {
		s.logger.Error("failed to mark sms processed", "sms_id", msg.ID, "error", err)
		return nil, err
	}

	response := &IngestResponse{
		SmsID: msg.ID,
		Classification: ClassificationView{
			Type:       res.Type,
			Confidence: res.Confidence,
			BankName:   res.BankName,
			Reason:     res.Reason,
		},
	}
	if res.Amount > 0 {
		amount := res.Amount
		response.Classification.Amount = &amount
	}

	if !res.ShouldProcess {
		s.logger.Info("sms dropped",
			"sms_id", msg.ID,
			"type", res.Type,
			"confidence", res.Confidence,
			"reason", res.Reason)
		return response, nil
	}

	event, err := s.payments.CreateFromClassification(msg.ID, dto.Body, res)
	if err != nil {
		return nil, err
	}

	response.PaymentID = &event.ID
	response.WillDispatch = true

	if err := s.eventBus.Publish(ctx, events.NewPaymentReceivedEvent(
		event.ID, event.BankName, event.Amount.String(), event.ConfidenceScore)); err != nil {
		s.logger.Error("failed to publish payment received event",
			"payment_id", event.ID, "error", err)
	}

	return response, nil
}

func (s *Service) ListMessages(offset, limit int) ([]MessageResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := s.repo.GetRecent(offset, limit)
	if err != nil {
		s.logger.Error("failed to list sms messages", "error", err)
		return nil, err
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		responses = append(responses, MessageResponse{
			ID:             msg.ID,
			Sender:         msg.Sender,
			Body:           msg.Body,
			ReceivedAt:     msg.ReceivedAt,
			Processed:      msg.Processed,
			ClassifiedType: msg.ClassifiedType,
			Confidence:     msg.Confidence,
			Reason:         msg.Reason,
			CreatedAt:      msg.CreatedAt,
		})
	}
	return responses, nil
}

func (s *Service) GetMessage(id int64) (*MessageResponse, error) {
	msg, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &MessageResponse{
		ID:             msg.ID,
		Sender:         msg.Sender,
		Body:           msg.Body,
		ReceivedAt:     msg.ReceivedAt,
		Processed:      msg.Processed,
		ClassifiedType: msg.ClassifiedType,
		Confidence:     msg.Confidence,
		Reason:         msg.Reason,
		CreatedAt:      msg.CreatedAt,
	}, nil
}
