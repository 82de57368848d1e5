package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	dispatchDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/dispatch"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	websiteDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/website"
	"github.com/tanawath/sms-payment-gateway/internal/core/events"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// Terminal dispatch outcomes.
const (
	OutcomeMatched         = "matched"
	OutcomeUnmatched       = "unmatched"
	OutcomeGatewayNotReady = "gateway_not_ready"
)

// WebsiteChain is the site-facing surface the engine needs: the ordered
// chain, credential lookup for connection tests, and status bookkeeping.
type WebsiteChain interface {
	DispatchChain() ([]*websiteDatamodel.Website, error)
	Site(id int64) (*websiteDatamodel.Website, error)
	RecordSuccess(id int64)
	RecordFailure(id int64, status string)
	RecordMatch(id int64)
}

// AccountPool reports receiving-account readiness and the public account
// list embedded in every payload.
type AccountPool interface {
	Status() (*bankaccount.PoolStatus, error)
}

// PaymentStore is the slice of the payment repository the engine touches.
type PaymentStore interface {
	GetByID(id int64) (*paymentDatamodel.Event, error)
	MarkMatched(id int64, websiteID int64, orderNumber string) error
}

type RepositoryAPI interface {
	UpsertUnmatched(paymentID int64, attempts json.RawMessage) (*dispatchDatamodel.UnmatchedPayment, error)
	GetUnmatched(id int64) (*dispatchDatamodel.UnmatchedPayment, error)
	ListUnmatched(reviewed *bool, offset, limit int) ([]*dispatchDatamodel.UnmatchedPayment, error)
	MarkReviewed(id int64, notes *string) error
	RecordOutcome(outcome string) error
	GetStatistics() (*dispatchDatamodel.Statistics, error)
}

// AttemptRecord is one row of the attempted_sites audit trail.
type AttemptRecord struct {
	WebsiteID   int64  `json:"websiteId"`
	WebsiteName string `json:"websiteName"`
	Position    int    `json:"position"`
	Outcome     string `json:"outcome"`
	HTTPStatus  int    `json:"httpStatus,omitempty"`
	Error       string `json:"error,omitempty"`
	ElapsedMs   int64  `json:"elapsedMs"`
}

// Result is the terminal outcome of one full dispatch pass.
type Result struct {
	Outcome     string          `json:"outcome"`
	PaymentID   int64           `json:"payment_id"`
	WebsiteID   *int64          `json:"website_id,omitempty"`
	WebsiteName string          `json:"website_name,omitempty"`
	OrderNumber string          `json:"order_number,omitempty"`
	Attempts    []AttemptRecord `json:"attempts"`
}

// Engine runs the ordered stop-on-match delivery pass. One pass is strictly
// sequential; separate payments may run passes concurrently.
type Engine struct {
	payments PaymentStore
	websites WebsiteChain
	accounts AccountPool
	repo     RepositoryAPI
	client   *WebhookClient
	eventBus *events.EventBus
	device   DeviceInfo
	logger   *slog.Logger
}

func NewEngine(
	payments PaymentStore,
	websites WebsiteChain,
	accounts AccountPool,
	repo RepositoryAPI,
	client *WebhookClient,
	eventBus *events.EventBus,
	device DeviceInfo,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		payments: payments,
		websites: websites,
		accounts: accounts,
		repo:     repo,
		client:   client,
		eventBus: eventBus,
		device:   device,
		logger:   logger,
	}
}

// Dispatch runs one full ordered pass for the payment. The pool readiness
// check happens before any site is contacted; an unready pool aborts with
// zero HTTP calls made.
func (e *Engine) Dispatch(ctx context.Context, paymentID int64) (*Result, error) {
	event, err := e.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	pool, err := e.accounts.Status()
	if err != nil {
		return nil, err
	}
	if !pool.IsReady {
		e.logger.Warn("dispatch aborted, gateway not ready", "payment_id", paymentID)
		e.eventBus.Publish(ctx, events.NewGatewayNotReadyEvent(paymentID, pool.NotReadyMessage))
		if err := e.repo.RecordOutcome(OutcomeGatewayNotReady); err != nil {
			e.logger.Error("failed to record dispatch outcome", "error", err)
		}
		return &Result{Outcome: OutcomeGatewayNotReady, PaymentID: paymentID}, internal.ErrGatewayNotReady
	}

	chain, err := e.websites.DispatchChain()
	if err != nil {
		return nil, err
	}

	e.logger.Info("dispatch started",
		"payment_id", paymentID,
		"amount", event.Amount.String(),
		"chain_length", len(chain))

	payload := e.buildPayload(event, pool)
	attempts := make([]AttemptRecord, 0, len(chain))

	for i, site := range chain {
		position := i + 1
		e.eventBus.Publish(ctx, events.NewDispatchProgressEvent(
			paymentID, site.ID, site.Name, position, "attempting", ""))

		delivery := e.client.Deliver(ctx, site, payload)
		record := AttemptRecord{
			WebsiteID:   site.ID,
			WebsiteName: site.Name,
			Position:    position,
			Outcome:     delivery.Outcome,
			HTTPStatus:  delivery.HTTPStatus,
			ElapsedMs:   delivery.Elapsed.Milliseconds(),
		}
		if delivery.Err != nil {
			record.Error = delivery.Err.Error()
		}
		attempts = append(attempts, record)

		e.eventBus.Publish(ctx, events.NewDispatchProgressEvent(
			paymentID, site.ID, site.Name, position, "attempted", delivery.Outcome))

		switch delivery.Outcome {
		case outcomeMatched:
			e.websites.RecordSuccess(site.ID)
			e.websites.RecordMatch(site.ID)

			orderNumber := ""
			if delivery.Response != nil && delivery.Response.Order != nil {
				orderNumber = delivery.Response.Order.OrderNumber
			}
			if err := e.payments.MarkMatched(paymentID, site.ID, orderNumber); err != nil {
				e.logger.Error("failed to mark payment matched",
					"payment_id", paymentID, "website_id", site.ID, "error", err)
			}
			if err := e.repo.RecordOutcome(OutcomeMatched); err != nil {
				e.logger.Error("failed to record dispatch outcome", "error", err)
			}
			e.eventBus.Publish(ctx, events.NewPaymentMatchedEvent(
				paymentID, site.ID, site.Name, orderNumber, event.Amount.String()))

			e.logger.Info("payment matched",
				"payment_id", paymentID,
				"website_id", site.ID,
				"website", site.Name,
				"order_number", orderNumber,
				"position", position)

			siteID := site.ID
			return &Result{
				Outcome:     OutcomeMatched,
				PaymentID:   paymentID,
				WebsiteID:   &siteID,
				WebsiteName: site.Name,
				OrderNumber: orderNumber,
				Attempts:    attempts,
			}, nil

		case outcomeNoMatch:
			e.websites.RecordSuccess(site.ID)

		case outcomeSiteNotReady:
			// 503 means the site is up but its order store is not
			// accepting payments; the chain continues and the site
			// keeps its health record.

		case outcomeAuthRejected:
			e.websites.RecordFailure(site.ID, websiteDatamodel.StatusError)

		case outcomeTimeout:
			e.websites.RecordFailure(site.ID, websiteDatamodel.StatusTimeout)

		case outcomeUnreachable:
			e.websites.RecordFailure(site.ID, websiteDatamodel.StatusDisconnected)

		default:
			e.websites.RecordFailure(site.ID, websiteDatamodel.StatusError)
		}
	}

	attemptsJSON, err := json.Marshal(attempts)
	if err != nil {
		return nil, err
	}
	if _, err := e.repo.UpsertUnmatched(paymentID, attemptsJSON); err != nil {
		e.logger.Error("failed to record unmatched payment", "payment_id", paymentID, "error", err)
		return nil, err
	}
	if err := e.repo.RecordOutcome(OutcomeUnmatched); err != nil {
		e.logger.Error("failed to record dispatch outcome", "error", err)
	}
	e.eventBus.Publish(ctx, events.NewPaymentUnmatchedEvent(
		paymentID, event.Amount.String(), len(attempts)))

	e.logger.Warn("dispatch exhausted",
		"payment_id", paymentID,
		"amount", event.Amount.String(),
		"attempted_sites", len(attempts))

	return &Result{
		Outcome:   OutcomeUnmatched,
		PaymentID: paymentID,
		Attempts:  attempts,
	}, nil
}

// Retry re-runs the full pass for an unmatched payment using the current
// site list. A match resolves the unmatched entry; another exhaustion
// refreshes its attempt trail.
func (e *Engine) Retry(ctx context.Context, unmatchedID int64) (*Result, error) {
	entry, err := e.repo.GetUnmatched(unmatchedID)
	if err != nil {
		return nil, err
	}

	result, err := e.Dispatch(ctx, entry.PaymentID)
	if err != nil {
		return result, err
	}

	if result.Outcome == OutcomeMatched {
		note := fmt.Sprintf("matched by %s on retry", result.WebsiteName)
		if err := e.repo.MarkReviewed(entry.ID, &note); err != nil {
			e.logger.Error("failed to resolve unmatched entry", "id", entry.ID, "error", err)
		}
	}
	return result, nil
}

// TestConnection sends a zero-amount synthetic payload to one site. The
// response updates the site's health record but never matches a payment.
func (e *Engine) TestConnection(ctx context.Context, websiteID int64) (*ConnectionTestResponse, error) {
	site, err := e.websites.Site(websiteID)
	if err != nil {
		return nil, err
	}

	pool, err := e.accounts.Status()
	if err != nil {
		return nil, err
	}

	payload := WebhookPayload{
		Event: EventConnectionTest,
		Payment: PaymentPayload{
			Amount:          money.FromSatang(0),
			Currency:        money.CurrencyTHB,
			BankName:        "Connection Test",
			TransactionTime: time.Now(),
			RawSmsBody:      "connection test",
			ConfidenceScore: 1.0,
		},
		Device:       e.device,
		BankAccounts: *pool,
	}

	delivery := e.client.Deliver(ctx, site, payload)

	switch delivery.Outcome {
	case outcomeMatched, outcomeNoMatch:
		e.websites.RecordSuccess(site.ID)
	case outcomeSiteNotReady:
		// Reachable but not accepting; leave the health record alone.
	case outcomeTimeout:
		e.websites.RecordFailure(site.ID, websiteDatamodel.StatusTimeout)
	case outcomeUnreachable:
		e.websites.RecordFailure(site.ID, websiteDatamodel.StatusDisconnected)
	default:
		e.websites.RecordFailure(site.ID, websiteDatamodel.StatusError)
	}

	response := &ConnectionTestResponse{
		WebsiteID:  site.ID,
		Reachable:  delivery.Outcome == outcomeMatched || delivery.Outcome == outcomeNoMatch,
		Outcome:    delivery.Outcome,
		HTTPStatus: delivery.HTTPStatus,
		ElapsedMs:  delivery.Elapsed.Milliseconds(),
	}
	if delivery.Err != nil {
		response.Error = delivery.Err.Error()
	}

	e.logger.Info("connection test finished",
		"website_id", site.ID,
		"outcome", delivery.Outcome,
		"http_status", delivery.HTTPStatus)

	return response, nil
}

func (e *Engine) buildPayload(event *paymentDatamodel.Event, pool *bankaccount.PoolStatus) WebhookPayload {
	return WebhookPayload{
		Event: EventPaymentReceived,
		Payment: PaymentPayload{
			Amount:          event.Amount,
			Currency:        event.Currency,
			BankName:        event.BankName,
			AccountNumber:   event.AccountNumberMasked,
			Reference:       event.Reference,
			SenderName:      event.SenderName,
			TransactionTime: event.TransactionTime,
			RawSmsBody:      event.RawBody,
			ConfidenceScore: event.ConfidenceScore,
		},
		Device:       e.device,
		BankAccounts: *pool,
	}
}
