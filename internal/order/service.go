package order

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	orderDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/order"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

type RepositoryAPI interface {
	Create(o *orderDatamodel.Order) error
	GetByID(id int64) (*orderDatamodel.Order, error)
	GetByOrderNumber(orderNumber string) (*orderDatamodel.Order, error)
	List(status string, offset, limit int) ([]*orderDatamodel.Order, error)
	LiveAmountsNear(base money.Amount, radius int64, now time.Time) ([]money.Amount, error)
	FindLiveByAmount(amount money.Amount, now time.Time) ([]*orderDatamodel.Order, error)
	MarkPaid(id int64, paidAt time.Time) error
	Cancel(id int64, now time.Time) error
	ExpireOverdue(now time.Time) (int64, error)
}

// Service owns one site's pending-order table: amount allocation at
// creation, exact-amount matching for webhook deliveries, and the expiry
// sweep that releases suffixes of overdue orders.
type Service struct {
	repo     RepositoryAPI
	logger   *slog.Logger
	lifetime time.Duration

	accepting atomic.Bool
	buckets   *bucketLocks
}

func NewService(repo RepositoryAPI, lifetime time.Duration, logger *slog.Logger) *Service {
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	s := &Service{
		repo:     repo,
		logger:   logger,
		lifetime: lifetime,
		buckets:  newBucketLocks(),
	}
	s.accepting.Store(true)
	return s
}

// SetAccepting toggles webhook intake. The receiver answers 503 while the
// site is draining or taken offline.
func (s *Service) SetAccepting(v bool) {
	s.accepting.Store(v)
}

func (s *Service) Accepting() bool {
	return s.accepting.Load()
}

// CreateOrder allocates a unique charge amount for the requested base and
// stores the order. The amount never changes after this point.
func (s *Service) CreateOrder(dto CreateOrderDTO) (*OrderResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	if _, err := s.repo.GetByOrderNumber(dto.OrderNumber); err == nil {
		return nil, internal.ErrOrderNumberTaken
	} else if !errors.Is(err, internal.ErrOrderNotFound) {
		return nil, err
	}

	now := time.Now()
	lifetime := s.lifetime
	if dto.ExpiresInMinutes != nil {
		lifetime = time.Duration(*dto.ExpiresInMinutes) * time.Minute
	}

	ord, err := s.allocateAndCreate(dto, now, lifetime)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"order_number", ord.OrderNumber,
		"base_amount", ord.BaseAmount.String(),
		"amount", ord.Amount.String(),
		"suffix_satang", ord.SuffixSatang,
		"expires_at", ord.ExpiresAt)

	return toOrderResponse(ord), nil
}

// allocateAndCreate scans the ±0.50 neighborhood for a free suffix and
// inserts the order while holding the neighborhood's bucket locks, so two
// concurrent creations can never pick the same suffix. When a neighborhood
// has every suffix pending, the base moves up one whole baht and the scan
// repeats at the new neighborhood.
func (s *Service) allocateAndCreate(dto CreateOrderDTO, now time.Time, lifetime time.Duration) (*orderDatamodel.Order, error) {
	base := dto.BaseAmount
	for attempt := 0; attempt < maxRebaseAttempts; attempt++ {
		ord, err := s.tryAllocate(dto, base, now, lifetime)
		if err == nil {
			if attempt > 0 {
				s.logger.Warn("suffix space exhausted, order rebased",
					"order_number", dto.OrderNumber,
					"requested_base", dto.BaseAmount.String(),
					"allocated_base", base.String())
			}
			return ord, nil
		}
		if !errors.Is(err, errSuffixSpaceFull) {
			return nil, err
		}
		base = base.AddSatang(money.SatangPerBaht)
	}

	s.logger.Error("amount allocation exhausted",
		"order_number", dto.OrderNumber,
		"base_amount", dto.BaseAmount.String())
	return nil, internal.ErrAllocationExhausted
}

func (s *Service) tryAllocate(dto CreateOrderDTO, base money.Amount, now time.Time, lifetime time.Duration) (*orderDatamodel.Order, error) {
	unlock := s.buckets.lockWindow(base, neighborhoodSatang)
	defer unlock()

	neighbors, err := s.repo.LiveAmountsNear(base, neighborhoodSatang, now)
	if err != nil {
		return nil, err
	}

	suffix, ok := firstFreeSuffix(blockedSuffixes(base, neighbors))
	if !ok {
		return nil, errSuffixSpaceFull
	}

	ord := &orderDatamodel.Order{
		OrderNumber:  dto.OrderNumber,
		BaseAmount:   base,
		Amount:       base.AddSatang(suffix),
		SuffixSatang: suffix,
		Status:       orderDatamodel.StatusPending,
		ExpiresAt:    now.Add(lifetime),
		CustomerName: dto.CustomerName,
		Description:  dto.Description,
	}
	if err := s.repo.Create(ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// MatchPayment claims the live order holding exactly this amount, marking it
// paid. A nil order with nil error means nothing matched. More than one live
// order on the same amount means the allocator's invariant was broken; the
// payment is refused rather than guessed at.
func (s *Service) MatchPayment(amount money.Amount) (*orderDatamodel.Order, error) {
	now := time.Now()

	matches, err := s.repo.FindLiveByAmount(amount, now)
	if err != nil {
		s.logger.Error("order lookup failed", "amount", amount.String(), "error", err)
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	if len(matches) > 1 {
		numbers := make([]string, 0, len(matches))
		for _, m := range matches {
			numbers = append(numbers, m.OrderNumber)
		}
		s.logger.Error("multiple live orders hold the same amount",
			"amount", amount.String(),
			"order_numbers", numbers)
		return nil, internal.ErrDuplicateMatch
	}

	ord := matches[0]
	if err := s.repo.MarkPaid(ord.ID, now); err != nil {
		if errors.Is(err, internal.ErrOrderNotPending) || errors.Is(err, internal.ErrOrderNotFound) {
			// Lost a race with another claim or the sweeper.
			return nil, nil
		}
		return nil, err
	}

	ord.Status = orderDatamodel.StatusPaid
	ord.PaidAt = &now

	s.logger.Info("payment matched",
		"order_number", ord.OrderNumber,
		"amount", ord.Amount.String())
	return ord, nil
}

func (s *Service) GetOrder(id int64) (*OrderResponse, error) {
	ord, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(ord), nil
}

func (s *Service) GetOrderByNumber(orderNumber string) (*OrderResponse, error) {
	ord, err := s.repo.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(ord), nil
}

func (s *Service) ListOrders(status string, offset, limit int) ([]OrderResponse, error) {
	switch status {
	case "", orderDatamodel.StatusPending, orderDatamodel.StatusPaid,
		orderDatamodel.StatusCancelled, orderDatamodel.StatusExpired:
	default:
		return nil, internal.NewValidationError("unknown order status", internal.ErrCodeValidationFailed)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	orders, err := s.repo.List(status, offset, limit)
	if err != nil {
		s.logger.Error("failed to list orders", "error", err)
		return nil, err
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, ord := range orders {
		responses = append(responses, *toOrderResponse(ord))
	}
	return responses, nil
}

// CancelOrder releases the order's amount immediately; only pending orders
// can be cancelled.
func (s *Service) CancelOrder(id int64) error {
	if err := s.repo.Cancel(id, time.Now()); err != nil {
		return err
	}
	s.logger.Info("order cancelled", "order_id", id)
	return nil
}

// MarkOrderPaid is the manual confirmation path for payments that arrived
// outside the webhook flow (bank transfer seen in the app, cash).
func (s *Service) MarkOrderPaid(id int64) (*OrderResponse, error) {
	if err := s.repo.MarkPaid(id, time.Now()); err != nil {
		return nil, err
	}
	ord, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order marked paid", "order_number", ord.OrderNumber)
	return toOrderResponse(ord), nil
}

// SweepExpired flips overdue pending orders to expired, releasing their
// suffixes for reuse.
func (s *Service) SweepExpired(now time.Time) (int64, error) {
	return s.repo.ExpireOverdue(now)
}

// RunExpirySweeper runs the sweep on a fixed interval until ctx is
// cancelled. Blocks; run it on its own goroutine.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(time.Now())
			if err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("overdue orders expired", "count", n)
			}
		}
	}
}

func toOrderResponse(ord *orderDatamodel.Order) *OrderResponse {
	return &OrderResponse{
		ID:           ord.ID,
		OrderNumber:  ord.OrderNumber,
		BaseAmount:   ord.BaseAmount,
		Amount:       ord.Amount,
		SuffixSatang: ord.SuffixSatang,
		Status:       ord.Status,
		ExpiresAt:    ord.ExpiresAt,
		CustomerName: ord.CustomerName,
		Description:  ord.Description,
		PaidAt:       ord.PaidAt,
		CreatedAt:    ord.CreatedAt,
	}
}
