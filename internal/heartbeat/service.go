package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tanawath/sms-payment-gateway/internal/core/events"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// SyncStatus is the connection state shown to operators.
type SyncStatus string

const (
	StatusDisconnected SyncStatus = "disconnected"
	StatusConnecting   SyncStatus = "connecting"
	StatusConnected    SyncStatus = "connected"
	StatusSyncing      SyncStatus = "syncing"
	StatusSynced       SyncStatus = "synced"
	StatusError        SyncStatus = "error"
)

// FiguresProvider supplies the numbers each heartbeat reports.
type FiguresProvider interface {
	PendingCount() (int64, error)
	TodayTotal() (money.Amount, error)
}

// Device identifies this gateway towards the registrar.
type Device struct {
	ID      string
	Name    string
	Version string
}

// Config carries the loop cadence. ErrorInterval is the shorter retry wait
// used after a failed beat until the registrar answers again.
type Config struct {
	Device          Device
	Interval        time.Duration
	ErrorInterval   time.Duration
	RegisterBackoff time.Duration
}

// Service keeps the registrar informed that this device is alive. One
// registration precedes the loop; beats are strictly sequential, so the
// next send never starts before the previous one finishes or times out.
type Service struct {
	client   *RegistrarClient
	figures  FiguresProvider
	eventBus *events.EventBus
	logger   *slog.Logger
	cfg      Config

	mu      sync.Mutex
	status  SyncStatus
	token   string
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewService(client *RegistrarClient, figures FiguresProvider, eventBus *events.EventBus, cfg Config, logger *slog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.ErrorInterval <= 0 {
		cfg.ErrorInterval = 5 * time.Second
	}
	if cfg.RegisterBackoff <= 0 {
		cfg.RegisterBackoff = 500 * time.Millisecond
	}
	return &Service{
		client:   client,
		figures:  figures,
		eventBus: eventBus,
		logger:   logger,
		cfg:      cfg,
		status:   StatusDisconnected,
	}
}

func (s *Service) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start registers the device and launches the loop. Registration failure
// leaves the service stopped; heartbeating never starts without an identity.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.setStatus(StatusConnecting)

	token, err := s.register(ctx)
	if err != nil {
		s.setStatus(StatusError)
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	s.setStatus(StatusConnected)

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.token = token
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)

	s.logger.Info("heartbeat started",
		"device_id", s.cfg.Device.ID,
		"interval", s.cfg.Interval)
	return nil
}

// Stop cancels the loop, including an in-flight wait or send, and waits for
// the goroutine to exit. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.setStatus(StatusDisconnected)
	s.logger.Info("heartbeat stopped", "device_id", s.cfg.Device.ID)
}

func (s *Service) register(ctx context.Context) (string, error) {
	var token string
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(s.cfg.RegisterBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := s.client.Register(ctx, RegisterRequest{
			DeviceID:   s.cfg.Device.ID,
			DeviceName: s.cfg.Device.Name,
			AppVersion: s.cfg.Device.Version,
		})
		if err != nil {
			s.logger.Warn("device registration failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		token = t
		return nil
	})
	return token, err
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	// First beat right away so the registrar sees the device without
	// waiting a full interval.
	timer := time.NewTimer(s.beat(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(s.beat(ctx))
	}
}

// beat sends one heartbeat and returns how long to wait before the next.
func (s *Service) beat(ctx context.Context) time.Duration {
	s.setStatus(StatusSyncing)

	pending, err := s.figures.PendingCount()
	if err != nil {
		s.logger.Error("failed to read pending payment count", "error", err)
	}
	total, err := s.figures.TodayTotal()
	if err != nil {
		s.logger.Error("failed to read today's received total", "error", err)
	}

	req := HeartbeatRequest{
		DeviceID:        s.cfg.Device.ID,
		Status:          "online",
		PendingPayments: pending,
		TodayTotal:      total,
		Timestamp:       time.Now().UnixMilli(),
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if err := s.client.SendHeartbeat(ctx, token, req); err != nil {
		if ctx.Err() != nil {
			return s.cfg.ErrorInterval
		}
		s.logger.Warn("heartbeat failed", "error", err)
		s.setStatus(StatusError)
		return s.cfg.ErrorInterval
	}

	s.setStatus(StatusSynced)
	return s.cfg.Interval
}

func (s *Service) setStatus(next SyncStatus) {
	s.mu.Lock()
	prev := s.status
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.status = next
	s.mu.Unlock()

	s.logger.Debug("sync status changed", "previous", string(prev), "current", string(next))
	if s.eventBus != nil {
		if err := s.eventBus.Publish(context.Background(), events.NewSyncStatusChangedEvent(string(prev), string(next))); err != nil {
			s.logger.Error("failed to publish sync status event", "error", err)
		}
	}
}
