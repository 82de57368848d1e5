package heartbeat_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tanawath/sms-payment-gateway/internal/core/events"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/heartbeat"
)

func TestHeartbeat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Heartbeat Suite")
}

type mockFigures struct {
	pending int64
	total   money.Amount
}

func (m *mockFigures) PendingCount() (int64, error) {
	return m.pending, nil
}

func (m *mockFigures) TodayTotal() (money.Amount, error) {
	return m.total, nil
}

// fakeRegistrar records registrations and heartbeats, with switchable
// failure modes for both.
type fakeRegistrar struct {
	mu            sync.Mutex
	registerCalls int
	registerFails int
	heartbeats    []heartbeat.HeartbeatRequest
	authHeaders   []string

	failHeartbeat atomic.Bool
	inFlight      int32
	maxInFlight   int32
	beatDelay     time.Duration

	server *httptest.Server
}

func newFakeRegistrar() *fakeRegistrar {
	f := &fakeRegistrar{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRegistrar) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/devices/register":
		f.mu.Lock()
		f.registerCalls++
		fail := f.registerCalls <= f.registerFails
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"device_token": "tok-1"})

	case "/api/v1/devices/heartbeat":
		current := atomic.AddInt32(&f.inFlight, 1)
		for {
			max := atomic.LoadInt32(&f.maxInFlight)
			if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, current) {
				break
			}
		}
		if f.beatDelay > 0 {
			time.Sleep(f.beatDelay)
		}
		defer atomic.AddInt32(&f.inFlight, -1)

		var req heartbeat.HeartbeatRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.heartbeats = append(f.heartbeats, req)
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.mu.Unlock()

		if f.failHeartbeat.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRegistrar) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heartbeats)
}

func (f *fakeRegistrar) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

func (f *fakeRegistrar) lastHeartbeat() heartbeat.HeartbeatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats[len(f.heartbeats)-1]
}

var _ = Describe("Heartbeat service", func() {
	var (
		registrar *fakeRegistrar
		figures   *mockFigures
		bus       *events.EventBus
		service   *heartbeat.Service
		statuses  chan string
	)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newService := func(interval, errorInterval time.Duration) *heartbeat.Service {
		client := heartbeat.NewRegistrarClient(registrar.server.URL, time.Second, testLogger)
		return heartbeat.NewService(client, figures, bus, heartbeat.Config{
			Device: heartbeat.Device{
				ID:      "device-01",
				Name:    "shop phone",
				Version: "1.4.2",
			},
			Interval:        interval,
			ErrorInterval:   errorInterval,
			RegisterBackoff: 5 * time.Millisecond,
		}, testLogger)
	}

	BeforeEach(func() {
		registrar = newFakeRegistrar()
		figures = &mockFigures{pending: 3, total: money.Amount(15025)}
		bus = events.NewEventBus(testLogger)
		statuses = make(chan string, 64)
		bus.Subscribe(events.EventTypeSyncStatusChanged, func(ctx context.Context, event events.Event) error {
			changed := event.(*events.SyncStatusChangedEvent)
			statuses <- changed.Current
			return nil
		})
	})

	AfterEach(func() {
		if service != nil {
			service.Stop()
			service = nil
		}
		registrar.server.Close()
	})

	It("registers once, then reports figures on every beat", func() {
		service = newService(20*time.Millisecond, 10*time.Millisecond)

		Expect(service.Start(context.Background())).To(Succeed())

		Eventually(registrar.heartbeatCount, "2s", "10ms").Should(BeNumerically(">=", 3))
		Expect(registrar.registerCount()).To(Equal(1))

		beat := registrar.lastHeartbeat()
		Expect(beat.DeviceID).To(Equal("device-01"))
		Expect(beat.Status).To(Equal("online"))
		Expect(beat.PendingPayments).To(Equal(int64(3)))
		Expect(beat.TodayTotal).To(Equal(money.Amount(15025)))
		Expect(beat.Timestamp).To(BeNumerically(">", 0))

		registrar.mu.Lock()
		auth := registrar.authHeaders[0]
		registrar.mu.Unlock()
		Expect(auth).To(Equal("Bearer tok-1"))
	})

	It("walks the state machine to synced", func() {
		service = newService(20*time.Millisecond, 10*time.Millisecond)

		Expect(service.Start(context.Background())).To(Succeed())

		collected := []string{}
		Eventually(func() []string {
			for {
				select {
				case s := <-statuses:
					collected = append(collected, s)
				default:
					return collected
				}
			}
		}, "2s", "10ms").Should(ContainElements("connecting", "connected", "syncing", "synced"))

		Expect(service.Status()).To(Or(
			Equal(heartbeat.StatusSynced),
			Equal(heartbeat.StatusSyncing),
		))
	})

	It("retries registration before heartbeating starts", func() {
		registrar.registerFails = 2
		service = newService(20*time.Millisecond, 10*time.Millisecond)

		Expect(service.Start(context.Background())).To(Succeed())

		Expect(registrar.registerCount()).To(Equal(3))
		Eventually(registrar.heartbeatCount, "2s", "10ms").Should(BeNumerically(">=", 1))
	})

	It("fails Start when the registrar never answers", func() {
		registrar.registerFails = 100
		service = newService(20*time.Millisecond, 10*time.Millisecond)

		err := service.Start(context.Background())

		Expect(err).To(HaveOccurred())
		Expect(service.Status()).To(Equal(heartbeat.StatusError))
		Expect(registrar.heartbeatCount()).To(BeZero())
	})

	It("moves to error on failure and recovers on the shorter interval", func() {
		service = newService(40*time.Millisecond, 10*time.Millisecond)

		Expect(service.Start(context.Background())).To(Succeed())
		Eventually(service.Status, "2s", "5ms").Should(Equal(heartbeat.StatusSynced))

		registrar.failHeartbeat.Store(true)
		Eventually(service.Status, "2s", "5ms").Should(Equal(heartbeat.StatusError))

		failedAt := registrar.heartbeatCount()
		registrar.failHeartbeat.Store(false)
		Eventually(service.Status, "2s", "5ms").Should(Equal(heartbeat.StatusSynced))
		Expect(registrar.heartbeatCount()).To(BeNumerically(">", failedAt))
	})

	It("never overlaps two sends", func() {
		registrar.beatDelay = 15 * time.Millisecond
		service = newService(5*time.Millisecond, 5*time.Millisecond)

		Expect(service.Start(context.Background())).To(Succeed())
		Eventually(registrar.heartbeatCount, "2s", "10ms").Should(BeNumerically(">=", 4))
		service.Stop()
		service = nil

		Expect(atomic.LoadInt32(&registrar.maxInFlight)).To(Equal(int32(1)))
	})

	It("stops promptly from inside a long wait and is idempotent", func() {
		service = newService(10*time.Second, 10*time.Second)

		Expect(service.Start(context.Background())).To(Succeed())
		Eventually(registrar.heartbeatCount, "2s", "10ms").Should(BeNumerically(">=", 1))

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			service.Stop()
			service.Stop()
			close(done)
		}()

		Eventually(done, "1s").Should(BeClosed())
		Expect(service.Status()).To(Equal(heartbeat.StatusDisconnected))
		service = nil
	})
})
