package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	dispatchDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/dispatch"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	websiteDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/website"
	"github.com/tanawath/sms-payment-gateway/internal/core/events"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/dispatch"
	"github.com/tanawath/sms-payment-gateway/internal/signature"
)

func TestDispatch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dispatch Engine Suite")
}

type mockPaymentStore struct {
	events  map[int64]*paymentDatamodel.Event
	matched map[int64]struct {
		websiteID   int64
		orderNumber string
	}
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{
		events: make(map[int64]*paymentDatamodel.Event),
		matched: make(map[int64]struct {
			websiteID   int64
			orderNumber string
		}),
	}
}

func (m *mockPaymentStore) GetByID(id int64) (*paymentDatamodel.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, internal.ErrPaymentNotFound
	}
	return event, nil
}

func (m *mockPaymentStore) MarkMatched(id int64, websiteID int64, orderNumber string) error {
	m.matched[id] = struct {
		websiteID   int64
		orderNumber string
	}{websiteID, orderNumber}
	return nil
}

type mockWebsiteChain struct {
	chain     []*websiteDatamodel.Website
	successes []int64
	failures  map[int64][]string
	matches   []int64
}

func newMockWebsiteChain(sites ...*websiteDatamodel.Website) *mockWebsiteChain {
	return &mockWebsiteChain{
		chain:    sites,
		failures: make(map[int64][]string),
	}
}

func (m *mockWebsiteChain) DispatchChain() ([]*websiteDatamodel.Website, error) {
	return m.chain, nil
}

func (m *mockWebsiteChain) Site(id int64) (*websiteDatamodel.Website, error) {
	for _, site := range m.chain {
		if site.ID == id {
			return site, nil
		}
	}
	return nil, internal.ErrWebsiteNotFound
}

func (m *mockWebsiteChain) RecordSuccess(id int64) {
	m.successes = append(m.successes, id)
}

func (m *mockWebsiteChain) RecordFailure(id int64, status string) {
	m.failures[id] = append(m.failures[id], status)
}

func (m *mockWebsiteChain) RecordMatch(id int64) {
	m.matches = append(m.matches, id)
}

type mockAccountPool struct {
	status *bankaccount.PoolStatus
}

func (m *mockAccountPool) Status() (*bankaccount.PoolStatus, error) {
	return m.status, nil
}

type mockDispatchRepo struct {
	unmatched map[int64]*dispatchDatamodel.UnmatchedPayment
	nextID    int64
	outcomes  []string
	reviews   map[int64]*string
}

func newMockDispatchRepo() *mockDispatchRepo {
	return &mockDispatchRepo{
		unmatched: make(map[int64]*dispatchDatamodel.UnmatchedPayment),
		nextID:    1,
		reviews:   make(map[int64]*string),
	}
}

func (m *mockDispatchRepo) UpsertUnmatched(paymentID int64, attempts json.RawMessage) (*dispatchDatamodel.UnmatchedPayment, error) {
	for _, entry := range m.unmatched {
		if entry.PaymentID == paymentID {
			entry.AttemptedSites = attempts
			entry.Reviewed = false
			entry.UpdatedAt = time.Now()
			return entry, nil
		}
	}
	entry := &dispatchDatamodel.UnmatchedPayment{
		ID:             m.nextID,
		PaymentID:      paymentID,
		AttemptedSites: attempts,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.nextID++
	m.unmatched[entry.ID] = entry
	return entry, nil
}

func (m *mockDispatchRepo) GetUnmatched(id int64) (*dispatchDatamodel.UnmatchedPayment, error) {
	entry, ok := m.unmatched[id]
	if !ok {
		return nil, internal.ErrUnmatchedNotFound
	}
	return entry, nil
}

func (m *mockDispatchRepo) ListUnmatched(reviewed *bool, offset, limit int) ([]*dispatchDatamodel.UnmatchedPayment, error) {
	var out []*dispatchDatamodel.UnmatchedPayment
	for _, entry := range m.unmatched {
		if reviewed != nil && entry.Reviewed != *reviewed {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *mockDispatchRepo) MarkReviewed(id int64, notes *string) error {
	entry, ok := m.unmatched[id]
	if !ok {
		return internal.ErrUnmatchedNotFound
	}
	entry.Reviewed = true
	entry.Notes = notes
	m.reviews[id] = notes
	return nil
}

func (m *mockDispatchRepo) RecordOutcome(outcome string) error {
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *mockDispatchRepo) GetStatistics() (*dispatchDatamodel.Statistics, error) {
	stats := &dispatchDatamodel.Statistics{}
	for _, outcome := range m.outcomes {
		switch outcome {
		case dispatch.OutcomeMatched:
			stats.TotalDispatched++
			stats.TotalMatched++
		case dispatch.OutcomeUnmatched:
			stats.TotalDispatched++
			stats.TotalUnmatched++
		case dispatch.OutcomeGatewayNotReady:
			stats.TotalFailed++
		}
	}
	return stats, nil
}

// testSite is one httptest destination with request accounting and a
// scripted response. The handler runs on the server goroutine, so the
// counters sit behind a mutex.
type testSite struct {
	server  *httptest.Server
	secret  string
	respond func(w http.ResponseWriter, payload dispatch.WebhookPayload)

	mu     sync.Mutex
	hits   int
	bodies []dispatch.WebhookPayload
}

func newTestSite(secret string, respond func(w http.ResponseWriter, payload dispatch.WebhookPayload)) *testSite {
	site := &testSite{secret: secret, respond: respond}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits++
		site.mu.Unlock()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		verifyErr := signature.Verify(site.secret,
			r.Header.Get(signature.HeaderTimestamp),
			r.Header.Get(signature.HeaderSignature),
			body, time.Now())
		if verifyErr != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(dispatch.WebhookResponse{Success: false, Error: "invalid signature"})
			return
		}

		var payload dispatch.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		site.mu.Lock()
		site.bodies = append(site.bodies, payload)
		site.mu.Unlock()

		site.respond(w, payload)
	}))
	return site
}

func (s *testSite) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func (s *testSite) Bodies() []dispatch.WebhookPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.WebhookPayload(nil), s.bodies...)
}

func (s *testSite) Close() {
	s.server.Close()
}

func respondNoMatch(w http.ResponseWriter, _ dispatch.WebhookPayload) {
	json.NewEncoder(w).Encode(dispatch.WebhookResponse{Success: true, Matched: false})
}

func respondMatch(orderNumber string, amount money.Amount) func(http.ResponseWriter, dispatch.WebhookPayload) {
	return func(w http.ResponseWriter, _ dispatch.WebhookPayload) {
		json.NewEncoder(w).Encode(dispatch.WebhookResponse{
			Success: true,
			Matched: true,
			Order: &dispatch.MatchedOrder{
				OrderNumber: orderNumber,
				Amount:      amount,
				CreatedAt:   time.Now(),
			},
		})
	}
}

var _ = Describe("Dispatch engine", func() {
	var (
		payments *mockPaymentStore
		chain    *mockWebsiteChain
		pool     *mockAccountPool
		repo     *mockDispatchRepo
		bus      *events.EventBus
		engine   *dispatch.Engine

		matchedEvents   chan events.Event
		unmatchedEvents chan events.Event
		notReadyEvents  chan events.Event
	)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	device := dispatch.DeviceInfo{DeviceID: "dev-01", DeviceName: "Galaxy A54", AppVersion: "1.4.2"}

	readyPool := func() *bankaccount.PoolStatus {
		return &bankaccount.PoolStatus{
			IsReady:      true,
			EnabledCount: 1,
			Accounts: []bankaccount.PublicAccountInfo{
				{BankType: "kbank", BankName: "Kasikorn Bank", AccountNumber: "123-4-56789-0", AccountName: "Shop Co"},
			},
		}
	}

	makeSite := func(id int64, name, url, secret string, priority int) *websiteDatamodel.Website {
		return &websiteDatamodel.Website{
			ID:             id,
			Name:           name,
			WebhookURL:     url,
			APIKey:         "key-" + name,
			SecretKey:      secret,
			Priority:       priority,
			TimeoutSeconds: 1,
			IsEnabled:      true,
		}
	}

	makePayment := func(id int64, amount money.Amount) *paymentDatamodel.Event {
		return &paymentDatamodel.Event{
			ID:              id,
			SmsID:           id * 10,
			BankName:        "Kasikorn Bank",
			Amount:          amount,
			Currency:        money.CurrencyTHB,
			Direction:       paymentDatamodel.DirectionIncoming,
			TransactionTime: time.Now(),
			RawBody:         "เงินเข้า " + amount.String() + " บาท",
			ConfidenceScore: 0.9,
			Status:          paymentDatamodel.StatusPending,
		}
	}

	buildEngine := func() {
		engine = dispatch.NewEngine(payments, chain, pool, repo,
			dispatch.NewWebhookClient(testLogger), bus, device, testLogger)
	}

	BeforeEach(func() {
		payments = newMockPaymentStore()
		pool = &mockAccountPool{status: readyPool()}
		repo = newMockDispatchRepo()
		bus = events.NewEventBus(testLogger)

		matchedEvents = make(chan events.Event, 4)
		unmatchedEvents = make(chan events.Event, 4)
		notReadyEvents = make(chan events.Event, 4)
		bus.Subscribe(events.EventTypePaymentMatched, func(ctx context.Context, e events.Event) error {
			matchedEvents <- e
			return nil
		})
		bus.Subscribe(events.EventTypePaymentUnmatched, func(ctx context.Context, e events.Event) error {
			unmatchedEvents <- e
			return nil
		})
		bus.Subscribe(events.EventTypeGatewayNotReady, func(ctx context.Context, e events.Event) error {
			notReadyEvents <- e
			return nil
		})
	})

	Describe("stop on match", func() {
		It("never contacts a later site after an earlier one matches", func() {
			first := newTestSite("secret-one", respondMatch("ORD-100", money.Amount(10050)))
			defer first.Close()
			second := newTestSite("secret-two", respondNoMatch)
			defer second.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", first.server.URL, "secret-one", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
			)
			payments.events[1] = makePayment(1, money.Amount(10050))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(result.OrderNumber).To(Equal("ORD-100"))
			Expect(*result.WebsiteID).To(Equal(int64(1)))

			Expect(first.Hits()).To(Equal(1))
			Expect(second.Hits()).To(BeZero())

			Expect(payments.matched).To(HaveKey(int64(1)))
			Expect(payments.matched[1].websiteID).To(Equal(int64(1)))
			Expect(chain.matches).To(Equal([]int64{1}))
			Expect(repo.outcomes).To(Equal([]string{dispatch.OutcomeMatched}))

			Eventually(matchedEvents).Should(Receive())
		})

		It("delivers signed payloads the receiving site can verify", func() {
			site := newTestSite("secret-one", respondMatch("ORD-1", money.Amount(9900)))
			defer site.Close()

			chain = newMockWebsiteChain(makeSite(1, "one", site.server.URL, "secret-one", 1))
			payments.events[1] = makePayment(1, money.Amount(9900))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))

			// The handler rejects bad signatures with 401 before
			// recording the body, so a recorded body proves the
			// signature checked out.
			Expect(site.Bodies()).To(HaveLen(1))
			payload := site.Bodies()[0]
			Expect(payload.Event).To(Equal(dispatch.EventPaymentReceived))
			Expect(payload.RequestID).NotTo(BeEmpty())
			Expect(payload.Payment.Amount).To(Equal(money.Amount(9900)))
			Expect(payload.Payment.RawSmsBody).To(ContainSubstring("เงินเข้า"))
			Expect(payload.Device.DeviceID).To(Equal("dev-01"))
			Expect(payload.BankAccounts.IsReady).To(BeTrue())
			Expect(payload.BankAccounts.Accounts).To(HaveLen(1))
		})
	})

	Describe("chain traversal", func() {
		It("matches at site 3 after a no-match and a timeout", func() {
			first := newTestSite("secret-one", respondNoMatch)
			defer first.Close()
			second := newTestSite("secret-two", func(w http.ResponseWriter, _ dispatch.WebhookPayload) {
				time.Sleep(1500 * time.Millisecond)
				respondNoMatch(w, dispatch.WebhookPayload{})
			})
			defer second.Close()
			third := newTestSite("secret-three", respondMatch("ORD-307", money.Amount(10050)))
			defer third.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", first.server.URL, "secret-one", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
				makeSite(3, "three", third.server.URL, "secret-three", 3),
			)
			payments.events[1] = makePayment(1, money.Amount(10050))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(*result.WebsiteID).To(Equal(int64(3)))
			Expect(result.Attempts).To(HaveLen(3))
			Expect(result.Attempts[1].Outcome).To(Equal("timeout"))

			// Site 1 answered cleanly; only site 2 takes a failure.
			Expect(chain.successes).To(ContainElement(int64(1)))
			Expect(chain.failures).NotTo(HaveKey(int64(1)))
			Expect(chain.failures[2]).To(Equal([]string{websiteDatamodel.StatusTimeout}))
		})

		It("skips a site that rejects the signature and continues the chain", func() {
			// Site 1 is configured with the wrong signing secret, so
			// its receiver answers 401.
			first := newTestSite("actual-secret", respondNoMatch)
			defer first.Close()
			second := newTestSite("secret-two", respondMatch("ORD-2", money.Amount(5000)))
			defer second.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", first.server.URL, "configured-secret", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
			)
			payments.events[1] = makePayment(1, money.Amount(5000))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(*result.WebsiteID).To(Equal(int64(2)))
			Expect(result.Attempts[0].Outcome).To(Equal("auth_rejected"))
			Expect(chain.failures[1]).To(Equal([]string{websiteDatamodel.StatusError}))
		})

		It("treats 503 as not-ready and continues without penalizing the site", func() {
			first := newTestSite("secret-one", func(w http.ResponseWriter, _ dispatch.WebhookPayload) {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(dispatch.WebhookResponse{Success: false, Message: "not ready"})
			})
			defer first.Close()
			second := newTestSite("secret-two", respondMatch("ORD-9", money.Amount(7500)))
			defer second.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", first.server.URL, "secret-one", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
			)
			payments.events[1] = makePayment(1, money.Amount(7500))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(result.Attempts[0].Outcome).To(Equal("site_not_ready"))
			Expect(chain.failures).NotTo(HaveKey(int64(1)))
			Expect(chain.successes).NotTo(ContainElement(int64(1)))
		})

		It("marks an unreachable site disconnected and keeps going", func() {
			dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			deadURL := dead.URL
			dead.Close()

			second := newTestSite("secret-two", respondMatch("ORD-5", money.Amount(4200)))
			defer second.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", deadURL, "secret-one", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
			)
			payments.events[1] = makePayment(1, money.Amount(4200))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(result.Attempts[0].Outcome).To(Equal("unreachable"))
			Expect(chain.failures[1]).To(Equal([]string{websiteDatamodel.StatusDisconnected}))
		})
	})

	Describe("exhaustion", func() {
		It("records an unmatched payment with the full attempt trail", func() {
			first := newTestSite("secret-one", respondNoMatch)
			defer first.Close()
			second := newTestSite("secret-two", respondNoMatch)
			defer second.Close()

			chain = newMockWebsiteChain(
				makeSite(1, "one", first.server.URL, "secret-one", 1),
				makeSite(2, "two", second.server.URL, "secret-two", 2),
			)
			payments.events[1] = makePayment(1, money.Amount(31400))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeUnmatched))
			Expect(result.Attempts).To(HaveLen(2))

			Expect(repo.unmatched).To(HaveLen(1))
			var entry *dispatchDatamodel.UnmatchedPayment
			for _, e := range repo.unmatched {
				entry = e
			}
			Expect(entry.PaymentID).To(Equal(int64(1)))

			var attempts []dispatch.AttemptRecord
			Expect(json.Unmarshal(entry.AttemptedSites, &attempts)).To(Succeed())
			Expect(attempts).To(HaveLen(2))
			Expect(attempts[0].Position).To(Equal(1))
			Expect(attempts[1].WebsiteName).To(Equal("two"))

			Expect(repo.outcomes).To(Equal([]string{dispatch.OutcomeUnmatched}))
			Eventually(unmatchedEvents).Should(Receive())
		})

		It("retries with the current chain and resolves on match", func() {
			site := newTestSite("secret-one", respondNoMatch)
			chain = newMockWebsiteChain(makeSite(1, "one", site.server.URL, "secret-one", 1))
			payments.events[1] = makePayment(1, money.Amount(8800))
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(dispatch.OutcomeUnmatched))
			site.Close()

			var unmatchedID int64
			for id := range repo.unmatched {
				unmatchedID = id
			}

			// The shop fixed their order store; the same site now
			// claims the payment.
			fixed := newTestSite("secret-one", respondMatch("ORD-88", money.Amount(8800)))
			defer fixed.Close()
			chain.chain[0].WebhookURL = fixed.server.URL

			retryResult, retryErr := engine.Retry(context.Background(), unmatchedID)

			Expect(retryErr).NotTo(HaveOccurred())
			Expect(retryResult.Outcome).To(Equal(dispatch.OutcomeMatched))
			Expect(repo.unmatched[unmatchedID].Reviewed).To(BeTrue())
			Expect(*repo.unmatched[unmatchedID].Notes).To(ContainSubstring("matched by one"))
			Expect(repo.outcomes).To(Equal([]string{dispatch.OutcomeUnmatched, dispatch.OutcomeMatched}))
		})
	})

	Describe("readiness gate", func() {
		It("aborts with zero HTTP calls when no account is enabled", func() {
			site := newTestSite("secret-one", respondMatch("ORD-1", money.Amount(100)))
			defer site.Close()

			chain = newMockWebsiteChain(makeSite(1, "one", site.server.URL, "secret-one", 1))
			payments.events[1] = makePayment(1, money.Amount(100))
			pool.status = &bankaccount.PoolStatus{
				IsReady:         false,
				EnabledCount:    0,
				Accounts:        []bankaccount.PublicAccountInfo{},
				NotReadyMessage: "No enabled receiving bank account; add one before dispatching payments",
			}
			buildEngine()

			result, err := engine.Dispatch(context.Background(), 1)

			Expect(err).To(MatchError(internal.ErrGatewayNotReady))
			Expect(result.Outcome).To(Equal(dispatch.OutcomeGatewayNotReady))
			Expect(site.Hits()).To(BeZero())
			Expect(repo.outcomes).To(Equal([]string{dispatch.OutcomeGatewayNotReady}))
			Eventually(notReadyEvents).Should(Receive())
		})
	})

	Describe("connection test", func() {
		It("sends a zero-amount synthetic payload that never matches a payment", func() {
			site := newTestSite("secret-one", respondMatch("ORD-0", money.Amount(0)))
			defer site.Close()

			chain = newMockWebsiteChain(makeSite(1, "one", site.server.URL, "secret-one", 1))
			buildEngine()

			result, err := engine.TestConnection(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reachable).To(BeTrue())

			Expect(site.Bodies()).To(HaveLen(1))
			Expect(site.Bodies()[0].Event).To(Equal(dispatch.EventConnectionTest))
			Expect(site.Bodies()[0].Payment.Amount).To(Equal(money.Amount(0)))

			Expect(payments.matched).To(BeEmpty())
			Expect(chain.matches).To(BeEmpty())
			Expect(chain.successes).To(ContainElement(int64(1)))
		})

		It("reports an unreachable site without touching payment state", func() {
			dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			deadURL := dead.URL
			dead.Close()

			chain = newMockWebsiteChain(makeSite(1, "one", deadURL, "secret-one", 1))
			buildEngine()

			result, err := engine.TestConnection(context.Background(), 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reachable).To(BeFalse())
			Expect(result.Outcome).To(Equal("unreachable"))
			Expect(chain.failures[1]).To(Equal([]string{websiteDatamodel.StatusDisconnected}))
		})
	})
})
