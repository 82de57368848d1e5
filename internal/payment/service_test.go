package payment_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/classifier"
	paymentDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/payment"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/payment"
)

func TestPayment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Service Suite")
}

// Mock repository for testing
type mockPaymentRepository struct {
	events map[int64]*paymentDatamodel.Event
	nextID int64

	createError error
	updateError error
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{
		events: make(map[int64]*paymentDatamodel.Event),
		nextID: 1,
	}
}

func (m *mockPaymentRepository) Create(event *paymentDatamodel.Event) error {
	if m.createError != nil {
		return m.createError
	}
	event.ID = m.nextID
	m.nextID++
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockPaymentRepository) GetByID(id int64) (*paymentDatamodel.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, errNotFound()
	}
	copy := *event
	return &copy, nil
}

func (m *mockPaymentRepository) GetByStatus(status string, offset, limit int) ([]*paymentDatamodel.Event, error) {
	var out []*paymentDatamodel.Event
	for _, e := range m.events {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockPaymentRepository) GetRecent(offset, limit int) ([]*paymentDatamodel.Event, error) {
	var out []*paymentDatamodel.Event
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockPaymentRepository) UpdateStatus(id int64, status string) error {
	if m.updateError != nil {
		return m.updateError
	}
	event, ok := m.events[id]
	if !ok {
		return errNotFound()
	}
	event.Status = status
	return nil
}

func (m *mockPaymentRepository) MarkMatched(id int64, websiteID int64, orderNumber string) error {
	event, ok := m.events[id]
	if !ok {
		return errNotFound()
	}
	event.Status = paymentDatamodel.StatusVerified
	event.MatchedWebsiteID = &websiteID
	event.MatchedOrderNumber = &orderNumber
	return nil
}

func (m *mockPaymentRepository) CountByStatus(status string) (int64, error) {
	var n int64
	for _, e := range m.events {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockPaymentRepository) SumAmountSince(since time.Time) (money.Amount, error) {
	var total money.Amount
	for _, e := range m.events {
		if !e.CreatedAt.Before(since) && e.Direction == paymentDatamodel.DirectionIncoming {
			total += e.Amount
		}
	}
	return total, nil
}

func errNotFound() error {
	return internal.ErrPaymentNotFound
}

var _ = Describe("Payment Service", func() {
	var (
		repo    *mockPaymentRepository
		service *payment.Service
	)

	BeforeEach(func() {
		repo = newMockPaymentRepository()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payment.NewService(repo, logger)
	})

	classification := func() classifier.Result {
		return classifier.Result{
			Type:          classifier.TypeIncomingPayment,
			Confidence:    0.89,
			BankCode:      "kbank",
			BankName:      "Kasikorn Bank",
			Amount:        money.Amount(10050),
			Reference:     "AB123",
			SenderName:    "Somchai J",
			AccountMasked: "XXX-1234",
			TxTime:        time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC),
			ShouldProcess: true,
		}
	}

	Describe("CreateFromClassification", func() {
		It("persists a pending incoming event with all extracted fields", func() {
			event, err := service.CreateFromClassification(7, "เงินเข้า 100.50 บาท", classification())

			Expect(err).NotTo(HaveOccurred())
			Expect(event.ID).To(BeNumerically(">", 0))
			Expect(event.SmsID).To(Equal(int64(7)))
			Expect(event.Status).To(Equal(paymentDatamodel.StatusPending))
			Expect(event.Direction).To(Equal(paymentDatamodel.DirectionIncoming))
			Expect(event.Amount).To(Equal(money.Amount(10050)))
			Expect(event.Currency).To(Equal(money.CurrencyTHB))
			Expect(event.RawBody).To(Equal("เงินเข้า 100.50 บาท"))
			Expect(*event.Reference).To(Equal("AB123"))
			Expect(*event.SenderName).To(Equal("Somchai J"))
		})

		It("leaves optional fields nil when extraction found nothing", func() {
			res := classification()
			res.Reference = ""
			res.SenderName = ""

			event, err := service.CreateFromClassification(7, "เงินเข้า 100.50 บาท", res)

			Expect(err).NotTo(HaveOccurred())
			Expect(event.Reference).To(BeNil())
			Expect(event.SenderName).To(BeNil())
		})
	})

	Describe("status transitions", func() {
		It("approves a pending event", func() {
			event, _ := service.CreateFromClassification(7, "เงินเข้า 100.50 บาท", classification())

			resp, err := service.Approve(event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(paymentDatamodel.StatusApproved))
		})

		It("refuses to approve a rejected event", func() {
			event, _ := service.CreateFromClassification(7, "เงินเข้า 100.50 บาท", classification())
			_, err := service.Reject(event.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(event.ID)
			Expect(err).To(HaveOccurred())
		})

		It("marks an event matched with the winning site", func() {
			event, _ := service.CreateFromClassification(7, "เงินเข้า 100.50 บาท", classification())

			err := service.MarkMatched(event.ID, 3, "ORD-001")
			Expect(err).NotTo(HaveOccurred())

			stored, _ := repo.GetByID(event.ID)
			Expect(stored.Status).To(Equal(paymentDatamodel.StatusVerified))
			Expect(*stored.MatchedWebsiteID).To(Equal(int64(3)))
			Expect(*stored.MatchedOrderNumber).To(Equal("ORD-001"))
		})
	})

	Describe("heartbeat figures", func() {
		It("counts pending events and sums today's amounts", func() {
			service.CreateFromClassification(1, "เงินเข้า 100.50 บาท", classification())
			second, _ := service.CreateFromClassification(2, "เงินเข้า 100.50 บาท", classification())
			service.Approve(second.ID)

			pending, err := service.PendingCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal(int64(1)))

			total, err := service.TodayTotal()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(money.Amount(20100)))
		})
	})
})
