package order_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	orderDatamodel "github.com/tanawath/sms-payment-gateway/internal/core/datamodel/order"
	"github.com/tanawath/sms-payment-gateway/internal/core/money"
	"github.com/tanawath/sms-payment-gateway/internal/order"
	"github.com/tanawath/sms-payment-gateway/internal/signature"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
)

var _ = Describe("Webhook receiver", func() {
	const (
		apiKey = "site-api-key"
		secret = "site-secret-key"
	)

	var (
		repo     *mockOrderRepository
		service  *order.Service
		receiver *order.Receiver
	)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	BeforeEach(func() {
		repo = newMockOrderRepository()
		service = order.NewService(repo, 30*time.Minute, testLogger)
		receiver = order.NewReceiver(transport.NewBaseHandler(testLogger), service, apiKey, secret)
	})

	envelope := func(event, amount string) []byte {
		body, err := json.Marshal(map[string]interface{}{
			"requestId": "req-123",
			"event":     event,
			"timestamp": time.Now().UnixMilli(),
			"payment": map[string]interface{}{
				"amount":   json.RawMessage(amount),
				"currency": "THB",
				"bankName": "KBank",
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	signedRequest := func(body []byte, signer signature.Signer, at time.Time) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
		signer.SignRequest(req, body, at)
		return req
	}

	perform := func(req *http.Request) (*httptest.ResponseRecorder, order.ReceiverResponse) {
		rr := httptest.NewRecorder()
		receiver.HandleWebhook(rr, req)

		var resp order.ReceiverResponse
		if rr.Code == http.StatusOK {
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
		}
		return rr, resp
	}

	gatewaySigner := signature.Signer{APIKey: apiKey, Secret: secret}

	It("claims a matching order and returns its details", func() {
		created, err := service.CreateOrder(order.CreateOrderDTO{
			OrderNumber: "ORD-001",
			BaseAmount:  money.Amount(15025),
		})
		Expect(err).NotTo(HaveOccurred())

		rr, resp := perform(signedRequest(envelope("payment.received", "150.25"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Matched).To(BeTrue())
		Expect(resp.Order).NotTo(BeNil())
		Expect(resp.Order.OrderNumber).To(Equal("ORD-001"))
		Expect(resp.Order.Amount).To(Equal(money.Amount(15025)))

		stored, getErr := repo.GetByID(created.ID)
		Expect(getErr).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(orderDatamodel.StatusPaid))
	})

	It("answers matched:false when no live order holds the amount", func() {
		rr, resp := perform(signedRequest(envelope("payment.received", "150.25"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Matched).To(BeFalse())
		Expect(resp.Order).To(BeNil())
	})

	It("rejects a stale timestamp even when the signature is correct", func() {
		_, err := service.CreateOrder(order.CreateOrderDTO{
			OrderNumber: "ORD-001",
			BaseAmount:  money.Amount(15025),
		})
		Expect(err).NotTo(HaveOccurred())

		stale := time.Now().Add(-6 * time.Minute)
		rr, _ := perform(signedRequest(envelope("payment.received", "150.25"), gatewaySigner, stale))

		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		Expect(rr.Body.String()).To(ContainSubstring("TIMESTAMP_OUT_OF_RANGE"))

		// The order must remain claimable.
		orders, listErr := repo.List(orderDatamodel.StatusPending, 0, 10)
		Expect(listErr).NotTo(HaveOccurred())
		Expect(orders).To(HaveLen(1))
	})

	It("rejects a body that differs from the signed bytes", func() {
		signed := envelope("payment.received", "150.25")
		tampered := envelope("payment.received", "999.99")

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(tampered))
		gatewaySigner.SignRequest(req, signed, time.Now())

		rr, _ := perform(req)

		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		Expect(rr.Body.String()).To(ContainSubstring("SIGNATURE_INVALID"))
	})

	It("rejects an unknown api key before checking anything else", func() {
		wrongKey := signature.Signer{APIKey: "not-this-site", Secret: secret}
		rr, _ := perform(signedRequest(envelope("payment.received", "150.25"), wrongKey, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers 503 while the site is not accepting payments", func() {
		service.SetAccepting(false)

		rr, _ := perform(signedRequest(envelope("payment.received", "150.25"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rr.Body.String()).To(ContainSubstring("SITE_NOT_READY"))
	})

	It("answers a connection test without touching orders", func() {
		_, err := service.CreateOrder(order.CreateOrderDTO{
			OrderNumber: "ORD-001",
			BaseAmount:  money.Amount(15025),
		})
		Expect(err).NotTo(HaveOccurred())

		rr, resp := perform(signedRequest(envelope("connection.test", "0.00"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Matched).To(BeFalse())

		orders, listErr := repo.List(orderDatamodel.StatusPending, 0, 10)
		Expect(listErr).NotTo(HaveOccurred())
		Expect(orders).To(HaveLen(1))
	})

	It("refuses a duplicate-amount match without picking a winner", func() {
		expires := time.Now().Add(time.Hour)
		repo.seed(&orderDatamodel.Order{
			OrderNumber: "DUP-1",
			BaseAmount:  money.Amount(15025),
			Amount:      money.Amount(15025),
			Status:      orderDatamodel.StatusPending,
			ExpiresAt:   expires,
		})
		repo.seed(&orderDatamodel.Order{
			OrderNumber: "DUP-2",
			BaseAmount:  money.Amount(15025),
			Amount:      money.Amount(15025),
			Status:      orderDatamodel.StatusPending,
			ExpiresAt:   expires,
		})

		rr, resp := perform(signedRequest(envelope("payment.received", "150.25"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(resp.Success).To(BeFalse())
		Expect(resp.Matched).To(BeFalse())
		Expect(resp.Error).To(Equal("DUPLICATE_MATCH"))

		orders, listErr := repo.List(orderDatamodel.StatusPending, 0, 10)
		Expect(listErr).NotTo(HaveOccurred())
		Expect(orders).To(HaveLen(2))
	})

	It("rejects an unsupported event type", func() {
		rr, _ := perform(signedRequest(envelope("payment.refunded", "150.25"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a zero-amount payment event", func() {
		rr, _ := perform(signedRequest(envelope("payment.received", "0.00"), gatewaySigner, time.Now()))

		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})
})
