package rest_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tanawath/sms-payment-gateway/internal/sms"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
	"github.com/tanawath/sms-payment-gateway/internal/transport/rest"
)

// fakeSmsService satisfies sms.ServiceAPI so the router can be exercised
// without the full ingest pipeline.
type fakeSmsService struct{}

func (fakeSmsService) Ingest(ctx context.Context, dto sms.IngestDTO) (*sms.IngestResponse, error) {
	return &sms.IngestResponse{SmsID: 42, WillDispatch: false}, nil
}

func (fakeSmsService) ListMessages(offset, limit int) ([]sms.MessageResponse, error) {
	return []sms.MessageResponse{}, nil
}

func (fakeSmsService) GetMessage(id int64) (*sms.MessageResponse, error) {
	return nil, nil
}

const testDeviceKey = "unit-test-device-key"

var _ = Describe("Gateway Router", func() {
	var (
		router  *chi.Mux
		sqlDB   *sql.DB
		slogger *slog.Logger
	)

	newRouter := func(readiness rest.ReadinessFunc) *chi.Mux {
		base := transport.NewBaseHandler(slogger)
		smsHandler := sms.NewHandler(base, fakeSmsService{})

		r := chi.NewRouter()
		rest.RegisterGatewayRoutes(r, sqlDB, readiness, nil, smsHandler, nil, nil, nil, nil, nil, testDeviceKey, slogger)
		return r
	}

	BeforeEach(func() {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err = gormDB.DB()
		Expect(err).NotTo(HaveOccurred())

		router = newRouter(nil)
	})

	Describe("liveness and health", func() {
		It("answers ping", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(Equal("OK"))
		})

		It("reports the database component healthy", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var body struct {
				Status     string `json:"status"`
				Components map[string]struct {
					Status string `json:"status"`
				} `json:"components"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Status).To(Equal("healthy"))
			Expect(body.Components).To(HaveKey("postgres"))
			Expect(body.Components["postgres"].Status).To(Equal("healthy"))
		})

		It("degrades to 503 when the bank account pool is not ready", func() {
			notReady := func(ctx context.Context) (bool, string) {
				return false, "no enabled bank accounts"
			}
			degraded := newRouter(notReady)

			rec := httptest.NewRecorder()
			degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

			var body struct {
				Status     string `json:"status"`
				Components map[string]struct {
					Status  string `json:"status"`
					Message string `json:"message"`
				} `json:"components"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Status).To(Equal("unhealthy"))
			Expect(body.Components["bank_accounts"].Message).To(Equal("no enabled bank accounts"))
		})

		It("tags every response with a trace id", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

			Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
		})
	})

	Describe("device ingest guard", func() {
		ingestRequest := func(deviceKey string) *http.Request {
			payload := bytes.NewBufferString(`{"sender":"KBank","body":"received 500.00 THB"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sms", payload)
			req.Header.Set("Content-Type", "application/json")
			if deviceKey != "" {
				req.Header.Set("X-Device-Key", deviceKey)
			}
			return req
		}

		It("rejects a missing device key", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, ingestRequest(""))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a wrong device key", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, ingestRequest("wrong-key"))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(ContainSubstring("invalid device key"))
		})

		It("accepts the configured device key", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, ingestRequest(testDeviceKey))

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var body struct {
				SmsID int64 `json:"sms_id"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.SmsID).To(Equal(int64(42)))
		})
	})
})

var _ = Describe("Site Router", func() {
	It("serves the health probes without gateway routes", func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := gormDB.DB()
		Expect(err).NotTo(HaveOccurred())

		router := chi.NewRouter()
		rest.RegisterSiteRoutes(router, sqlDB, nil, nil, slogger)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
