package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/tanawath/sms-payment-gateway/internal/auth"
	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	"github.com/tanawath/sms-payment-gateway/internal/dispatch"
	"github.com/tanawath/sms-payment-gateway/internal/order"
	"github.com/tanawath/sms-payment-gateway/internal/payment"
	"github.com/tanawath/sms-payment-gateway/internal/sms"
	"github.com/tanawath/sms-payment-gateway/internal/transport/middleware"
	"github.com/tanawath/sms-payment-gateway/internal/transport/swagger"
	"github.com/tanawath/sms-payment-gateway/internal/website"
)

// RegisterGatewayRoutes assembles the gateway role: device ingest, the
// operator management API and the public health/docs endpoints.
func RegisterGatewayRoutes(router *chi.Mux, db *sql.DB, readiness ReadinessFunc, authHandler *auth.Handler, smsHandler *sms.Handler, paymentHandler *payment.Handler, websiteHandler *website.Handler, bankAccountHandler *bankaccount.Handler, dispatchHandler *dispatch.Handler, statusHandler *GatewayStatusHandler, deviceKey string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, readiness)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve the OpenAPI document at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
			})
		}

		// Device ingest is keyed, not JWT-authenticated: the forwarder app
		// holds a device key, never operator credentials.
		if smsHandler != nil {
			r.Group(func(dr chi.Router) {
				dr.Use(middleware.RequireDeviceKey(deviceKey, logger))
				dr.Post("/sms", smsHandler.IngestSms)
			})
		}

		if authHandler != nil {
			// Protected routes that require operator authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				if statusHandler != nil {
					pr.Get("/status", statusHandler.GetStatus)
				}

				if smsHandler != nil {
					pr.Get("/sms", smsHandler.ListMessages)
					pr.Get("/sms/{id}", smsHandler.GetMessage)
				}

				if paymentHandler != nil {
					pr.Route("/payments", func(pmr chi.Router) {
						pmr.Get("/", paymentHandler.ListPayments)
						pmr.Get("/{id}", paymentHandler.GetPayment)
						pmr.Patch("/{id}/approve", paymentHandler.ApprovePayment)
						pmr.Patch("/{id}/reject", paymentHandler.RejectPayment)
					})
				}

				if websiteHandler != nil {
					pr.Route("/websites", func(wr chi.Router) {
						wr.Get("/", websiteHandler.ListWebsites)
						wr.Post("/", websiteHandler.CreateWebsite)
						wr.Get("/{id}", websiteHandler.GetWebsite)
						wr.Patch("/{id}", websiteHandler.UpdateWebsite)
						wr.Delete("/{id}", websiteHandler.DeleteWebsite)

						if dispatchHandler != nil {
							wr.Post("/{id}/test", dispatchHandler.TestWebsiteConnection)
						}
					})
				}

				if bankAccountHandler != nil {
					pr.Route("/bank-accounts", func(br chi.Router) {
						br.Get("/", bankAccountHandler.ListAccounts)
						br.Post("/", bankAccountHandler.CreateAccount)
						br.Get("/status", bankAccountHandler.GetStatus)
						br.Patch("/{id}", bankAccountHandler.UpdateAccount)
						br.Delete("/{id}", bankAccountHandler.DeleteAccount)
						br.Post("/{id}/primary", bankAccountHandler.SetPrimary)
					})
				}

				if dispatchHandler != nil {
					pr.Route("/unmatched", func(ur chi.Router) {
						ur.Get("/", dispatchHandler.ListUnmatched)
						ur.Post("/{id}/retry", dispatchHandler.RetryUnmatched)
						ur.Patch("/{id}/review", dispatchHandler.ReviewUnmatched)
					})

					pr.Get("/statistics", dispatchHandler.GetStatistics)
				}
			})
		}
	})
}

// RegisterSiteRoutes assembles the reference destination site: the signed
// webhook receiver and the order management API the storefront uses.
func RegisterSiteRoutes(router *chi.Mux, db *sql.DB, orderHandler *order.Handler, receiver *order.Receiver, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, nil)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// The gateway dispatches here; auth is the API key plus HMAC signature
	// checked inside the receiver, not a middleware.
	if receiver != nil {
		router.Post("/webhook/payment", receiver.HandleWebhook)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if orderHandler != nil {
			r.Route("/orders", func(or chi.Router) {
				or.Post("/", orderHandler.CreateOrder)
				or.Get("/", orderHandler.ListOrders)
				or.Get("/{id}", orderHandler.GetOrder)
				or.Post("/{id}/cancel", orderHandler.CancelOrder)
				or.Post("/{id}/paid", orderHandler.MarkPaid)
			})
		}
	})
}
